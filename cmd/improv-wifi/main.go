package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/improv-wifi/internal/ble"
	"github.com/chaz8081/improv-wifi/internal/ble/advertise"
	"github.com/chaz8081/improv-wifi/internal/config"
	"github.com/chaz8081/improv-wifi/internal/improv"
	"github.com/chaz8081/improv-wifi/internal/logging"
	"github.com/chaz8081/improv-wifi/internal/wifi"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/improv-wifi/config.yaml)")
	name := flag.String("name", "", "override device_name from the config")
	initConfig := flag.Bool("init", false, "write the default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Println("Config file already exists at", config.DefaultConfigPath())
			return
		}
		fmt.Println("Wrote default config to", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *name != "" {
		cfg.DeviceName = *name
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(logging.New(config.ParseLogLevel(cfg.LogLevel), cfg.LogFormat, os.Stderr))

	printBanner(cfg)

	// Credential consumer
	out, closeOut, err := consumerOutput(cfg.Provisioning)
	if err != nil {
		log.Fatalf("provisioning output: %v", err)
	}
	defer closeOut()

	consumer, err := wifi.NewConsumer(cfg.Provisioning.Consumer, out)
	if err != nil {
		log.Fatalf("consumer: %v", err)
	}

	// Session controller notifies through the peripheral
	peripheral := ble.NewTinyGoPeripheral()

	var opts []improv.Option
	if cfg.Provisioning.RedirectURL != "" {
		opts = append(opts, improv.WithRedirectURL(cfg.Provisioning.RedirectURL))
	}
	ctrl, err := improv.NewController(peripheral, consumer, opts...)
	if err != nil {
		log.Fatalf("controller: %v", err)
	}

	payload := advertise.ImprovPayload(cfg.DeviceName, cfg.Advertise.URI)
	payload.ConnIntervalMin = cfg.Advertise.IntervalMin
	payload.ConnIntervalMax = cfg.Advertise.IntervalMax

	srvOpts := ble.DefaultServerOptions()
	srvOpts.RestartMax = cfg.Advertise.RestartMax

	srv, err := ble.NewServer(peripheral, ctrl, payload, srvOpts)
	if err != nil {
		log.Fatalf("ble: %v", err)
	}

	// Signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start BLE server: %v\n\nEnsure Bluetooth is powered on and this process may use the adapter.", err)
	}

	slog.Info("Ready! Waiting for an Improv client. Ctrl+C to quit.", "session", ctrl.Snapshot())

	<-ctx.Done()
	slog.Info("Shutting down...")
	if err := srv.Close(); err != nil {
		slog.Warn("BLE shutdown", "error", err)
	}
	slog.Info("Goodbye!", "session", ctrl.Snapshot())
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// consumerOutput opens the file the wpa-psk consumer appends network blocks
// to, or returns stdout when none is configured.
func consumerOutput(p config.ProvisioningConfig) (io.Writer, func(), error) {
	if p.Consumer != wifi.MethodWPAPSK || p.Output == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(p.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	redirect := cfg.Provisioning.RedirectURL
	if redirect == "" {
		redirect = "(none)"
	}
	fmt.Println("=== improv-wifi ===")
	fmt.Printf("  Device:    %s\n", cfg.DeviceName)
	fmt.Printf("  URI:       %s\n", cfg.Advertise.URI)
	fmt.Printf("  Interval:  %d-%d (x1.25ms)\n", cfg.Advertise.IntervalMin, cfg.Advertise.IntervalMax)
	fmt.Printf("  Consumer:  %s\n", cfg.Provisioning.Consumer)
	fmt.Printf("  Redirect:  %s\n", redirect)
	fmt.Printf("  Log:       %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Println("===================")
}
