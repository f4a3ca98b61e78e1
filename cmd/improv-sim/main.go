// Command improv-sim plays the client side of an Improv session against the
// session controller, without a radio. Credentials go to the consumer named
// in the config, so consumers can be tried before deploying.
//
// Usage:
//
//	go run ./cmd/improv-sim [--config path] [--consumer log|wpa-psk|reject] [--v]
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/improv-wifi/cmd/improv-sim/interactive"
	"github.com/chaz8081/improv-wifi/internal/ble/advertise"
	"github.com/chaz8081/improv-wifi/internal/config"
	"github.com/chaz8081/improv-wifi/internal/improv"
	"github.com/chaz8081/improv-wifi/internal/logging"
	"github.com/chaz8081/improv-wifi/internal/wifi"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: built-in defaults)")
	consumerName := flag.String("consumer", "", "override provisioning.consumer")
	verbose := flag.Bool("v", false, "log controller activity at debug level")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if *consumerName != "" {
		cfg.Provisioning.Consumer = *consumerName
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(logging.New(level, "text", os.Stderr))

	consumer, err := wifi.NewConsumer(cfg.Provisioning.Consumer, os.Stdout)
	if err != nil {
		log.Fatalf("consumer: %v", err)
	}

	var opts []improv.Option
	if cfg.Provisioning.RedirectURL != "" {
		opts = append(opts, improv.WithRedirectURL(cfg.Provisioning.RedirectURL))
	}

	payload := advertise.ImprovPayload(cfg.DeviceName, cfg.Advertise.URI)
	payload.ConnIntervalMin = cfg.Advertise.IntervalMin
	payload.ConnIntervalMax = cfg.Advertise.IntervalMax

	sim, err := interactive.New(os.Stdout, consumer, payload, opts...)
	if err != nil {
		log.Fatalf("simulator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := sim.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
