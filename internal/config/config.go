package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxDeviceName is the longest local name a BLE controller accepts.
const maxDeviceName = 248

// Connection interval bounds in units of 1.25 ms (7.5 ms to 4 s).
const (
	minConnInterval = 6
	maxConnInterval = 3200
)

// Config holds all application configuration.
type Config struct {
	DeviceName   string             `yaml:"device_name"`
	LogLevel     string             `yaml:"log_level"`
	LogFormat    string             `yaml:"log_format"` // "text" or "json"
	Advertise    AdvertiseConfig    `yaml:"advertise"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
}

// AdvertiseConfig holds BLE advertising settings.
type AdvertiseConfig struct {
	URI         string `yaml:"uri"`
	IntervalMin uint16 `yaml:"interval_min"` // units of 1.25 ms
	IntervalMax uint16 `yaml:"interval_max"`
	RestartMax  int    `yaml:"restart_max"` // seconds
}

// ProvisioningConfig selects what happens to received credentials.
type ProvisioningConfig struct {
	Consumer    string `yaml:"consumer"` // "log", "wpa-psk" or "reject"
	Output      string `yaml:"output"`   // wpa-psk network block file, stdout when empty
	RedirectURL string `yaml:"redirect_url"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "improv-wifi")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		DeviceName: "Improv Device",
		LogLevel:   "info",
		LogFormat:  "text",
		Advertise: AdvertiseConfig{
			URI:         "https://junipertechnology.co",
			IntervalMin: 0x20,
			IntervalMax: 0x30,
			RestartMax:  30,
		},
		Provisioning: ProvisioningConfig{
			Consumer: "log",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in provisioning.output is expanded to the user's
// home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Provisioning.Output = expandTilde(cfg.Provisioning.Output)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.DeviceName == "" {
		return errors.New("device_name must not be empty")
	}
	if len(c.DeviceName) > maxDeviceName {
		return fmt.Errorf("device_name must be at most %d bytes, got %d", maxDeviceName, len(c.DeviceName))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}

	if err := c.Advertise.validate(); err != nil {
		return err
	}
	return c.Provisioning.validate()
}

func (a AdvertiseConfig) validate() error {
	for _, v := range []struct {
		name string
		val  uint16
	}{{"interval_min", a.IntervalMin}, {"interval_max", a.IntervalMax}} {
		if v.val < minConnInterval || v.val > maxConnInterval {
			return fmt.Errorf("advertise.%s must be in [%d, %d], got %d", v.name, minConnInterval, maxConnInterval, v.val)
		}
	}
	if a.IntervalMin > a.IntervalMax {
		return fmt.Errorf("advertise.interval_min (%d) must not exceed interval_max (%d)", a.IntervalMin, a.IntervalMax)
	}
	if a.RestartMax < 1 {
		return fmt.Errorf("advertise.restart_max must be >= 1, got %d", a.RestartMax)
	}
	return nil
}

func (p ProvisioningConfig) validate() error {
	switch p.Consumer {
	case "log", "wpa-psk", "reject":
	default:
		return fmt.Errorf("provisioning.consumer must be log, wpa-psk, or reject, got %q", p.Consumer)
	}

	if p.RedirectURL != "" {
		u, err := url.Parse(p.RedirectURL)
		if err != nil {
			return fmt.Errorf("provisioning.redirect_url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("provisioning.redirect_url must be an absolute http(s) URL, got %q", p.RedirectURL)
		}
	}
	return nil
}

// ParseLogLevel maps a config log level onto slog. Unknown values map to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# improv-wifi configuration
#
# device_name is advertised as the BLE local name.
# provisioning.consumer: log (trace and accept), wpa-psk (write a
# wpa_supplicant network block), reject (refuse every credential set).

`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there yet. It returns the path written, or "" when a config file
// was already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if path == "config.yaml" {
		return "", errors.New("cannot determine home directory")
	}
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
