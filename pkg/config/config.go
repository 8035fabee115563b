// Package config loads the client configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/cliniclink/pkg/crypto"
	"github.com/NicolasHaas/cliniclink/pkg/logging"
	"github.com/NicolasHaas/cliniclink/pkg/realtime"
	"github.com/NicolasHaas/cliniclink/pkg/transport"
)

// sessionSalt is fixed so the same passphrase always opens the same database.
var sessionSalt = []byte("cliniclink/session/v1")

// Config is the client configuration persisted as YAML.
type Config struct {
	APIBaseURL     string          `yaml:"api_base_url"`
	WSURL          string          `yaml:"ws_url"`
	DBPath         string          `yaml:"db_path"`
	SessionKey     string          `yaml:"session_key,omitempty"` // passphrase sealing the token at rest; empty stores it in clear
	ConnectTimeout time.Duration   `yaml:"connect_timeout"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	Reconnect      ReconnectConfig `yaml:"reconnect"`
	Log            LogConfig       `yaml:"log"`
	MetricsAddr    string          `yaml:"metrics_addr,omitempty"`
}

type ReconnectConfig struct {
	Delay      time.Duration `yaml:"delay"`
	Multiplier float64       `yaml:"multiplier"`
	MaxDelay   time.Duration `yaml:"max_delay,omitempty"`
	Jitter     bool          `yaml:"jitter,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns defaults pointing at a clinic server on localhost.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:     "http://localhost:5000/api/",
		WSURL:          "ws://localhost:5000/ws",
		DBPath:         filepath.Join(DefaultDir(), "session.db"),
		ConnectTimeout: 30 * time.Second,
		RequestTimeout: 90 * time.Second,
		Reconnect: ReconnectConfig{
			Delay:      realtime.DefaultReconnectDelay,
			Multiplier: 1,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultDir is the per-user directory holding the config file and session database.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "cliniclink")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks every field that would otherwise fail later at dial time.
func (c *Config) Validate() error {
	var errs []error
	if err := checkURL(c.APIBaseURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("api_base_url: %w", err))
	}
	if err := checkURL(c.WSURL, "ws", "wss"); err != nil {
		errs = append(errs, fmt.Errorf("ws_url: %w", err))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path: empty"))
	}
	if c.ConnectTimeout <= 0 || c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Reconnect.Delay <= 0 {
		errs = append(errs, errors.New("reconnect.delay must be positive"))
	}
	if c.Reconnect.Multiplier < 1 {
		errs = append(errs, errors.New("reconnect.multiplier must be >= 1"))
	}
	if err := logging.Validate(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q: want %s URL", raw, strings.Join(schemes, " or "))
}

// Transport returns the REST client timeouts.
func (c *Config) Transport() transport.Config {
	return transport.Config{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ConnectTimeout,
		RequestTimeout: c.RequestTimeout,
	}
}

// Backoff returns the realtime reconnect policy.
func (c *Config) Backoff() realtime.BackoffConfig {
	return realtime.BackoffConfig{
		InitialDelay: c.Reconnect.Delay,
		Multiplier:   c.Reconnect.Multiplier,
		MaxDelay:     c.Reconnect.MaxDelay,
		Jitter:       c.Reconnect.Jitter,
	}
}

// Sealer returns nil when no session key is configured.
func (c *Config) Sealer() (*crypto.Sealer, error) {
	if c.SessionKey == "" {
		return nil, nil
	}
	s, err := crypto.NewSealer(crypto.XChaCha20Poly1305, crypto.DeriveKey(c.SessionKey, sessionSalt))
	if err != nil {
		return nil, fmt.Errorf("config: session key: %w", err)
	}
	return s, nil
}

// Logging returns the options for logging.Setup.
func (c *Config) Logging() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
