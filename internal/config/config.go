package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Prefs  PrefsConfig  `toml:"prefs"`
	Remote RemoteConfig `toml:"remote"`
	Run    RunConfig    `toml:"run"`
}

type ServerConfig struct {
	ID          string   `toml:"id"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token"`
}

type PrefsConfig struct {
	Path string `toml:"path"`
}

// RemoteConfig selects SSH execution on a POSIX host when Enabled.
type RemoteConfig struct {
	Enabled                     bool   `toml:"enabled"`
	Host                        string `toml:"host"`
	Port                        string `toml:"port"`
	User                        string `toml:"user"`
	KeyPath                     string `toml:"key_path"`
	KnownHostsPath              string `toml:"known_hosts_path"`
	InsecureSkipHostKeyChecking bool   `toml:"insecure_skip_host_key_checking"`
	Timeout                     string `toml:"timeout"`
}

type RunConfig struct {
	// DrainTimeout bounds the wait for trailing output after a tool exits.
	// "0s" keeps draining best-effort.
	DrainTimeout string `toml:"drain_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			ID:          "wrapctl",
			Addr:        ":9300",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Prefs: PrefsConfig{Path: "local/prefs.toml"},
		Remote: RemoteConfig{
			Timeout: "10s",
		},
		Run: RunConfig{DrainTimeout: "0s"},
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.Server.ID) == "" {
		cfg.Server.ID = defaults.Server.ID
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if strings.TrimSpace(cfg.Prefs.Path) == "" {
		cfg.Prefs.Path = defaults.Prefs.Path
	}
	if strings.TrimSpace(cfg.Remote.Timeout) == "" {
		cfg.Remote.Timeout = defaults.Remote.Timeout
	}
	if strings.TrimSpace(cfg.Run.DrainTimeout) == "" {
		cfg.Run.DrainTimeout = defaults.Run.DrainTimeout
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Server.ID) == "" {
		return fmt.Errorf("server config missing id")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if _, err := cfg.Run.DrainTimeoutDuration(); err != nil {
		return fmt.Errorf("run config invalid: %w", err)
	}
	if cfg.Remote.Enabled {
		if err := ValidateRemote(cfg.Remote); err != nil {
			return fmt.Errorf("remote config invalid: %w", err)
		}
	}
	return nil
}

func ValidateRemote(cfg RemoteConfig) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if strings.TrimSpace(cfg.User) == "" {
		return fmt.Errorf("user is required")
	}
	if strings.TrimSpace(cfg.KeyPath) == "" {
		return fmt.Errorf("key_path is required")
	}
	if _, err := cfg.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func (r RunConfig) DrainTimeoutDuration() (time.Duration, error) {
	return parseDuration("drain_timeout", r.DrainTimeout)
}

func (r RemoteConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration("timeout", r.Timeout)
}

func parseDuration(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse %s: negative duration %s", name, raw)
	}
	return d, nil
}
