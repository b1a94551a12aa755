package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DaemonConfig is the pktwired process configuration.
type DaemonConfig struct {
	Name    string        `toml:"name"`
	Records RecordsConfig `toml:"records"`
	Echo    EchoConfig    `toml:"echo"`
	Limits  LimitsConfig  `toml:"limits"`
	Ops     OpsConfig     `toml:"ops"`
}

// RecordsConfig binds the record service: its TCP endpoint, an optional
// Unix socket alias, and the store directory.
type RecordsConfig struct {
	Host               string `toml:"host"`
	Service            string `toml:"service"`
	UnixSocket         string `toml:"unix_socket"`
	StoreDir           string `toml:"store_dir"`
	ConcurrentSessions bool   `toml:"concurrent_sessions"`
	MaxSessions        int    `toml:"max_sessions"`
}

// EchoConfig binds the wire-level diagnostic service.
type EchoConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Service string `toml:"service"`
}

type LimitsConfig struct {
	MaxDataBytes int64 `toml:"max_data_bytes"`
}

type OpsConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// ClientConfig holds pktwire client defaults loadable from a file.
type ClientConfig struct {
	Host       string `toml:"host"`
	Service    string `toml:"service"`
	UnixSocket string `toml:"unix_socket"`
	Timeout    string `toml:"timeout"`
}

// DefaultDaemonConfig is the coded baseline overlaid by config files.
// 53467 is the record protocol's conventional TCP port.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Name: "pktwired",
		Records: RecordsConfig{
			Host:               "127.0.0.1",
			Service:            "53467",
			StoreDir:           "local/records",
			ConcurrentSessions: true,
			MaxSessions:        16,
		},
		Echo: EchoConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Service: "53468",
		},
		Limits: LimitsConfig{MaxDataBytes: 8 * 1024 * 1024},
		Ops: OpsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:    "127.0.0.1",
		Service: "53467",
		Timeout: "5s",
	}
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	cfg := DefaultDaemonConfig()
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
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

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("daemon config missing name")
	}
	if strings.TrimSpace(cfg.Records.Service) == "" {
		return fmt.Errorf("daemon config missing records service")
	}
	if strings.TrimSpace(cfg.Records.StoreDir) == "" {
		return fmt.Errorf("daemon config missing records store_dir")
	}
	if cfg.Records.MaxSessions < 0 {
		return fmt.Errorf("daemon config records max_sessions must not be negative")
	}
	if cfg.Echo.Enabled && strings.TrimSpace(cfg.Echo.Service) == "" {
		return fmt.Errorf("daemon config echo enabled without service")
	}
	if cfg.Limits.MaxDataBytes <= 0 {
		return fmt.Errorf("daemon config limits max_data_bytes must be positive")
	}
	if _, _, err := net.SplitHostPort(strings.TrimSpace(cfg.Ops.Addr)); err != nil {
		return fmt.Errorf("daemon config ops addr invalid: %w", err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.UnixSocket) == "" && strings.TrimSpace(cfg.Service) == "" {
		return fmt.Errorf("client config requires service or unix_socket")
	}
	if strings.TrimSpace(cfg.Timeout) != "" {
		if _, err := time.ParseDuration(strings.TrimSpace(cfg.Timeout)); err != nil {
			return fmt.Errorf("client config timeout invalid: %w", err)
		}
	}
	return nil
}

// TimeoutDuration returns the parsed receive timeout; zero means block
// forever. ValidateClientConfig guarantees the field parses.
func (c ClientConfig) TimeoutDuration() time.Duration {
	raw := strings.TrimSpace(c.Timeout)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
