package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/davrell/pktwire/internal/config"
)

type fileConfig struct {
	Name    string      `toml:"name"`
	Records fileRecords `toml:"records"`
	Echo    fileEcho    `toml:"echo"`
	Limits  fileLimits  `toml:"limits"`
	Ops     fileOps     `toml:"ops"`
}

type fileRecords struct {
	Host               string `toml:"host"`
	Service            string `toml:"service"`
	UnixSocket         string `toml:"unix_socket"`
	StoreDir           string `toml:"store_dir"`
	ConcurrentSessions bool   `toml:"concurrent_sessions"`
	MaxSessions        int    `toml:"max_sessions"`
}

type fileEcho struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Service string `toml:"service"`
}

type fileLimits struct {
	MaxDataBytes int64 `toml:"max_data_bytes"`
}

type fileOps struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// loadDaemonConfig overlays a config file onto the coded defaults. Only
// keys the file actually defines replace a default, so a sparse file
// can flip one boolean without restating everything else.
func loadDaemonConfig(path string) (config.DaemonConfig, error) {
	cfg := config.DefaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.DaemonConfig{}, fmt.Errorf("load daemon config: %w", err)
	}

	if meta.IsDefined("name") {
		if v := strings.TrimSpace(raw.Name); v != "" {
			cfg.Name = v
		}
	}

	if meta.IsDefined("records", "host") {
		cfg.Records.Host = strings.TrimSpace(raw.Records.Host)
	}
	if meta.IsDefined("records", "service") {
		cfg.Records.Service = strings.TrimSpace(raw.Records.Service)
	}
	if meta.IsDefined("records", "unix_socket") {
		cfg.Records.UnixSocket = strings.TrimSpace(raw.Records.UnixSocket)
	}
	if meta.IsDefined("records", "store_dir") {
		cfg.Records.StoreDir = strings.TrimSpace(raw.Records.StoreDir)
	}
	if meta.IsDefined("records", "concurrent_sessions") {
		cfg.Records.ConcurrentSessions = raw.Records.ConcurrentSessions
	}
	if meta.IsDefined("records", "max_sessions") {
		cfg.Records.MaxSessions = raw.Records.MaxSessions
	}

	if meta.IsDefined("echo", "enabled") {
		cfg.Echo.Enabled = raw.Echo.Enabled
	}
	if meta.IsDefined("echo", "host") {
		cfg.Echo.Host = strings.TrimSpace(raw.Echo.Host)
	}
	if meta.IsDefined("echo", "service") {
		cfg.Echo.Service = strings.TrimSpace(raw.Echo.Service)
	}

	if meta.IsDefined("limits", "max_data_bytes") {
		cfg.Limits.MaxDataBytes = raw.Limits.MaxDataBytes
	}

	if meta.IsDefined("ops", "addr") {
		cfg.Ops.Addr = strings.TrimSpace(raw.Ops.Addr)
	}
	if meta.IsDefined("ops", "cors_origins") {
		cfg.Ops.CorsOrigins = normalizeOrigins(raw.Ops.CorsOrigins)
	}

	if err := config.ValidateDaemonConfig(cfg); err != nil {
		return config.DaemonConfig{}, err
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
