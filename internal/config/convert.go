package config

import (
	"github.com/davrell/pktwire/internal/protocol/channel"
	"github.com/davrell/pktwire/internal/protocol/packet"
	"github.com/davrell/pktwire/internal/server"
)

// ServerOptions converts the records service configuration into packet
// server options.
func ServerOptions(cfg DaemonConfig) server.Options {
	return server.Options{
		ConcurrentSessions: cfg.Records.ConcurrentSessions,
		MaxSessions:        cfg.Records.MaxSessions,
		Channel:            ChannelOptions(cfg),
	}
}

// ChannelOptions converts the configured limits into channel options.
func ChannelOptions(cfg DaemonConfig) channel.Options {
	opts := channel.DefaultOptions()
	opts.Limits = packet.Limits{MaxDataBytes: uint64(cfg.Limits.MaxDataBytes)}
	return opts
}
