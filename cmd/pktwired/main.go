package main

import (
	"context"
	"flag"
	"os/signal"
	"strings"
	"syscall"

	"github.com/davrell/pktwire/internal/config"
	"github.com/davrell/pktwire/internal/logging"
	"github.com/davrell/pktwire/internal/observability"
	"github.com/davrell/pktwire/internal/ops"
	"github.com/davrell/pktwire/internal/server"
	"github.com/davrell/pktwire/internal/store"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "daemon config file (TOML); empty runs on coded defaults")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("pktwired")

	cfg := config.DefaultDaemonConfig()
	if path := strings.TrimSpace(*configPath); path != "" {
		loaded, err := loadDaemonConfig(path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load daemon config")
		}
		cfg = loaded
		log.Info().Str("path", path).Msg("loaded daemon config")
	} else {
		log.Info().Msg("no config file given, running on defaults")
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("pktwired stopped")
	}
	log.Info().Msg("pktwired shut down")
}

// run blocks until signal shutdown or the first fatal server error.
func run(cfg config.DaemonConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Records.StoreDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("record store close failed")
		}
	}()

	records := store.NewService(st)
	recordHandler := func(ctx context.Context, sess *server.Session) error {
		return records.Serve(ctx, sess)
	}

	srv := server.New()
	opts := config.ServerOptions(cfg)

	if _, err := srv.OpenInet("records", cfg.Records.Host, cfg.Records.Service); err != nil {
		return err
	}
	if err := srv.Register("records", recordHandler, opts); err != nil {
		return err
	}

	if path := strings.TrimSpace(cfg.Records.UnixSocket); path != "" {
		if _, err := srv.OpenUnix("records-local", path); err != nil {
			return err
		}
		if err := srv.Register("records-local", recordHandler, opts); err != nil {
			return err
		}
	}

	if cfg.Echo.Enabled {
		if _, err := srv.OpenInet("echo", cfg.Echo.Host, cfg.Echo.Service); err != nil {
			return err
		}
		if err := srv.Register("echo", server.EchoHandler, opts); err != nil {
			return err
		}
	}

	opsSrv := ops.New(ops.Options{
		Node:        cfg.Name,
		Addr:        cfg.Ops.Addr,
		CorsOrigins: cfg.Ops.CorsOrigins,
		Services: func() []ops.ServiceInfo {
			return describeServices(srv)
		},
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run(ctx)
	}()
	opsErr := make(chan error, 1)
	go func() {
		opsErr <- opsSrv.Serve(ctx)
	}()

	log.Info().
		Str("name", cfg.Name).
		Strs("services", srv.Services()).
		Str("ops", cfg.Ops.Addr).
		Msg("pktwired running")

	select {
	case err := <-serveErr:
		return err
	case err := <-opsErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

func describeServices(srv *server.Server) []ops.ServiceInfo {
	names := srv.Services()
	infos := make([]ops.ServiceInfo, 0, len(names))
	for _, name := range names {
		addr, err := srv.Addr(name)
		if err != nil {
			continue
		}
		infos = append(infos, ops.ServiceInfo{
			Name:    name,
			Network: addr.Network(),
			Addr:    addr.String(),
		})
	}
	return infos
}
