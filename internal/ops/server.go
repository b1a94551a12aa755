// Package ops exposes the daemon's HTTP operations surface: health,
// readiness, metrics, and the list of bound packet services.
package ops

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/davrell/pktwire/internal/observability"
)

// ServiceInfo describes one bound packet service for the /services route.
type ServiceInfo struct {
	Name    string `json:"name"`
	Network string `json:"network"`
	Addr    string `json:"addr"`
}

// Options configures the ops endpoint.
type Options struct {
	// Node labels log lines and metrics from this endpoint.
	Node string
	// Addr is the listen address, host:port.
	Addr string
	// CorsOrigins allowed to read the endpoint; empty means localhost dev.
	CorsOrigins []string
	// Services snapshots the packet services currently bound; nil serves
	// an empty list.
	Services func() []ServiceInfo
}

// Server is the ops HTTP endpoint for one daemon process.
type Server struct {
	opts      Options
	router    *gin.Engine
	startedAt time.Time

	mu    sync.Mutex
	bound net.Addr
}

func New(opts Options) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(opts.Node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		opts:      opts,
		router:    r,
		startedAt: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.startedAt).String(),
			"service": s.opts.Node,
			"version": "0.0.1",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.startedAt).String(),
			"service": s.opts.Node,
			"version": "0.0.1",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/services", func(c *gin.Context) {
		list := []ServiceInfo{}
		if s.opts.Services != nil {
			list = s.opts.Services()
		}
		c.JSON(http.StatusOK, gin.H{"services": list})
	})
}

// BoundAddr reports the listen address once Serve has bound it.
func (s *Server) BoundAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Serve runs the endpoint until ctx is canceled, then shuts down
// gracefully. A nil return means shutdown on cancellation.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.bound = ln.Addr()
	s.mu.Unlock()
	log.Info().
		Str("node", s.opts.Node).
		Str("addr", ln.Addr().String()).
		Msg("ops endpoint listening")

	httpSrv := &http.Server{Handler: s.router}
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- httpSrv.Shutdown(shutdownCtx)
	}()

	if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if ctx.Err() != nil {
		return <-shutdownErr
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
