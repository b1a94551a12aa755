// Package server hosts named packet services, each bound to its own
// listener, and drives their accept loops.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/davrell/pktwire/internal/protocol/channel"
)

var (
	ErrServiceExists   = errors.New("server: service already exists")
	ErrServiceNotFound = errors.New("server: service not found")
	ErrNoHandler       = errors.New("server: service has no handler")
)

// Options tunes how a registered service runs its sessions.
type Options struct {
	// ConcurrentSessions serves each accepted connection on its own
	// goroutine; otherwise sessions run inline in the accept loop, one
	// at a time.
	ConcurrentSessions bool
	// MaxSessions caps concurrent sessions when ConcurrentSessions is
	// set; zero or negative means no cap.
	MaxSessions int
	Channel     channel.Options
}

type service struct {
	name    string
	ln      net.Listener
	handler Handler
	opts    Options
	sem     chan struct{}
}

// Server is a registry of named services. Listeners are opened first,
// handlers registered second, and the whole set served with Run.
type Server struct {
	mu       sync.Mutex
	services map[string]*service
}

func New() *Server {
	return &Server{services: make(map[string]*service)}
}

// OpenInet binds a TCP listener for the named service. Host may be empty
// to listen on all interfaces; svc is a port number or service name.
func (s *Server) OpenInet(name, host, svc string) (net.Addr, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(strings.TrimSpace(host), strings.TrimSpace(svc)))
	if err != nil {
		return nil, fmt.Errorf("server: open inet %s: %w", name, err)
	}
	if err := s.attach(name, ln); err != nil {
		_ = ln.Close()
		return nil, err
	}
	return ln.Addr(), nil
}

// OpenUnix binds a Unix-domain listener for the named service. A stale
// socket file from a previous run is removed first.
func (s *Server) OpenUnix(name, path string) (net.Addr, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("server: open unix %s: %w", name, err)
	}
	if err := s.attach(name, ln); err != nil {
		_ = ln.Close()
		return nil, err
	}
	return ln.Addr(), nil
}

func (s *Server) attach(name string, ln net.Listener) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("server: service name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[name]; ok {
		return fmt.Errorf("%w: %s", ErrServiceExists, name)
	}
	s.services[name] = &service{name: name, ln: ln}
	return nil
}

// Register attaches a handler to a previously opened service.
func (s *Server) Register(name string, h Handler, opts Options) error {
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	svc.handler = h
	svc.opts = opts
	if opts.ConcurrentSessions && opts.MaxSessions > 0 {
		svc.sem = make(chan struct{}, opts.MaxSessions)
	}
	return nil
}

// Addr reports the bound address of a named service.
func (s *Server) Addr(name string) (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return svc.ln.Addr(), nil
}

// Services lists opened service names, sorted.
func (s *Server) Services() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunService drives one service's accept loop until ctx is canceled.
func (s *Server) RunService(ctx context.Context, name string) error {
	s.mu.Lock()
	svc, ok := s.services[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if svc.handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, name)
	}
	return svc.run(ctx)
}

// Run serves every opened service until ctx is canceled; one service
// failing stops the rest.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.services))
	for name, svc := range s.services {
		if svc.handler == nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrNoHandler, name)
		}
		names = append(names, name)
	}
	s.mu.Unlock()
	if len(names) == 0 {
		return errors.New("server: no services registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(names))
	for _, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.RunService(runCtx, name); err != nil {
				errCh <- fmt.Errorf("service %s: %w", name, err)
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		return err
	}
	return nil
}

func (svc *service) run(ctx context.Context) error {
	log.Info().
		Str("service", svc.name).
		Str("addr", svc.ln.Addr().String()).
		Bool("concurrent", svc.opts.ConcurrentSessions).
		Msg("service listening")

	go func() {
		<-ctx.Done()
		_ = svc.ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := svc.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept %s: %w", svc.name, err)
		}

		if !svc.opts.ConcurrentSessions {
			svc.serveSession(ctx, conn)
			continue
		}
		if svc.sem != nil {
			select {
			case svc.sem <- struct{}{}:
			case <-ctx.Done():
				_ = conn.Close()
				return nil
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.sem != nil {
				defer func() { <-svc.sem }()
			}
			svc.serveSession(ctx, conn)
		}()
	}
}
