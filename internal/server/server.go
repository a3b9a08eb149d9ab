// Package server owns the connection lifecycle: the TLS listener, the accept
// loop, the per-connection state machine, and graceful drain on shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okriva/opgate/internal/op"
)

var (
	ErrAlreadyStarted = errors.New("server: already started")
	ErrNotStarted     = errors.New("server: not started")
	ErrDrainTimeout   = errors.New("server: drain timeout elapsed with connections in flight")
)

// Server accepts TLS connections and serves exactly one request/response
// exchange per connection. It tracks in-flight connection handlers only to
// drain them on Stop; it never reads protocol content itself.
type Server struct {
	cfg    Config
	router *op.Router

	mu       sync.Mutex
	ln       net.Listener
	inFlight map[uint64]string

	wg       sync.WaitGroup
	nextID   atomic.Uint64
	draining atomic.Bool
}

func New(cfg Config, router *op.Router) *Server {
	if router == nil {
		router = op.NewRouter()
	}
	return &Server{
		cfg:      cfg.WithDefaults(),
		router:   router,
		inFlight: make(map[uint64]string),
	}
}

// Router exposes the registry so operations can be registered before Start.
func (s *Server) Router() *op.Router {
	return s.router
}

// Addr returns the bound listener address, usable once Start has returned.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start binds the TLS listener and launches the accept loop. It returns once
// the listener is bound; accept-loop errors after shutdown are swallowed.
func (s *Server) Start() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	tlsCfg, err := s.cfg.tlsConfig()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.ln != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ln, err := tls.Listen("tcp", s.cfg.ListenAddr, tlsCfg)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.ln = ln
	s.mu.Unlock()

	log.Info().
		Str("addr", ln.Addr().String()).
		Int("backlog", s.cfg.Backlog).
		Int("max_request_bytes", s.cfg.MaxRequestBytes).
		Int("max_response_bytes", s.cfg.MaxResponseBytes).
		Msg("listening")

	go s.acceptLoop(context.Background(), ln)
	return nil
}

// Serve runs the accept loop on an existing listener until the listener
// closes or ctx is cancelled. Cancellation stops new accepts only; in-flight
// connections are left to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.ln != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.ln = ln
	s.mu.Unlock()

	// The watcher must not outlive the accept loop: when the listener is
	// closed by Stop instead of ctx, loopDone releases it.
	loopDone := make(chan struct{})
	defer close(loopDone)
	go func() {
		select {
		case <-ctx.Done():
			s.draining.Store(true)
			_ = ln.Close()
		case <-loopDone:
		}
	}()
	return s.acceptLoop(ctx, ln)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.draining.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("accept failed")
			return err
		}
		id := s.nextID.Add(1)
		s.track(id, conn.RemoteAddr().String())
		s.wg.Add(1)
		go s.runConn(ctx, id, conn)
	}
}

// runConn is the tracking layer around one connection handler. Panics are
// stopped here so a broken handler can never take down the accept loop or
// other connections.
func (s *Server) runConn(ctx context.Context, id uint64, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(id)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Uint64("conn_id", id).
				Interface("panic", rec).
				Msg("connection handler failed")
		}
	}()
	// Shutdown drains rather than cancels, so the handler must not observe
	// the accept loop's cancellation.
	s.handleConn(context.WithoutCancel(ctx), id, conn)
}

// Stop flips the shutdown signal, stops new accepts, then blocks until every
// tracked connection handler completes. With DrainTimeout zero the wait is
// unbounded, matching the drain-not-cancel contract; a positive timeout
// returns ErrDrainTimeout instead of hanging forever.
func (s *Server) Stop() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotStarted
	}

	s.draining.Store(true)
	_ = ln.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if s.cfg.DrainTimeout <= 0 {
		<-done
		log.Info().Msg("drained")
		return nil
	}

	timer := time.NewTimer(s.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		log.Info().Msg("drained")
		return nil
	case <-timer.C:
		log.Warn().
			Int("in_flight", s.inFlightCount()).
			Dur("drain_timeout", s.cfg.DrainTimeout).
			Msg("drain timeout elapsed")
		return ErrDrainTimeout
	}
}

func (s *Server) track(id uint64, remote string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight[id] = remote
}

func (s *Server) untrack(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *Server) inFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
