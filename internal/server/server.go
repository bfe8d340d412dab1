// Package server is the TCP front of the users store.
//
// ACCEPTOR
// ────────
// Server owns the listening socket. Every accepted connection is offered
// to a bounded errgroup (SetLimit = capacity). When the group is full the
// connection is told the server is busy and closed on the spot; otherwise
// it gets its own goroutine running handleConnection until the peer goes
// away. The slot is given back as soon as that goroutine returns.
//
// The net.Conn is handed to the goroutine as a function argument, so each
// handler owns a stable reference no matter what the accept loop does next.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/aanand-mishra/users-server/internal/config"
	"github.com/aanand-mishra/users-server/internal/protocol"
	"github.com/aanand-mishra/users-server/internal/storage"
)

// Server accepts client connections and serves the users protocol on them.
type Server struct {
	cfg   config.TCPServer
	store storage.Storage
	log   *slog.Logger

	listener   net.Listener
	handlers   errgroup.Group
	conns      sync.Map // live net.Conn set, swept by Stop
	active     atomic.Int64
	stopCh     chan struct{}
	stopOnce   sync.Once
	acceptDone chan struct{}
}

// Option is a functional server option.
type Option func(*Server)

// WithLogger sets the logger used by the acceptor and every handler.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New creates a server for cfg backed by store. Nothing is bound until Start.
func New(cfg config.TCPServer, store storage.Storage, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		log:        slog.Default(),
		stopCh:     make(chan struct{}),
		acceptDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.Capacity < 1 {
		s.cfg.Capacity = 1
	}
	if s.cfg.BufferSize < 1 {
		s.cfg.BufferSize = 1024
	}
	s.handlers.SetLimit(s.cfg.Capacity)

	return s
}

// Start binds the listening socket and runs the accept loop in the
// background. It returns once the socket is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server.Start: listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	s.log.Info("server is listening for connections",
		slog.String("address", ln.Addr().String()),
		slog.Int("capacity", s.cfg.Capacity),
		slog.String("list_mode", s.cfg.ListMode),
	)

	go s.acceptLoop()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Active returns the number of connections currently being served.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// Stop closes the listener and every live connection, then waits for all
// handlers to return. It does not close the store.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.listener != nil {
			s.listener.Close()
		}
		s.conns.Range(func(key, _ any) bool {
			key.(net.Conn).Close()
			return true
		})
	})

	if s.listener != nil {
		<-s.acceptDone
	}
	s.handlers.Wait()
}

func (s *Server) acceptLoop() {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("accept failed", slog.Any("error", err))
			continue
		}

		s.log.Info("accepted connection",
			slog.String("remote", conn.RemoteAddr().String()))

		if !s.spawn(conn) {
			s.reject(conn)
		}
	}
}

// spawn starts a handler for conn if a slot is free.
func (s *Server) spawn(conn net.Conn) bool {
	return s.handlers.TryGo(func() error {
		s.handleConnection(conn)
		return nil
	})
}

// reject tells a client over capacity to come back later and hangs up.
func (s *Server) reject(conn net.Conn) {
	defer conn.Close()

	s.log.Warn("capacity reached, rejecting connection",
		slog.String("remote", conn.RemoteAddr().String()),
		slog.Int("capacity", s.cfg.Capacity),
	)
	if _, err := io.WriteString(conn, protocol.ServerBusy); err != nil {
		s.log.Debug("busy message not delivered", slog.Any("error", err))
	}
}

func (s *Server) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}
