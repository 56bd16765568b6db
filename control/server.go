// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/archlinuxcn/matrixbot/lib/netutil"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Listener is the bound control socket, usually from Listen. The
	// server closes it when Serve returns. Required.
	Listener net.Listener

	// Dispatcher executes the commands read from connections. Required.
	Dispatcher *Dispatcher

	// MaxFrameSize bounds each request frame. Zero means
	// DefaultMaxFrameSize.
	MaxFrameSize uint32

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics counts connections when non-nil.
	Metrics *Metrics
}

// Server accepts control connections and runs one goroutine per
// connection. Frames on a connection are handled strictly in order;
// connections progress independently of each other.
type Server struct {
	listener     net.Listener
	dispatcher   *Dispatcher
	maxFrameSize uint32
	logger       *slog.Logger
	metrics      *Metrics

	connectionCounter atomic.Uint64

	// activeConnections tracks connection goroutines so Serve can wait
	// for them on shutdown.
	activeConnections sync.WaitGroup

	mu          sync.Mutex
	connections map[net.Conn]struct{}
}

// NewServer creates a Server. Call Serve to start accepting.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Listener == nil {
		return nil, errors.New("control: Listener is required")
	}
	if config.Dispatcher == nil {
		return nil, errors.New("control: Dispatcher is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listener:     config.Listener,
		dispatcher:   config.Dispatcher,
		maxFrameSize: config.MaxFrameSize,
		logger:       logger,
		metrics:      config.Metrics,
		connections:  make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or accepting fails.
// Cancellation closes the listener and every open connection, waits for
// the connection goroutines, and returns nil. An accept failure is
// returned after the same cleanup.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.listener.Close()
		s.closeConnections()
	})
	defer stop()

	s.logger.Info("control server listening", "address", s.listener.Addr().String())

	var serveErr error
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			serveErr = fmt.Errorf("control: accept: %w", err)
			break
		}

		if !s.track(conn) {
			conn.Close()
			break
		}
		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			defer s.untrack(conn)
			s.handleConnection(ctx, conn)
		}()
	}

	s.listener.Close()
	s.closeConnections()
	s.activeConnections.Wait()
	return serveErr
}

// track registers conn for shutdown. It returns false once shutdown has
// begun.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connections == nil {
		return false
	}
	s.connections[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connections != nil {
		delete(s.connections, conn)
	}
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.connections {
		conn.Close()
	}
	s.connections = nil
}

// handleConnection reads frames until the peer hangs up or the stream
// breaks. Command failures never end the connection; only transport
// and framing errors do.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.metrics.connectionOpened()
	defer s.metrics.connectionClosed()

	logger := s.logger.With("connection", s.connectionCounter.Add(1))
	if credentials, err := peerCredentials(conn); err == nil {
		logger.Debug("control connection accepted",
			"pid", credentials.PID,
			"uid", credentials.UID,
			"gid", credentials.GID,
		)
	} else {
		logger.Debug("control connection accepted", "peercred_error", err)
	}

	for {
		payload, err := ReadFrame(conn, s.maxFrameSize)
		if err != nil {
			if netutil.IsExpectedCloseError(err) || ctx.Err() != nil {
				logger.Debug("control connection closed")
			} else {
				logger.Warn("control connection failed", "error", err)
			}
			return
		}

		response := s.dispatcher.HandleFrame(ctx, payload)
		if response == nil {
			continue
		}
		encoded, err := json.Marshal(response)
		if err != nil {
			logger.Error("encoding control response", "error", err)
			continue
		}
		if err := WriteFrame(conn, encoded); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Warn("writing control response", "error", err)
			}
			return
		}
	}
}
