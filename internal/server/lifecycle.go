package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rsclarke/tracescope/internal/logging"
)

// ServerConfig configures a ManagedServer.
type ServerConfig struct {
	Addr              string
	Handler           http.Handler
	Logger            *zap.Logger
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// DefaultServerConfig returns a ServerConfig with the API timeouts. The
// write timeout covers a generation cycle triggered over HTTP.
func DefaultServerConfig(addr string, handler http.Handler, logger *zap.Logger) ServerConfig {
	return ServerConfig{
		Addr:              addr,
		Handler:           handler,
		Logger:            logger,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

// ManagedServer owns an http.Server and the listener it serves on.
type ManagedServer struct {
	server *http.Server
	logger *zap.Logger
	name   string
	addr   string

	listener net.Listener
	done     chan error
}

// NewManagedServer creates a ManagedServer; it does not listen until Start.
func NewManagedServer(name string, cfg ServerConfig) *ManagedServer {
	errLog, _ := zap.NewStdLogAt(cfg.Logger, zapcore.ErrorLevel)

	return &ManagedServer{
		server: &http.Server{
			Handler:           cfg.Handler,
			ErrorLog:          errLog,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger: cfg.Logger,
		name:   name,
		addr:   cfg.Addr,
	}
}

// Start binds the listen address and serves in a new goroutine. Bind
// failures are returned directly.
func (m *ManagedServer) Start() error {
	if m.listener != nil {
		return fmt.Errorf("%s already started", m.name)
	}
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("%s failed to start: %w", m.name, err)
	}
	m.listener = ln
	m.done = make(chan error, 1)
	m.logger.Info("server listening", logging.Component(m.name), logging.Addr(ln.Addr().String()))

	go func() {
		err := m.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else if err != nil {
			m.logger.Error("server stopped", logging.Component(m.name), zap.Error(err))
		}
		m.done <- err
		close(m.done)
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (m *ManagedServer) Addr() string {
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.addr
}

// Done is closed once the server stops serving; it yields the serve error,
// if any. It is nil before Start.
func (m *ManagedServer) Done() <-chan error {
	return m.done
}

// Shutdown gracefully stops a started server.
func (m *ManagedServer) Shutdown(ctx context.Context) {
	if m.listener == nil {
		return
	}
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warn("shutdown error", logging.Component(m.name), zap.Error(err))
	}
}
