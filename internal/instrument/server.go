// SPDX-License-Identifier: MPL-2.0

package instrument

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/corvidvm/corvid/pkg/types"
)

// User is the SSH user name clients connect as.
const User = "corvid"

type (
	// ThreadInfo describes one guest thread.
	ThreadInfo struct {
		ID     int64
		Name   string
		Status string
	}

	// Probe is the view of the runtime the server reports on.
	Probe interface {
		ContextID() string
		Threads() []ThreadInfo
		// Stacks pauses every thread and returns their backtraces.
		Stacks(ctx context.Context) (map[int64][]string, error)
		Gatherer() prometheus.Gatherer
	}

	// Config is immutable once the server is created.
	Config struct {
		Host string
		Port types.ListenPort
		// ShutdownTimeout bounds how long Stop waits for sessions to finish
		// before closing their connections.
		ShutdownTimeout time.Duration
		StartupTimeout  time.Duration
	}

	// Server is the instrumentation SSH server.
	Server struct {
		lifecycle

		cfg    Config
		probe  Probe
		logger *log.Logger
		token  string

		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		startedAt time.Time
	}
)

func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		ShutdownTimeout: 2 * time.Second,
		StartupTimeout:  5 * time.Second,
	}
}

// New creates a server; call Start to accept sessions.
func New(cfg Config, probe Probe, logger *log.Logger) (*Server, error) {
	defaults := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if err := cfg.Port.Validate(); err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		probe:  probe,
		logger: logger,
		token:  token,
	}
	s.initLifecycle()
	return s, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Token is the password clients must present.
func (s *Server) Token() string { return s.token }

// Start listens and blocks until the server accepts sessions, fails, or
// the startup timeout passes. After Start returns nil, Err reports
// asynchronous serve failures.
func (s *Server) Start(ctx context.Context) error {
	if err := s.toStarting(ctx); err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(int(s.cfg.Port)))
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		s.toFailed(fmt.Errorf("listen on %s: %w", addr, err))
		return s.LastError()
	}

	srv, err := wish.NewServer(
		wish.WithAddress(addr),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(func(ssh.Context, ssh.PublicKey) bool { return false }),
		wish.WithMiddleware(
			s.commandMiddleware(),
			s.logMiddleware(),
		),
	)
	if err != nil {
		_ = listener.Close()
		s.toFailed(fmt.Errorf("create SSH server: %w", err))
		return s.LastError()
	}

	s.srvMu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.startedAt = time.Now()
	s.srvMu.Unlock()

	s.wg.Add(1)
	go s.serve(srv, listener)

	select {
	case <-s.startedCh:
		s.logger.Info("instrumentation server started", "address", s.addr)
		return nil
	case err := <-s.errCh:
		s.toFailed(err)
		return err
	case <-startupCtx.Done():
		s.toFailed(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.LastError()
	}
}

func (s *Server) serve(srv *ssh.Server, listener net.Listener) {
	defer s.wg.Done()
	s.toRunning()

	err := srv.Serve(listener)
	if err == nil || errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	s.logger.Error("instrumentation server failed", "error", err)
	s.sendError(fmt.Errorf("serve: %w", err))
}

// Stop shuts the server down. Sessions still open after the shutdown
// timeout have their connections closed, so Stop always returns. Calling
// Stop more than once is safe.
func (s *Server) Stop() error {
	if !s.toStopping() {
		s.wg.Wait()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.srvMu.Lock()
	srv, listener := s.srv, s.listener
	s.srvMu.Unlock()

	var stopErr error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warn("sessions still open after shutdown timeout; closing connections", "timeout", s.cfg.ShutdownTimeout)
			}
			if cerr := srv.Close(); cerr != nil && !errors.Is(cerr, ssh.ErrServerClosed) && !errors.Is(cerr, net.ErrClosed) {
				stopErr = cerr
			}
		}
	}
	if listener != nil {
		_ = listener.Close()
	}

	s.wg.Wait()
	s.toStopped()
	close(s.errCh)
	s.logger.Info("instrumentation server stopped")
	return stopErr
}

// Err reports serve failures after a successful Start. It is closed by Stop.
func (s *Server) Err() <-chan error { return s.errCh }

// Address returns the bound host:port, empty before Start succeeds.
func (s *Server) Address() string {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

// Port returns the bound port, useful when configured with a fixed port
// that the caller did not record.
func (s *Server) Port() int {
	_, port, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) uptime() time.Duration {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	if ctx.User() != User || subtle.ConstantTimeCompare([]byte(password), []byte(s.token)) != 1 {
		s.logger.Warn("rejected instrumentation login", "user", ctx.User(), "remote", ctx.RemoteAddr().String())
		return false
	}
	return true
}
