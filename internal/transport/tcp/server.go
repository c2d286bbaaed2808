// Package tcp accepts inbound chat connections and runs one session handler
// per connection against a bounded concurrency pool.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/directory"
	"github.com/vovakirdan/linechat-server/internal/session"
)

// Server is the connection acceptor.
type Server struct {
	addr    string
	limiter session.Limiter
	creds   *auth.Service
	dir     *directory.Directory
	log     *zerolog.Logger
}

// NewServer builds an acceptor bound to addr. The limiter is shared with any
// other transport so the session cap holds server-wide.
func NewServer(addr string, limiter session.Limiter, creds *auth.Service, dir *directory.Directory, logger *zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		limiter: limiter,
		creds:   creds,
		dir:     dir,
		log:     logger,
	}
}

// Run listens and accepts until ctx is cancelled. Failure to bind the
// listener is the one fatal startup condition; accept faults after that are
// logged and survived.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections from l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()
	defer l.Close()

	s.log.Info().Str("addr", l.Addr().String()).Msg("chat listener started")

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		// Blocks when the pool is exhausted; accepted connections wait
		// unserved until a session slot frees up.
		if err := s.limiter.Acquire(ctx); err != nil {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.limiter.Release()
			session.New(conn, s.creds, s.dir, s.log).Run(ctx)
		}()
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}
