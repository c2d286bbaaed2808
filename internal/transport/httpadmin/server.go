// Package httpadmin exposes the operational HTTP surface: health and stats
// endpoints plus a WebSocket bridge that carries the same line protocol as
// the TCP listener.
package httpadmin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/directory"
	"github.com/vovakirdan/linechat-server/internal/session"
)

// Server wraps the admin HTTP server.
type Server struct {
	http    *http.Server
	creds   *auth.Service
	dir     *directory.Directory
	limiter session.Limiter
	log     *zerolog.Logger
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	OnlineCount        int `json:"online_count"`
	RegisteredAccounts int `json:"registered_accounts"`
	SessionsInUse      int `json:"sessions_in_use"`
	SessionCapacity    int `json:"session_capacity"`
}

// OnlineResponse is the body of GET /api/online.
type OnlineResponse struct {
	Online []string `json:"online"`
}

// NewServer builds the admin server on addr.
func NewServer(addr string, creds *auth.Service, dir *directory.Directory, limiter session.Limiter, logger *zerolog.Logger) *Server {
	s := &Server{
		creds:   creds,
		dir:     dir,
		limiter: limiter,
		log:     logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), loggerMiddleware(logger))

	r.GET("/healthz", s.health)
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	api.GET("/online", s.online)
	api.GET("/stats", s.stats)

	s.http = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// ListenAndServe blocks serving the admin API.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) online(c *gin.Context) {
	c.JSON(http.StatusOK, OnlineResponse{Online: s.dir.UserList()})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		OnlineCount:        s.dir.OnlineCount(),
		RegisteredAccounts: s.creds.Count(),
		SessionsInUse:      s.limiter.InUse(),
		SessionCapacity:    s.limiter.Capacity(),
	})
}

// loggerMiddleware logs each request after it completes.
func loggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("admin http request")
	}
}
