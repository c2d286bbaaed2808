package httpadmin

import (
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/linechat-server/internal/session"
)

// handleWS upgrades the request and runs a regular chat session over the
// socket. Each text message carries newline-terminated protocol lines, so the
// session handler sees the same byte stream it would on TCP. Bridged sessions
// count against the shared session pool.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("ws accept failed")
		return
	}

	nc := websocket.NetConn(c.Request.Context(), conn, websocket.MessageText)

	if err := s.limiter.Acquire(c.Request.Context()); err != nil {
		_ = nc.Close()
		return
	}
	defer s.limiter.Release()

	session.New(nc, s.creds, s.dir, s.log).Run(c.Request.Context())
}
