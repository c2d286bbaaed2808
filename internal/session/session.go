// Package session drives one client connection through the authentication
// handshake and the chat loop. A session owns its connection, a buffered
// output channel that the directory delivers into, and a writer goroutine
// that drains that channel onto the wire.
package session

import (
	"bufio"
	"context"
	"errors"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/directory"
	"github.com/vovakirdan/linechat-server/internal/proto"
)

// State names a position in the session lifecycle.
type State int

const (
	// StateUnauthenticated is the initial state: only REGISTER, LOGIN and
	// CHECK_ID are meaningful.
	StateUnauthenticated State = iota
	// StateAuthenticated is the chat loop, entered after a successful LOGIN.
	StateAuthenticated
	// StateTerminated is terminal; cleanup runs exactly once on the way in.
	StateTerminated
)

const (
	// outputBuffer bounds how many undelivered lines a slow client may hold.
	outputBuffer = 64
	// maxLineBytes caps a single inbound protocol line.
	maxLineBytes = 8192
)

// Handler is the per-connection state machine.
type Handler struct {
	conn  net.Conn
	creds *auth.Service
	dir   *directory.Directory
	log   zerolog.Logger

	out    chan string
	userID string // set on login, empty while unauthenticated
}

// New builds a handler for one accepted connection.
func New(conn net.Conn, creds *auth.Service, dir *directory.Directory, logger *zerolog.Logger) *Handler {
	return &Handler{
		conn:  conn,
		creds: creds,
		dir:   dir,
		log:   logger.With().Str("conn_id", uuid.NewString()).Logger(),
		out:   make(chan string, outputBuffer),
	}
}

// Run executes the state machine until termination and then cleans up. It
// blocks for the lifetime of the connection; closing the connection (locally
// or by the peer) is the only cancellation signal, surfacing here as end of
// stream.
func (h *Handler) Run(ctx context.Context) {
	pumpDone := make(chan struct{})
	go h.writePump(pumpDone)

	// An abrupt shutdown closes the socket out from under the read loop.
	stop := context.AfterFunc(ctx, func() { _ = h.conn.Close() })
	defer stop()

	sc := bufio.NewScanner(h.conn)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	h.log.Debug().Str("remote", h.conn.RemoteAddr().String()).Msg("session started")

	state := StateUnauthenticated
	for state != StateTerminated {
		switch state {
		case StateUnauthenticated:
			state = h.runUnauthenticated(ctx, sc)
		case StateAuthenticated:
			state = h.runAuthenticated(sc)
		}
	}

	h.terminate(pumpDone)
}

// runUnauthenticated cues the client with SUBMITNAME and dispatches one auth
// command per iteration. It leaves only on a successful login or end of
// stream; failed attempts keep the session in place for another try.
func (h *Handler) runUnauthenticated(ctx context.Context, sc *bufio.Scanner) State {
	for {
		h.send(proto.SubmitName)

		line, ok := h.readLine(sc)
		if !ok {
			return StateTerminated
		}

		cmd := proto.Parse(line)
		switch cmd.Kind {
		case proto.KindRegister:
			h.handleRegister(ctx, cmd)

		case proto.KindLogin:
			if h.handleLogin(cmd) {
				return StateAuthenticated
			}

		case proto.KindCheckID:
			if h.creds.IsAvailable(cmd.UserID) {
				h.send(proto.IDOK)
			} else {
				h.send(proto.IDTaken)
			}

		default:
			h.send(proto.System("Unknown command. Use REGISTER / LOGIN / CHECK_ID."))
		}
	}
}

func (h *Handler) handleRegister(ctx context.Context, cmd proto.Command) {
	if cmd.Malformed {
		h.send(proto.RegisterFail("Format: REGISTER id pw name email"))
		return
	}

	err := h.creds.Register(ctx, cmd.UserID, cmd.Password, cmd.DisplayName, cmd.Email)
	switch {
	case err == nil:
		h.log.Info().Str("user_id", cmd.UserID).Msg("account registered")
		h.send(proto.RegisteredOK)
	case errors.Is(err, auth.ErrDuplicateID):
		h.send(proto.RegisterFail("This ID is already in use."))
	default:
		h.log.Error().Err(err).Str("user_id", cmd.UserID).Msg("registration failed")
		h.send(proto.RegisterFail("Internal server error."))
	}
}

// handleLogin reports whether the session is now authenticated.
func (h *Handler) handleLogin(cmd proto.Command) bool {
	if cmd.Malformed {
		h.send(proto.System("Format: LOGIN id pw"))
		return false
	}

	if _, err := h.creds.Authenticate(cmd.UserID, cmd.Password); err != nil {
		h.send(proto.System("Login failed: Invalid ID or password."))
		return false
	}

	if !h.dir.TryJoin(cmd.UserID, h.out) {
		h.send(proto.System("This account is already logged in."))
		return false
	}

	h.userID = cmd.UserID
	h.log.Info().Str("user_id", cmd.UserID).Msg("user logged in")

	h.send(proto.NameAccepted(cmd.UserID))
	h.dir.SystemAnnounce(cmd.UserID + " has joined the chat.")
	h.dir.BroadcastUserList()
	return true
}

// runAuthenticated is the chat loop. Anything that matches no chat keyword is
// broadcast verbatim, a forgiving default the protocol has always had.
func (h *Handler) runAuthenticated(sc *bufio.Scanner) State {
	for {
		line, ok := h.readLine(sc)
		if !ok {
			return StateTerminated
		}

		cmd := proto.Parse(line)
		switch cmd.Kind {
		case proto.KindLogout:
			return StateTerminated

		case proto.KindMsg:
			if cmd.Text != "" {
				h.dir.Broadcast(h.userID + ": " + cmd.Text)
			}

		case proto.KindWhisper:
			h.handleWhisper(cmd)

		default:
			if line != "" {
				h.dir.Broadcast(h.userID + ": " + line)
			}
		}
	}
}

func (h *Handler) handleWhisper(cmd proto.Command) {
	if cmd.Malformed {
		h.send(proto.System("Format: WHISPER targetId message..."))
		return
	}

	if h.dir.WhisperTo(cmd.Target, h.userID, cmd.Text) {
		h.send(proto.System("[Whisper to " + cmd.Target + "] " + cmd.Text))
	} else {
		h.send(proto.System("The target user is not online."))
	}
}

// terminate runs cleanup exactly once. A session that never authenticated
// only closes its connection; an authenticated one first leaves the
// directory and tells everyone else.
func (h *Handler) terminate(pumpDone chan struct{}) {
	if h.userID != "" {
		h.dir.Leave(h.userID)
		h.dir.SystemAnnounce(h.userID + " has left the chat.")
		h.dir.BroadcastUserList()
		h.log.Info().Str("user_id", h.userID).Msg("user logged out")
	}

	// After Leave the directory can no longer deliver into this session, so
	// closing the channel is safe and flushes whatever is still buffered.
	close(h.out)
	<-pumpDone
	_ = h.conn.Close()

	h.log.Debug().Msg("session closed")
}

// readLine blocks for the next inbound line. It returns false on end of
// stream or any read fault; both route the caller into termination.
func (h *Handler) readLine(sc *bufio.Scanner) (string, bool) {
	if !sc.Scan() {
		if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
			h.log.Warn().Err(err).Msg("connection read fault")
		}
		return "", false
	}
	return sc.Text(), true
}

// send queues one line for this session's own client.
func (h *Handler) send(line string) {
	h.out <- line
}

// writePump drains the output channel onto the wire. Once a write fails the
// pump keeps draining so that senders never block, discarding lines until the
// channel closes.
func (h *Handler) writePump(done chan struct{}) {
	defer close(done)

	w := bufio.NewWriter(h.conn)
	broken := false
	for line := range h.out {
		if broken {
			continue
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			broken = true
			continue
		}
		if err := w.Flush(); err != nil {
			broken = true
		}
	}
}
