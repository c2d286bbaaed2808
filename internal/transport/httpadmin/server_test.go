package httpadmin

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/directory"
	"github.com/vovakirdan/linechat-server/internal/log"
	"github.com/vovakirdan/linechat-server/internal/session"
	"github.com/vovakirdan/linechat-server/internal/store/flatfile"
)

func newTestServer(t *testing.T) (*Server, *auth.Service, *directory.Directory) {
	t.Helper()

	creds := auth.NewService(flatfile.New(filepath.Join(t.TempDir(), "users.db")))
	if err := creds.Load(context.Background()); err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	dir := directory.New(log.Nop())
	srv := NewServer("127.0.0.1:0", creds, dir, session.NewLimiter(4), log.Nop())
	return srv, creds, dir
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestOnlineEndpoint(t *testing.T) {
	srv, _, dir := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	dir.TryJoin("alice", make(chan string, 4))
	dir.TryJoin("bob", make(chan string, 4))

	resp, err := http.Get(ts.URL + "/api/online")
	if err != nil {
		t.Fatalf("get online: %v", err)
	}
	defer resp.Body.Close()

	var body OnlineResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Online) != 2 || body.Online[0] != "alice" || body.Online[1] != "bob" {
		t.Fatalf("online = %v", body.Online)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, creds, dir := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if err := creds.Register(context.Background(), "alice", "pw", "Alice", "a@e.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	dir.TryJoin("alice", make(chan string, 4))

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	defer resp.Body.Close()

	var body StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.OnlineCount != 1 || body.RegisteredAccounts != 1 || body.SessionCapacity != 4 {
		t.Fatalf("stats = %+v", body)
	}
}

func TestWebSocketBridgeSpeaksLineProtocol(t *testing.T) {
	srv, creds, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if err := creds.Register(context.Background(), "alice", "secret", "Alice", "a@e.com"); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	nc := websocket.NetConn(ctx, conn, websocket.MessageText)
	defer nc.Close()

	sc := bufio.NewScanner(nc)
	read := func() string {
		t.Helper()
		if !sc.Scan() {
			t.Fatalf("expected a line, got error: %v", sc.Err())
		}
		return sc.Text()
	}
	write := func(line string) {
		t.Helper()
		if _, err := nc.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
	}

	if got := read(); got != "SUBMITNAME" {
		t.Fatalf("greeting = %q", got)
	}
	write("LOGIN alice secret")
	if got := read(); got != "NAMEACCEPTED alice" {
		t.Fatalf("login reply = %q", got)
	}
	if got := read(); got != "SYSTEM alice has joined the chat." {
		t.Fatalf("announce = %q", got)
	}
	if got := read(); got != "USERLIST alice" {
		t.Fatalf("roster = %q", got)
	}

	write("MSG over websocket")
	if got := read(); got != "MESSAGE alice: over websocket" {
		t.Fatalf("broadcast = %q", got)
	}
}
