package tcp

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/directory"
	"github.com/vovakirdan/linechat-server/internal/log"
	"github.com/vovakirdan/linechat-server/internal/session"
	"github.com/vovakirdan/linechat-server/internal/store/flatfile"
)

func startServer(t *testing.T, capacity int) net.Addr {
	t.Helper()

	creds := auth.NewService(flatfile.New(filepath.Join(t.TempDir(), "users.db")))
	if err := creds.Load(context.Background()); err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	dir := directory.New(log.Nop())
	srv := NewServer("127.0.0.1:0", session.NewLimiter(capacity), creds, dir, log.Nop())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve returned: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("serve did not stop")
		}
	})
	return l.Addr()
}

func dial(t *testing.T, addr net.Addr) (net.Conn, *bufio.Scanner) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, bufio.NewScanner(conn)
}

func readLine(t *testing.T, conn net.Conn, sc *bufio.Scanner) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if !sc.Scan() {
		t.Fatalf("expected a line, got error: %v", sc.Err())
	}
	return sc.Text()
}

func writeLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func TestServeRunsFullChatExchange(t *testing.T) {
	addr := startServer(t, 4)

	conn, sc := dial(t, addr)
	if got := readLine(t, conn, sc); got != "SUBMITNAME" {
		t.Fatalf("greeting = %q", got)
	}

	writeLine(t, conn, "REGISTER alice secret Alice alice@example.com")
	if got := readLine(t, conn, sc); got != "REGISTERED OK" {
		t.Fatalf("register reply = %q", got)
	}
	if got := readLine(t, conn, sc); got != "SUBMITNAME" {
		t.Fatalf("expected cue again, got %q", got)
	}

	writeLine(t, conn, "LOGIN alice secret")
	if got := readLine(t, conn, sc); got != "NAMEACCEPTED alice" {
		t.Fatalf("login reply = %q", got)
	}
	if got := readLine(t, conn, sc); got != "SYSTEM alice has joined the chat." {
		t.Fatalf("announce = %q", got)
	}
	if got := readLine(t, conn, sc); got != "USERLIST alice" {
		t.Fatalf("roster = %q", got)
	}

	writeLine(t, conn, "MSG hello")
	if got := readLine(t, conn, sc); got != "MESSAGE alice: hello" {
		t.Fatalf("broadcast = %q", got)
	}
}

func TestSessionPoolBoundsConcurrency(t *testing.T) {
	addr := startServer(t, 1)

	first, firstSC := dial(t, addr)
	if got := readLine(t, first, firstSC); got != "SUBMITNAME" {
		t.Fatalf("greeting = %q", got)
	}

	// The pool is full: the second connection sits in the backlog unserved.
	second, _ := dial(t, addr)
	_ = second.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	buf := make([]byte, 1)
	if n, err := second.Read(buf); err == nil || n > 0 {
		t.Fatal("second session served beyond pool capacity")
	}

	// Freeing the slot lets the queued connection proceed.
	_ = first.Close()
	secondSC := bufio.NewScanner(second)
	if got := readLine(t, second, secondSC); got != "SUBMITNAME" {
		t.Fatalf("greeting after slot freed = %q", got)
	}
}

func TestRunFailsWhenPortUnavailable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	creds := auth.NewService(flatfile.New(filepath.Join(t.TempDir(), "users.db")))
	dir := directory.New(log.Nop())
	srv := NewServer(l.Addr().String(), session.NewLimiter(1), creds, dir, log.Nop())

	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected bind failure on an occupied port")
	}
}
