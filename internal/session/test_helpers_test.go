package session

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
	"github.com/vovakirdan/linechat-server/internal/store/flatfile"
)

// harness wires a credential service and directory the way the app does,
// with a real flat-file backend in a temp dir.
type harness struct {
	t     *testing.T
	creds *auth.Service
	dir   *directory.Directory
}

const submitName = "SUBMITNAME"

func newHarness(t *testing.T) *harness {
	t.Helper()

	creds := auth.NewService(flatfile.New(filepath.Join(t.TempDir(), "users.db")))
	if err := creds.Load(context.Background()); err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	return &harness{
		t:     t,
		creds: creds,
		dir:   directory.New(log.Nop()),
	}
}

// register creates an account directly, bypassing the wire protocol.
func (h *harness) register(id, password string) {
	h.t.Helper()
	if err := h.creds.Register(context.Background(), id, password, "name-"+id, id+"@example.com"); err != nil {
		h.t.Fatalf("register %s: %v", id, err)
	}
}

// connect starts a session handler over one end of a pipe and returns the
// client end.
func (h *harness) connect() *testClient {
	h.t.Helper()

	server, client := net.Pipe()
	go New(server, h.creds, h.dir, log.Nop()).Run(context.Background())

	tc := &testClient{
		t:     h.t,
		conn:  client,
		lines: make(chan string, 64),
	}
	go func() {
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			tc.lines <- sc.Text()
		}
		close(tc.lines)
	}()
	h.t.Cleanup(func() { _ = client.Close() })
	return tc
}

// login registers (if needed) and logs id in, consuming the handshake lines.
func (h *harness) login(id, password string) *testClient {
	h.t.Helper()

	if h.creds.IsAvailable(id) {
		h.register(id, password)
	}
	c := h.connect()
	c.expect(submitName)
	c.send("LOGIN " + id + " " + password)
	c.expect("NAMEACCEPTED " + id)
	c.expect("SYSTEM " + id + " has joined the chat.")
	c.expectPrefix("USERLIST ")
	return c
}

type testClient struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *testClient) next() string {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		if !ok {
			c.t.Fatal("connection closed while expecting a line")
		}
		return line
	case <-time.After(2 * time.Second):
		c.t.Fatal("timed out waiting for a line")
		return ""
	}
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	if got := c.next(); got != want {
		c.t.Fatalf("got %q, want %q", got, want)
	}
}

func (c *testClient) expectPrefix(prefix string) string {
	c.t.Helper()
	got := c.next()
	if len(got) < len(prefix) || got[:len(prefix)] != prefix {
		c.t.Fatalf("got %q, want prefix %q", got, prefix)
	}
	return got
}

// expectSilence asserts no line arrives for a short window.
func (c *testClient) expectSilence() {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		if ok {
			c.t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

// expectClosed waits for the server to close the connection.
func (c *testClient) expectClosed() {
	c.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.lines:
			if !ok {
				return
			}
		case <-deadline:
			c.t.Fatal("connection was not closed")
		}
	}
}
