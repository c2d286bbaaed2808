// Package directory tracks who is online and how to reach them. It is the
// single source of truth for broadcast, whisper, and user-list fan-out: one
// addressable output channel per online user, all mutation and fan-out
// serialized under one lock.
package directory

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

// Directory is the process-wide registry of online users. A user id maps to
// at most one live output channel at any time.
type Directory struct {
	mu       sync.Mutex
	sessions map[string]chan<- string
	log      *zerolog.Logger
}

// New creates an empty directory.
func New(logger *zerolog.Logger) *Directory {
	return &Directory{
		sessions: make(map[string]chan<- string),
		log:      logger,
	}
}

// TryJoin atomically registers id with its output channel. It returns false
// and leaves the directory unchanged when the id is already online; this
// check-and-insert is the sole guard against duplicate concurrent logins.
func (d *Directory) TryJoin(id string, out chan<- string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, online := d.sessions[id]; online {
		return false
	}
	d.sessions[id] = out
	return true
}

// Leave removes id from the directory. Calling it for an id that is not
// present is a no-op.
func (d *Directory) Leave(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, id)
}

// Broadcast delivers a public chat line to everyone online at the instant of
// the call.
func (d *Directory) Broadcast(text string) {
	d.fanOut(proto.Message(text))
}

// SystemAnnounce delivers a server notice to everyone online.
func (d *Directory) SystemAnnounce(text string) {
	d.fanOut(proto.System(text))
}

// WhisperTo delivers a private line from sender to target. It returns false
// when the target is not online; undeliverable whispers are dropped, never
// queued.
func (d *Directory) WhisperTo(target, sender, text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	out, online := d.sessions[target]
	if !online {
		return false
	}
	d.sendLocked(target, out, proto.WhisperFrom(sender, text))
	return true
}

// BroadcastUserList sends the current roster to everyone online, as one
// consistent snapshot.
func (d *Directory) BroadcastUserList() {
	d.mu.Lock()
	defer d.mu.Unlock()

	line := proto.UserList(d.userListLocked())
	for id, out := range d.sessions {
		d.sendLocked(id, out, line)
	}
}

// UserList returns the ids of everyone currently online, sorted so that the
// same membership always renders identically.
func (d *Directory) UserList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userListLocked()
}

// OnlineCount reports the number of online users.
func (d *Directory) OnlineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Directory) userListLocked() []string {
	ids := make([]string, 0, len(d.sessions))
	for id := range d.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Directory) fanOut(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, out := range d.sessions {
		d.sendLocked(id, out, line)
	}
}

// sendLocked hands a line to one session without ever blocking the lock. A
// session whose buffer is full loses the line rather than stalling everyone
// else's fan-out.
func (d *Directory) sendLocked(id string, out chan<- string, line string) {
	select {
	case out <- line:
	default:
		d.log.Warn().Str("user_id", id).Msg("output buffer full, dropping line")
	}
}
