// Package proto defines the newline-delimited text protocol spoken between
// chat clients and the server: command parsing on the way in, response
// rendering on the way out. One command or response per line, fields
// space-separated, the final field free to contain further spaces.
package proto

import "strings"

// Server-to-client lines without dynamic payload.
const (
	SubmitName   = "SUBMITNAME"
	RegisteredOK = "REGISTERED OK"
	IDOK         = "IDOK"
	IDTaken      = "IDTAKEN"
)

// Kind identifies a parsed client command.
type Kind int

const (
	// KindRegister creates a new account: REGISTER id pw name email.
	KindRegister Kind = iota
	// KindLogin authenticates an account: LOGIN id pw.
	KindLogin
	// KindCheckID asks whether an id is still free: CHECK_ID id.
	KindCheckID
	// KindMsg broadcasts to everyone online: MSG text.
	KindMsg
	// KindWhisper targets a single online user: WHISPER targetId text.
	KindWhisper
	// KindLogout ends the session: LOGOUT or /quit, case-insensitive.
	KindLogout
	// KindUnknown is any line matching no keyword; Raw carries the line.
	KindUnknown
)

// Command is one parsed client line. Only the fields relevant to Kind are
// populated; Malformed marks a recognized keyword with the wrong argument
// count.
type Command struct {
	Kind      Kind
	Malformed bool

	UserID      string
	Password    string
	DisplayName string
	Email       string
	Target      string
	Text        string
	Raw         string
}

// Parse classifies a single inbound line. Keyword matching is prefix-based so
// that a bare keyword without its trailing space falls through to KindUnknown,
// mirroring how clients have always been answered.
func Parse(line string) Command {
	switch {
	case strings.EqualFold(line, "LOGOUT") || strings.EqualFold(line, "/quit"):
		return Command{Kind: KindLogout}

	case strings.HasPrefix(line, "REGISTER "):
		p := strings.SplitN(line, " ", 5)
		if len(p) < 5 {
			return Command{Kind: KindRegister, Malformed: true}
		}
		return Command{
			Kind:        KindRegister,
			UserID:      p[1],
			Password:    p[2],
			DisplayName: p[3],
			Email:       p[4],
		}

	case strings.HasPrefix(line, "LOGIN "):
		p := strings.SplitN(line, " ", 3)
		if len(p) < 3 {
			return Command{Kind: KindLogin, Malformed: true}
		}
		return Command{Kind: KindLogin, UserID: p[1], Password: p[2]}

	case strings.HasPrefix(line, "CHECK_ID "):
		return Command{
			Kind:   KindCheckID,
			UserID: strings.TrimSpace(strings.TrimPrefix(line, "CHECK_ID ")),
		}

	case strings.HasPrefix(line, "MSG "):
		return Command{Kind: KindMsg, Text: strings.TrimSpace(strings.TrimPrefix(line, "MSG "))}

	case strings.HasPrefix(line, "WHISPER "):
		p := strings.SplitN(line, " ", 3)
		if len(p) < 3 {
			return Command{Kind: KindWhisper, Malformed: true}
		}
		return Command{Kind: KindWhisper, Target: p[1], Text: p[2]}

	default:
		return Command{Kind: KindUnknown, Raw: line}
	}
}

// Message renders a public chat line.
func Message(text string) string {
	return "MESSAGE " + text
}

// System renders a server notice.
func System(text string) string {
	return "SYSTEM " + text
}

// WhisperFrom renders a private message as seen by its recipient.
func WhisperFrom(sender, text string) string {
	return "WHISPERFROM " + sender + ": " + text
}

// UserList renders the online roster as a comma-separated id list. An empty
// roster renders with an empty payload.
func UserList(ids []string) string {
	return "USERLIST " + strings.Join(ids, ",")
}

// NameAccepted confirms a successful login.
func NameAccepted(id string) string {
	return "NAMEACCEPTED " + id
}

// RegisterFail reports a failed registration with a human-readable reason.
func RegisterFail(reason string) string {
	return "REGISTERFAIL " + reason
}
