// Package history records a conversation and persists it as JSON.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Senders of entries.
const (
	User = "user"
	Bot  = "bot"
)

// DefaultFile is the conventional name of a history file.
const DefaultFile = "rulebot_chat_history.json"

// Entry is one message in a conversation.
type Entry struct {
	// Time is the time the message was recorded, in RFC 3339 format. It is
	// kept as text so that files written by other tools load unchanged.
	Time   string `json:"time"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	// Session identifies the conversation that recorded the entry.
	Session string `json:"session,omitempty"`
}

// Format renders an entry for display as "[time] sender: text".
func Format(e Entry) string {
	who := e.Sender
	if who == "" {
		who = User
	}
	return "[" + e.Time + "] " + who + ": " + e.Text
}

// Log is an in-memory conversation history. It is not safe for concurrent
// use.
type Log struct {
	entries []Entry
	session string
	now     func() time.Time
}

// Option is an option used when creating a log.
type Option interface {
	logOption(*Log)
}

type (
	sessionopt string
	clockopt   func() time.Time
)

func (o sessionopt) logOption(l *Log) { l.session = string(o) }
func (o clockopt) logOption(l *Log)   { l.now = o }

// WithSession sets the session ID stamped on new entries. The default is a
// random UUID.
func WithSession(id string) Option {
	return sessionopt(id)
}

// WithClock sets the clock used to timestamp entries.
func WithClock(now func() time.Time) Option {
	return clockopt(now)
}

// NewLog creates an empty log.
func NewLog(opts ...Option) *Log {
	l := Log{session: uuid.NewString(), now: time.Now}
	for _, opt := range opts {
		opt.logOption(&l)
	}
	return &l
}

// Session returns the session ID of the log.
func (l *Log) Session() string {
	return l.session
}

// Append records a message and returns the new entry.
func (l *Log) Append(sender, text string) Entry {
	e := Entry{
		Time:    l.now().Format(time.RFC3339),
		Sender:  sender,
		Text:    text,
		Session: l.session,
	}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a copy of all entries in order.
func (l *Log) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Tail returns a copy of the last n entries, or all of them if there are
// fewer than n.
func (l *Log) Tail(n int) []Entry {
	if n < 0 {
		n = 0
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	return append([]Entry(nil), l.entries[len(l.entries)-n:]...)
}

// Merge appends entries loaded from elsewhere, keeping their own timestamps
// and sessions.
func (l *Log) Merge(es []Entry) {
	l.entries = append(l.entries, es...)
}

// Clear removes all entries.
func (l *Log) Clear() {
	l.entries = nil
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// ErrNoHistory is the error returned by Load when the file does not exist.
var ErrNoHistory = errors.New("no saved history")

// Save writes entries to path as indented JSON, creating parent directories
// as needed.
func Save(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// Load reads entries written by Save. If the file does not exist, the error
// wraps ErrNoHistory. A file that is not a JSON list of entries is an error.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoHistory, path)
		}
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	var es []Entry
	if err := json.Unmarshal(data, &es); err != nil {
		return nil, fmt.Errorf("failed to load history from %s: %w", path, err)
	}
	return es, nil
}
