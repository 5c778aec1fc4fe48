// Package modlog records moderation actions per room.
//
// The log is a JSON document mapping action kinds to ordered entry lists,
// overwritten on every append. Entries are written only after the action
// itself succeeded, so a failed action leaves no record.
package modlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
)

// Kinds are the recognized action kinds, in the order they are reported.
var Kinds = []string{"mute", "unmute", "kick", "ban", "unban"}

// IsKind reports whether kind is a recognized action kind.
func IsKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Entry is one recorded moderation action.
type Entry struct {
	// Moderator is the display name of the acting moderator.
	Moderator string `json:"mod"`
	// Target is the display name of the affected user.
	Target string `json:"target"`
	// Action is the action kind.
	Action string `json:"action"`
	// Reason is the stated reason, if any.
	Reason string `json:"reason,omitempty"`
	// Duration is the action duration in minutes, if any.
	Duration int `json:"duration_minutes,omitempty"`
	// Time is the wall clock time of the action.
	Time string `json:"timestamp"`
}

// Stamp formats a time the way log entries record it.
func Stamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// Log is an append-style moderation log backed by one document.
type Log struct {
	mu      sync.Mutex
	path    string
	entries map[string][]Entry
}

// Open loads the log document at path. A missing document is an empty log.
// A corrupt document is an empty log along with the decode error; the
// caller logs and continues.
func Open(path string) (*Log, error) {
	l := &Log{path: path, entries: make(map[string][]Entry)}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return l, fmt.Errorf("couldn't read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &l.entries); err != nil {
		l.entries = make(map[string][]Entry)
		return l, fmt.Errorf("couldn't decode %s: %w", path, err)
	}
	return l, nil
}

// Append records an entry under its action kind and persists the log.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.Action] = append(l.entries[e.Action], e)
	return l.save()
}

// Last returns the most recent n entries of the given kind, oldest first.
func (l *Log) Last(kind string, n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	es := l.entries[kind]
	if len(es) > n {
		es = es[len(es)-n:]
	}
	r := make([]Entry, len(es))
	copy(r, es)
	return r
}

func (l *Log) save() error {
	b, err := json.Marshal(l.entries)
	if err != nil {
		return fmt.Errorf("couldn't encode %s: %w", l.path, err)
	}
	f, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*")
	if err != nil {
		return fmt.Errorf("couldn't create temp for %s: %w", l.path, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("couldn't write %s: %w", l.path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("couldn't write %s: %w", l.path, err)
	}
	if err := os.Rename(f.Name(), l.path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("couldn't replace %s: %w", l.path, err)
	}
	return nil
}
