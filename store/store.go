// Package store persists the room's state documents.
//
// Each document is a whole JSON file read at startup and overwritten on
// every save. A missing or unreadable document loads as its empty default;
// startup never fails on persistence.
package store

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
)

// StatRecord is one user's persisted usage record. The live join time is
// runtime state and is never written.
type StatRecord struct {
	// Total is the accumulated presence time in seconds.
	Total float64 `json:"total_time"`
	// Messages is the number of chat messages seen from the user.
	Messages int `json:"msg_count"`
	// Name is the display name from the user's last event.
	Name string `json:"username"`
}

// Position is a saved spatial position in the room.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Facing string  `json:"facing"`
}

// Settings is the room's optional configuration document. A zero field
// means the corresponding feature is off.
type Settings struct {
	// Welcome is the greeting template. The literal {username} is replaced
	// with the joining user's name.
	Welcome string `json:"welcome_message,omitempty"`
	// Position is where the bot stands.
	Position *Position `json:"bot_position,omitempty"`
}

// Store reads and writes the stats and settings documents for one room.
type Store struct {
	stats    string
	settings string
}

// New creates a store over the given document paths.
func New(stats, settings string) *Store {
	return &Store{stats: stats, settings: settings}
}

// LoadStats reads the stats document. A missing document is an empty map.
// A corrupt document is an empty map along with the decode error; the
// caller logs and continues.
func (s *Store) LoadStats() (map[string]StatRecord, error) {
	r := make(map[string]StatRecord)
	err := read(s.stats, &r)
	if err != nil {
		return make(map[string]StatRecord), err
	}
	return r, nil
}

// SaveStats overwrites the stats document.
func (s *Store) SaveStats(r map[string]StatRecord) error {
	return write(s.stats, r)
}

// LoadSettings reads the settings document and validates it. Invalid
// fields revert to their defaults rather than failing the load.
func (s *Store) LoadSettings() (Settings, error) {
	var r Settings
	err := read(s.settings, &r)
	if err != nil {
		return Settings{}, err
	}
	if p := r.Position; p != nil {
		if bad(p.X) || bad(p.Y) || bad(p.Z) {
			r.Position = nil
		} else if p.Facing == "" {
			p.Facing = "FrontRight"
		}
	}
	return r, nil
}

// SaveSettings overwrites the settings document.
func (s *Store) SaveSettings(r Settings) error {
	return write(s.settings, r)
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func read(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("couldn't read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("couldn't decode %s: %w", path, err)
	}
	return nil
}

// write marshals v and renames a temp file over path so a crash mid-write
// leaves the old document intact.
func write(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("couldn't encode %s: %w", path, err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("couldn't create temp for %s: %w", path, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("couldn't write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("couldn't write %s: %w", path, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("couldn't replace %s: %w", path, err)
	}
	return nil
}
