// Package room defines the per-session state handed to every handler.
package room

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hernuell/bellhop/highrise"
	"github.com/hernuell/bellhop/loop"
	"github.com/hernuell/bellhop/modlog"
	"github.com/hernuell/bellhop/stats"
	"github.com/hernuell/bellhop/store"
)

// Room is one live room session as visible to handlers and commands.
// Everything that used to be process-global state lives here, so sessions
// are independent and tests construct rooms from fakes.
type Room struct {
	// Name is the room's configuration key.
	Name string
	// Me is the bot's own identity in the room.
	Me highrise.User

	// Chat sends a message to the whole room. Most callers want Say,
	// which respects the rate limit.
	Chat func(ctx context.Context, text string) error
	// Whisper sends a private message to one user.
	Whisper func(ctx context.Context, userID, text string) error
	// Emote plays an animation at a user; an empty target plays it at
	// the bot itself.
	Emote func(ctx context.Context, emoteID, targetID string) error
	// Teleport moves a user to a position.
	Teleport func(ctx context.Context, userID string, pos highrise.Position) error
	// Users returns the current roster.
	Users func(ctx context.Context) ([]highrise.RoomUser, error)
	// Mute, Unmute, Kick, Ban, and Unban are the moderation primitives.
	Mute   func(ctx context.Context, userID string, d time.Duration) error
	Unmute func(ctx context.Context, userID string) error
	Kick   func(ctx context.Context, userID string) error
	Ban    func(ctx context.Context, userID string, d time.Duration) error
	Unban  func(ctx context.Context, userID string) error

	// Rate is the rate limiter for room chat. Say waits on it.
	Rate *rate.Limiter

	// Stats is the room's usage tracker.
	Stats *stats.Tracker
	// Loops is the per-user animation loop manager.
	Loops *loop.Manager
	// Broadcast is the configurable message loop.
	Broadcast *loop.Broadcast
	// ModLog is the room's moderation log.
	ModLog *modlog.Log

	// Control authorizes bot-control commands.
	Control *Policy
	// Mods authorizes moderation commands.
	Mods *Policy

	// save persists the settings document.
	save func(store.Settings) error
	mu   sync.Mutex
	set  store.Settings
}

// SetState installs the loaded settings and the save hook.
func (r *Room) SetState(set store.Settings, save func(store.Settings) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = set
	r.save = save
}

// Say sends room chat after waiting for the rate limit.
func (r *Room) Say(ctx context.Context, text string) error {
	if r.Rate != nil {
		if err := r.Rate.Wait(ctx); err != nil {
			return err
		}
	}
	return r.Chat(ctx, text)
}

// Welcome returns the greeting template, or empty if none is set.
func (r *Room) Welcome() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Welcome
}

// SetWelcome replaces the greeting template and persists. An empty
// template removes the greeting.
func (r *Room) SetWelcome(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set.Welcome = text
	return r.persist()
}

// Position returns the saved bot position, or nil if none is set.
func (r *Room) Position() *store.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Position
}

// SetPosition replaces the saved bot position and persists.
func (r *Room) SetPosition(p store.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set.Position = &p
	return r.persist()
}

// persist writes the settings document. Called with the lock held.
func (r *Room) persist() error {
	if r.save == nil {
		return nil
	}
	return r.save(r.set)
}

// Source is one way to grant a capability. An error means the source
// couldn't answer, not that the user is denied.
type Source func(ctx context.Context, user highrise.User) (bool, error)

// Policy is a capability granted by any of several sources. It replaces
// the ad hoc per-command privilege checks; bot control and moderation
// each get their own instance.
type Policy struct {
	sources []Source
}

// NewPolicy creates a policy over the given sources.
func NewPolicy(sources ...Source) *Policy {
	return &Policy{sources: sources}
}

// Allow reports whether any source grants the capability to the user.
// Sources that fail are skipped, so a dead privilege query falls back to
// the remaining sources.
func (p *Policy) Allow(ctx context.Context, user highrise.User) bool {
	for _, src := range p.sources {
		ok, err := src(ctx, user)
		if err != nil {
			slog.WarnContext(ctx, "authorization source failed", slog.Any("err", err))
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// StaticNames grants by case-insensitive username allow-list.
func StaticNames(names []string) Source {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return func(ctx context.Context, user highrise.User) (bool, error) {
		return set[strings.ToLower(user.Name)], nil
	}
}

// PrivilegeQuery grants by the room's own moderator flag.
func PrivilegeQuery(q func(ctx context.Context, userID string) (highrise.Privilege, error)) Source {
	return func(ctx context.Context, user highrise.User) (bool, error) {
		p, err := q(ctx, user.ID)
		if err != nil {
			return false, err
		}
		return p.Moderator, nil
	}
}
