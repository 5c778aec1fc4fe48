// Package loop runs the room's repeating background actions: per-user
// animation loops, the ambient animation loop, and the broadcast message
// loop.
//
// Cancellation is explicit. Stopping or superseding a loop cancels its
// handle synchronously, so at most one animation loop per user performs
// sends; a superseded loop never fires again, though its goroutine may
// still be draining its final wait.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStop ends a loop without logging. Cycle funcs return it (or wrap it)
// when the loop's target is gone.
var ErrStop = errors.New("stop looping")

// retryDelay is how long shared loops back off after a failed cycle.
const retryDelay = 5 * time.Second

// Func performs one cycle of a loop and returns how long to wait before
// the next cycle.
type Func func(ctx context.Context) (time.Duration, error)

type handle struct {
	name   string
	cancel context.CancelFunc
}

// Manager tracks at most one named animation loop per user.
type Manager struct {
	mu     sync.Mutex
	active map[string]*handle
	log    *slog.Logger
}

// NewManager creates a manager. log may be nil for the default logger.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		active: make(map[string]*handle),
		log:    log,
	}
}

// Start begins a loop for a user, superseding any loop the user already
// has. The old loop is cancelled before the new one begins.
func (m *Manager) Start(ctx context.Context, user, name string, fn Func) {
	ctx, cancel := context.WithCancel(ctx)
	h := &handle{name: name, cancel: cancel}
	m.mu.Lock()
	if old := m.active[user]; old != nil {
		old.cancel()
	}
	m.active[user] = h
	m.mu.Unlock()
	go m.run(ctx, user, h, fn)
}

// Stop cancels a user's loop and reports whether there was one. Stopping
// a user with no loop is a no-op.
func (m *Manager) Stop(user string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.active[user]
	if h == nil {
		return false
	}
	h.cancel()
	delete(m.active, user)
	return true
}

// Active returns the name of the user's running loop, if any.
func (m *Manager) Active(user string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.active[user]
	if h == nil {
		return "", false
	}
	return h.name, true
}

func (m *Manager) run(ctx context.Context, user string, h *handle, fn Func) {
	defer m.drop(user, h)
	t := time.NewTimer(0)
	defer t.Stop()
	<-t.C
	for {
		d, err := fn(ctx)
		switch {
		case err == nil: // do nothing
		case errors.Is(err, ErrStop), errors.Is(err, context.Canceled):
			return
		default:
			m.log.Error("animation loop send failed",
				slog.String("user", user),
				slog.String("name", h.name),
				slog.Any("err", err),
			)
		}
		t.Reset(d)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// drop removes a loop's entry if it is still the registered one.
func (m *Manager) drop(user string, h *handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[user] == h {
		delete(m.active, user)
	}
}

// Ambient runs fn forever, backing off a fixed delay after errors. It
// returns only when ctx is done.
func Ambient(ctx context.Context, log *slog.Logger, fn Func) {
	if log == nil {
		log = slog.Default()
	}
	t := time.NewTimer(0)
	defer t.Stop()
	<-t.C
	for {
		d, err := fn(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("ambient loop send failed", slog.Any("err", err))
			d = retryDelay
		}
		t.Reset(d)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Broadcast is the configurable repeating chat message. At most one runs
// at a time; configuring replaces the previous one.
type Broadcast struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	log    *slog.Logger
}

// NewBroadcast creates a broadcast loop holder. log may be nil for the
// default logger.
func NewBroadcast(log *slog.Logger) *Broadcast {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcast{log: log}
}

// Configure replaces the running message loop with one that sends text
// every interval, starting immediately.
func (b *Broadcast) Configure(ctx context.Context, interval time.Duration, text string, send func(context.Context, string) error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.cancel = cancel
	b.mu.Unlock()
	go func() {
		t := time.NewTimer(0)
		defer t.Stop()
		<-t.C
		for {
			if err := send(ctx, text); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				b.log.Error("message loop send failed", slog.Any("err", err))
				t.Reset(retryDelay)
			} else {
				t.Reset(interval)
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

// Cancel stops the running message loop and reports whether there was one.
func (b *Broadcast) Cancel() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel == nil {
		return false
	}
	b.cancel()
	b.cancel = nil
	return true
}
