// Package stats tracks per-user presence time and chat activity.
package stats

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hernuell/bellhop/store"
)

// Score is the engagement score formula. Presence contributes one point
// per Minutes minutes; each chat message contributes Messages points.
type Score struct {
	Minutes  float64
	Messages float64
}

// DefaultScore reproduces the formula the leaderboard has always used:
// a point per ten minutes plus a point per message.
var DefaultScore = Score{Minutes: 10, Messages: 1}

// User is one user's live usage state.
type User struct {
	// Join is the time of the current session's join, or nil while the
	// user is absent. It is never persisted.
	Join *time.Time
	// Total is the presence time accumulated across sessions.
	Total time.Duration
	// Messages is the number of chat messages seen from the user.
	Messages int
	// Name is the display name from the user's last event.
	Name string
}

// Entry is one row of a leaderboard snapshot.
type Entry struct {
	ID       string
	Name     string
	Total    time.Duration
	Messages int
	Score    float64
}

// Tracker maintains usage state for one room and persists it after every
// mutation. Entries are never deleted; a single room's population stays
// small enough that this is fine.
type Tracker struct {
	mu    sync.Mutex
	users map[string]*User

	score Score
	now   func() time.Time
	save  func(map[string]store.StatRecord) error
	log   *slog.Logger
}

// New creates a tracker. now and save may be nil, in which case the wall
// clock is used and saves are skipped; a zero score means DefaultScore.
func New(score Score, now func() time.Time, save func(map[string]store.StatRecord) error, log *slog.Logger) *Tracker {
	if score == (Score{}) {
		score = DefaultScore
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		users: make(map[string]*User),
		score: score,
		now:   now,
		save:  save,
		log:   log,
	}
}

// Seed installs records loaded from the stats document. All users start
// absent regardless of how the process last exited.
func (t *Tracker) Seed(recs map[string]store.StatRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, r := range recs {
		t.users[id] = &User{
			Total:    time.Duration(r.Total * float64(time.Second)),
			Messages: r.Messages,
			Name:     r.Name,
		}
	}
}

// Join records a user entering the room.
func (t *Tracker) Join(id, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	u := t.users[id]
	if u == nil {
		u = &User{}
		t.users[id] = u
	}
	u.Join = &now
	u.Name = name
	t.persist()
}

// Leave records a user leaving the room, folding the session into their
// total. Unknown or already-absent users are a no-op.
func (t *Tracker) Leave(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.users[id]
	if u == nil || u.Join == nil {
		return
	}
	u.Total += t.now().Sub(*u.Join)
	u.Join = nil
	t.persist()
}

// Chat records a chat message from a user, creating the record if the
// user has never been seen joining.
func (t *Tracker) Chat(id, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.users[id]
	if u == nil {
		u = &User{}
		t.users[id] = u
	}
	u.Messages++
	u.Name = name
	t.persist()
}

// Sync marks every listed user as present, as at session start. It
// persists once for the whole roster.
func (t *Tracker) Sync(roster map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, name := range roster {
		u := t.users[id]
		if u == nil {
			u = &User{}
			t.users[id] = u
		}
		u.Join = &now
		u.Name = name
	}
	t.persist()
}

// Fold advances every present user's total to now without ending their
// session, so snapshots reflect live presence time.
func (t *Tracker) Fold() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for _, u := range t.users {
		if u.Join == nil {
			continue
		}
		u.Total += now.Sub(*u.Join)
		j := now
		u.Join = &j
	}
	t.persist()
}

// Live returns a copy of a user's state with the current session's
// elapsed time folded into Total. The stored state is not mutated.
func (t *Tracker) Live(id string) (User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.users[id]
	if u == nil {
		return User{}, false
	}
	r := *u
	if u.Join != nil {
		r.Total += t.now().Sub(*u.Join)
	}
	return r, true
}

// Present returns the number of users currently in session.
func (t *Tracker) Present() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, u := range t.users {
		if u.Join != nil {
			n++
		}
	}
	return n
}

// Rank returns a user's 1-based position in descending score order, or 0
// if the user has no record.
func (t *Tracker) Rank(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.users[id] == nil {
		return 0
	}
	es := t.entries()
	for i, e := range es {
		if e.ID == id {
			return i + 1
		}
	}
	return 0
}

// Top returns the n highest-scoring users in descending order.
func (t *Tracker) Top(n int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	es := t.entries()
	if len(es) > n {
		es = es[:n]
	}
	return es
}

// Value computes the engagement score for a live state.
func (t *Tracker) Value(u User) float64 {
	return u.Total.Minutes()/t.score.Minutes + float64(u.Messages)*t.score.Messages
}

// entries lists all users by descending score. Called with the lock held.
func (t *Tracker) entries() []Entry {
	es := make([]Entry, 0, len(t.users))
	for id, u := range t.users {
		es = append(es, Entry{
			ID:       id,
			Name:     u.Name,
			Total:    u.Total,
			Messages: u.Messages,
			Score:    t.Value(*u),
		})
	}
	sort.SliceStable(es, func(i, j int) bool { return es[i].Score > es[j].Score })
	return es
}

// persist writes the current records through the save hook. Called with
// the lock held. Failures keep the in-memory state and are not retried.
func (t *Tracker) persist() {
	if t.save == nil {
		return
	}
	recs := make(map[string]store.StatRecord, len(t.users))
	for id, u := range t.users {
		recs[id] = store.StatRecord{
			Total:    u.Total.Seconds(),
			Messages: u.Messages,
			Name:     u.Name,
		}
	}
	if err := t.save(recs); err != nil {
		t.log.Error("couldn't save stats", slog.Any("err", err))
	}
}
