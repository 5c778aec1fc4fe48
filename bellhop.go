package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hernuell/bellhop/command"
	"github.com/hernuell/bellhop/emote"
	"github.com/hernuell/bellhop/highrise"
	"github.com/hernuell/bellhop/loop"
	"github.com/hernuell/bellhop/metrics"
	"github.com/hernuell/bellhop/modlog"
	"github.com/hernuell/bellhop/room"
	"github.com/hernuell/bellhop/stats"
	"github.com/hernuell/bellhop/store"
	"github.com/hernuell/bellhop/syncmap"
)

// reconnectWait is how long a room session waits before redialing.
const reconnectWait = 5 * time.Second

// Bot is the bot across all configured rooms.
type Bot struct {
	cfg     *Config
	metrics *metrics.Metrics
	// rooms holds the currently connected room sessions.
	rooms *syncmap.Map[string, *room.Room]
}

// New creates a bot from a loaded configuration.
func New(cfg *Config, mets *metrics.Metrics) *Bot {
	return &Bot{
		cfg:     cfg,
		metrics: mets,
		rooms:   syncmap.New[string, *room.Room](),
	}
}

// Run serves every configured room until the context closes. Room
// sessions that fail are redialed; the HTTP server or a config-level
// failure ends the run.
func (b *Bot) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	if b.cfg.HTTP.Listen != "" {
		group.Go(func() error {
			return b.api(ctx, b.cfg.HTTP.Listen, http.NewServeMux(), b.metrics.Collectors())
		})
	}
	for name, rc := range b.cfg.Rooms {
		group.Go(func() error {
			return b.serve(ctx, name, rc)
		})
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		// First error being context canceled means a normal shutdown in
		// response to a sigint.
		err = nil
	}
	return err
}

// serve keeps one room's session alive, redialing after failures.
func (b *Bot) serve(ctx context.Context, name string, rc *RoomCfg) error {
	log := slog.Default().With(slog.String("room", name))
	for {
		err := b.session(ctx, log, name, rc)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.ErrorContext(ctx, "session ended", slog.Any("err", err))
		b.metrics.TransportErrors.Observe(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectWait):
		}
	}
}

// session runs one connection's lifetime: load state, dial, restore the
// saved position, sync the roster, then serve events until the
// connection fails or the context closes.
func (b *Bot) session(ctx context.Context, log *slog.Logger, name string, rc *RoomCfg) error {
	st := store.New(rc.Stats, rc.Settings)
	recs, err := st.LoadStats()
	if err != nil {
		log.WarnContext(ctx, "stats reset", slog.Any("err", err))
	}
	set, err := st.LoadSettings()
	if err != nil {
		log.WarnContext(ctx, "settings reset", slog.Any("err", err))
	}
	ml, err := modlog.Open(rc.ModLog)
	if err != nil {
		log.WarnContext(ctx, "mod log reset", slog.Any("err", err))
	}

	hs, err := highrise.Dial(ctx, b.cfg.api(), rc.ID, rc.Token)
	if err != nil {
		return fmt.Errorf("couldn't dial room: %w", err)
	}
	defer hs.Close()
	log.InfoContext(ctx, "connected", slog.String("name", hs.RoomName()))

	// Loops and broadcasts live exactly as long as this session.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := stats.New(rc.Score.score(), time.Now, func(recs map[string]store.StatRecord) error {
		err := st.SaveStats(recs)
		if err != nil {
			b.metrics.PersistErrors.Observe(1)
		}
		return err
	}, log)
	tracker.Seed(recs)

	r := &room.Room{
		Name:      name,
		Me:        hs.Me(),
		Chat:      hs.Chat,
		Whisper:   hs.Whisper,
		Emote:     hs.Emote,
		Teleport:  hs.Teleport,
		Users:     hs.RoomUsers,
		Mute:      hs.Mute,
		Unmute:    hs.Unmute,
		Kick:      hs.Kick,
		Ban:       hs.Ban,
		Unban:     hs.Unban,
		Rate:      rc.Rate.limiter(),
		Stats:     tracker,
		Loops:     loop.NewManager(log),
		Broadcast: loop.NewBroadcast(log),
		ModLog:    ml,
		Control: room.NewPolicy(
			room.StaticNames(rc.Control),
			room.PrivilegeQuery(hs.PrivilegeFor),
		),
		Mods: room.NewPolicy(room.StaticNames(rc.Moderators)),
	}
	r.SetState(set, func(s store.Settings) error {
		err := st.SaveSettings(s)
		if err != nil {
			b.metrics.PersistErrors.Observe(1)
		}
		return err
	})

	b.rooms.Store(name, r)
	defer b.rooms.Delete(name)

	b.start(ctx, log, r)
	return b.events(ctx, log, hs, r)
}

// start does the session-start work: return to the saved position,
// reconcile the tracker with whoever is already in the room, and begin
// the bot's own idle animation.
func (b *Bot) start(ctx context.Context, log *slog.Logger, r *room.Room) {
	go loop.Ambient(ctx, log, func(ctx context.Context) (time.Duration, error) {
		e := emote.RandomPaid()
		if err := r.Emote(ctx, e.ID, ""); err != nil {
			return 0, err
		}
		return e.Dur, nil
	})
	if p := r.Position(); p != nil {
		pos := highrise.Position{X: p.X, Y: p.Y, Z: p.Z, Facing: p.Facing}
		if err := r.Teleport(ctx, r.Me.ID, pos); err != nil {
			log.ErrorContext(ctx, "couldn't restore position", slog.Any("err", err))
		}
	}
	users, err := r.Users(ctx)
	if err != nil {
		log.ErrorContext(ctx, "couldn't sync roster", slog.Any("err", err))
		return
	}
	roster := make(map[string]string, len(users))
	for _, u := range users {
		if u.User.ID == r.Me.ID {
			continue
		}
		roster[u.User.ID] = u.User.Name
	}
	r.Stats.Sync(roster)
}

// events is the session's event loop. Tracker mutations happen here so
// events for one user apply in order; command work runs in workers.
func (b *Bot) events(ctx context.Context, log *slog.Logger, hs *highrise.Session, r *room.Room) error {
	for {
		ev, err := hs.Recv(ctx)
		if err != nil {
			return err
		}
		b.metrics.EventCount.Observe(1)
		switch ev := ev.(type) {
		case highrise.Chat:
			if ev.User.ID == r.Me.ID || ev.Whisper {
				continue
			}
			r.Stats.Chat(ev.User.ID, ev.User.Name)
			go b.work(ctx, log, func(ctx context.Context) {
				b.message(ctx, log, r, ev.User, ev.Text)
			})
		case highrise.Joined:
			if ev.User.ID == r.Me.ID {
				continue
			}
			r.Stats.Join(ev.User.ID, ev.User.Name)
			go b.work(ctx, log, func(ctx context.Context) {
				b.greet(ctx, log, r, ev.User)
			})
		case highrise.Left:
			r.Stats.Leave(ev.User.ID)
			r.Loops.Stop(ev.User.ID)
		case highrise.Moved:
			// Position changes don't affect anything we track.
		}
	}
}

// work runs a handler, turning panics into logs so one bad message can't
// take down the session.
func (b *Bot) work(ctx context.Context, log *slog.Logger, f func(context.Context)) {
	defer func() {
		if v := recover(); v != nil {
			log.ErrorContext(ctx, "handler panicked", slog.Any("panic", v))
		}
	}()
	f(ctx)
}

// greet welcomes a user who joined the room.
func (b *Bot) greet(ctx context.Context, log *slog.Logger, r *room.Room, user highrise.User) {
	if w := r.Welcome(); w != "" {
		text := strings.ReplaceAll(w, "{username}", user.Name)
		if err := r.Say(ctx, text); err != nil {
			log.ErrorContext(ctx, "couldn't welcome", slog.Any("err", err))
		}
	}
	if err := r.Emote(ctx, emote.RandomDance().ID, user.ID); err != nil {
		log.ErrorContext(ctx, "couldn't greet", slog.Any("err", err))
	}
}

// message parses and dispatches one chat message.
func (b *Bot) message(ctx context.Context, log *slog.Logger, r *room.Room, user highrise.User, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	bo := &command.Bot{Log: log, Metrics: b.metrics}
	inv := &command.Invocation{Room: r, User: user}
	if strings.HasPrefix(text, "!") && r.Mods.Allow(ctx, user) {
		if c, args := findCommand(modCommands, text); c != nil {
			log.InfoContext(ctx, "command",
				slog.String("kind", "moderation"),
				slog.String("name", c.name),
				slog.String("user", user.ID),
			)
			b.metrics.CommandCount.Observe(1, c.name)
			inv.Args = args
			c.fn(ctx, bo, inv)
			return
		}
	}
	c, args := findCommand(chatCommands, text)
	if c == nil {
		return
	}
	log.InfoContext(ctx, "command",
		slog.String("kind", "regular"),
		slog.String("name", c.name),
		slog.String("user", user.ID),
	)
	b.metrics.CommandCount.Observe(1, c.name)
	inv.Args = args
	c.fn(ctx, bo, inv)
}
