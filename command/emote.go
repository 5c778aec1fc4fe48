package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hernuell/bellhop/emote"
	"github.com/hernuell/bellhop/highrise"
	"github.com/hernuell/bellhop/loop"
)

// ToggleLoop starts a repeating animation on the invoker, or stops it if
// the same animation is already looping. A different animation replaces
// the running loop.
func ToggleLoop(ctx context.Context, bo *Bot, call *Invocation) {
	name := call.Args["name"]
	e, ok := emote.Lookup(name)
	if !ok {
		whisper(ctx, bo, call, fmt.Sprintf("Unknown emote: %s", name))
		return
	}
	if cur, ok := call.Room.Loops.Active(call.User.ID); ok && cur == e.ID {
		call.Room.Loops.Stop(call.User.ID)
		return
	}
	startLoop(ctx, bo, call, e.ID, func(ctx context.Context) (time.Duration, error) {
		return playAt(ctx, bo, call, e, call.User.ID)
	})
}

// StopLoop ends the invoker's animation loop. Doing nothing when no loop
// is running is deliberate; stop words are common chat.
func StopLoop(ctx context.Context, bo *Bot, call *Invocation) {
	call.Room.Loops.Stop(call.User.ID)
}

// Ulti starts a loop that plays a different random dance each cycle.
// Any loop already running for the invoker takes precedence.
func Ulti(ctx context.Context, bo *Bot, call *Invocation) {
	const name = "ulti"
	if _, ok := call.Room.Loops.Active(call.User.ID); ok {
		return
	}
	startLoop(ctx, bo, call, name, func(ctx context.Context) (time.Duration, error) {
		return playAt(ctx, bo, call, emote.RandomDance(), call.User.ID)
	})
}

// Single plays one animation at the sender. The dispatcher guarantees the
// name is in the catalog.
func Single(ctx context.Context, bo *Bot, call *Invocation) {
	e, ok := emote.Lookup(call.Args["name"])
	if !ok {
		return
	}
	if _, err := playAt(ctx, bo, call, e, call.User.ID); err != nil {
		bo.Log.ErrorContext(ctx, "couldn't emote",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
			slog.String("emote", e.ID),
		)
	}
}

// All plays one animation at every user in the room. Sends run
// concurrently; a failure doesn't stop the others.
func All(ctx context.Context, bo *Bot, call *Invocation) {
	name := call.Args["name"]
	e, ok := emote.Lookup(name)
	if !ok {
		whisper(ctx, bo, call, fmt.Sprintf("Unknown emote: %s", name))
		return
	}
	users, err := call.Room.Users(ctx)
	if err != nil {
		bo.Log.ErrorContext(ctx, "couldn't list users",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
		)
		whisper(ctx, bo, call, "Couldn't fetch the room roster.")
		return
	}
	var group errgroup.Group
	for _, u := range users {
		group.Go(func() error {
			_, err := playAt(ctx, bo, call, e, u.User.ID)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		whisper(ctx, bo, call, fmt.Sprintf("Some sends failed: %v", err))
	}
}

// Dance plays one random curated dance at the sender.
func Dance(ctx context.Context, bo *Bot, call *Invocation) {
	if _, err := playAt(ctx, bo, call, emote.RandomDance(), call.User.ID); err != nil {
		bo.Log.ErrorContext(ctx, "couldn't dance",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
		)
	}
}

func startLoop(ctx context.Context, bo *Bot, call *Invocation, name string, fn loop.Func) {
	call.Room.Loops.Start(ctx, call.User.ID, name, fn)
	bo.Log.InfoContext(ctx, "loop started",
		slog.String("room", call.Room.Name),
		slog.String("user", call.User.ID),
		slog.String("loop", name),
	)
}

// playAt sends one animation and reports the delay until the next cycle.
// A target who left the room terminates the loop.
func playAt(ctx context.Context, bo *Bot, call *Invocation, e emote.Emote, target string) (time.Duration, error) {
	err := call.Room.Emote(ctx, e.ID, target)
	switch {
	case err == nil:
		bo.Metrics.EmoteCount.Observe(1)
		return e.Dur, nil
	case errors.Is(err, highrise.ErrNotInRoom):
		return 0, loop.ErrStop
	default:
		return e.Dur, err
	}
}
