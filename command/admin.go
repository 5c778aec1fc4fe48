package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hernuell/bellhop/highrise"
	"github.com/hernuell/bellhop/store"
)

// SetWelcome replaces the room's join greeting. An empty argument removes
// the greeting. Requires the control capability.
func SetWelcome(ctx context.Context, bo *Bot, call *Invocation) {
	if !call.Room.Control.Allow(ctx, call.User) {
		whisper(ctx, bo, call, "You don't have permission for that.")
		return
	}
	text := strings.TrimSpace(call.Args["text"])
	if err := call.Room.SetWelcome(text); err != nil {
		bo.Log.ErrorContext(ctx, "couldn't save settings",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
		)
		bo.Metrics.PersistErrors.Observe(1)
		whisper(ctx, bo, call, "Couldn't save the welcome message.")
		return
	}
	if text == "" {
		whisper(ctx, bo, call, "Welcome message removed.")
		return
	}
	whisper(ctx, bo, call, fmt.Sprintf("Welcome message set: %s", text))
}

// Loop configures or cancels the repeating room announcement. With no
// arguments it cancels; with an interval and text it (re)configures.
// Requires the control capability.
func Loop(ctx context.Context, bo *Bot, call *Invocation) {
	if !call.Room.Control.Allow(ctx, call.User) {
		whisper(ctx, bo, call, "You don't have permission for that.")
		return
	}
	interval, text := call.Args["interval"], strings.TrimSpace(call.Args["text"])
	if interval == "" {
		if call.Room.Broadcast.Cancel() {
			whisper(ctx, bo, call, "Loop stopped.")
		} else {
			whisper(ctx, bo, call, "No active loop.")
		}
		return
	}
	secs, err := strconv.Atoi(interval)
	if err != nil || secs <= 0 || text == "" {
		whisper(ctx, bo, call, "Usage: !loop <seconds> <message>, or !loop to stop.")
		return
	}
	r := call.Room
	r.Broadcast.Configure(ctx, time.Duration(secs)*time.Second, text, func(ctx context.Context, msg string) error {
		return r.Say(ctx, msg)
	})
	whisper(ctx, bo, call, fmt.Sprintf("Looping every %ds: %s", secs, text))
}

// Bots teleports the bot to the invoker and persists that position so the
// bot returns there on restart. Requires the control capability.
func Bots(ctx context.Context, bo *Bot, call *Invocation) {
	if !call.Room.Control.Allow(ctx, call.User) {
		whisper(ctx, bo, call, "You don't have permission for that.")
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
	var pos highrise.Position
	found := false
	for _, u := range users {
		if u.User.ID == call.User.ID {
			pos, found = u.Pos, true
			break
		}
	}
	if !found {
		whisper(ctx, bo, call, "Couldn't find your position.")
		return
	}
	if err := call.Room.Teleport(ctx, call.Room.Me.ID, pos); err != nil {
		bo.Log.ErrorContext(ctx, "couldn't teleport",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
		)
		whisper(ctx, bo, call, "Teleport failed.")
		return
	}
	err = call.Room.SetPosition(store.Position{X: pos.X, Y: pos.Y, Z: pos.Z, Facing: pos.Facing})
	if err != nil {
		bo.Log.ErrorContext(ctx, "couldn't save settings",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
		)
		bo.Metrics.PersistErrors.Observe(1)
	}
	whisper(ctx, bo, call, fmt.Sprintf("Coming to you. Position saved (%.1f, %.1f, %.1f).", pos.X, pos.Y, pos.Z))
}
