package command

import (
	"context"
	"log/slog"

	"github.com/hernuell/bellhop/highrise"
	"github.com/hernuell/bellhop/metrics"
	"github.com/hernuell/bellhop/room"
)

// Invocation is a command invocation. An Invocation and its fields must not
// be modified or retained by any command.
type Invocation struct {
	// Room is the room where the invocation occurred.
	Room *room.Room
	// User is the sender.
	User highrise.User
	// Args is the parsed arguments to the command.
	Args map[string]string
}

// Func executes a command.
type Func func(ctx context.Context, bo *Bot, call *Invocation)

// Bot is the bot state as is visible to commands.
type Bot struct {
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// whisper sends a private reply to the invoker, logging delivery failures.
func whisper(ctx context.Context, bo *Bot, call *Invocation, text string) {
	if err := call.Room.Whisper(ctx, call.User.ID, text); err != nil {
		bo.Log.ErrorContext(ctx, "couldn't whisper",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
			slog.String("to", call.User.ID),
		)
	}
}
