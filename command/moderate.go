package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hernuell/bellhop/highrise"
	"github.com/hernuell/bellhop/modlog"
)

// Mute silences a user for a number of minutes. Usage:
// !mute <name> <minutes> <reason>.
func Mute(ctx context.Context, bo *Bot, call *Invocation) {
	fields := strings.Fields(call.Args["args"])
	if len(fields) < 3 {
		whisper(ctx, bo, call, "Usage: !mute <name> <minutes> <reason>")
		return
	}
	mins, err := strconv.Atoi(fields[1])
	if err != nil || mins <= 0 {
		whisper(ctx, bo, call, "Usage: !mute <name> <minutes> <reason>")
		return
	}
	target, ok := resolve(ctx, bo, call, fields[0])
	if !ok {
		return
	}
	reason := strings.Join(fields[2:], " ")
	if err := call.Room.Mute(ctx, target.ID, time.Duration(mins)*time.Minute); err != nil {
		report(ctx, bo, call, "mute", target, err)
		return
	}
	record(ctx, bo, call, modlog.Entry{
		Moderator: call.User.Name,
		Target:    target.Name,
		Action:    "mute",
		Reason:    reason,
		Duration:  mins,
	})
	whisper(ctx, bo, call, fmt.Sprintf("Muted %s for %d minutes: %s", target.Name, mins, reason))
}

// Unmute lifts a mute. Usage: !unmute <name>.
func Unmute(ctx context.Context, bo *Bot, call *Invocation) {
	fields := strings.Fields(call.Args["args"])
	if len(fields) != 1 {
		whisper(ctx, bo, call, "Usage: !unmute <name>")
		return
	}
	target, ok := resolve(ctx, bo, call, fields[0])
	if !ok {
		return
	}
	if err := call.Room.Unmute(ctx, target.ID); err != nil {
		report(ctx, bo, call, "unmute", target, err)
		return
	}
	record(ctx, bo, call, modlog.Entry{Moderator: call.User.Name, Target: target.Name, Action: "unmute"})
	whisper(ctx, bo, call, fmt.Sprintf("Unmuted %s.", target.Name))
}

// Kick removes a user from the room. Usage: !kick <name>.
func Kick(ctx context.Context, bo *Bot, call *Invocation) {
	fields := strings.Fields(call.Args["args"])
	if len(fields) != 1 {
		whisper(ctx, bo, call, "Usage: !kick <name>")
		return
	}
	target, ok := resolve(ctx, bo, call, fields[0])
	if !ok {
		return
	}
	if err := call.Room.Kick(ctx, target.ID); err != nil {
		report(ctx, bo, call, "kick", target, err)
		return
	}
	record(ctx, bo, call, modlog.Entry{Moderator: call.User.Name, Target: target.Name, Action: "kick"})
	whisper(ctx, bo, call, fmt.Sprintf("Kicked %s.", target.Name))
}

// Ban bars a user from the room, permanently or for a number of minutes.
// Usage: !ban <name> [minutes].
func Ban(ctx context.Context, bo *Bot, call *Invocation) {
	fields := strings.Fields(call.Args["args"])
	if len(fields) < 1 || len(fields) > 2 {
		whisper(ctx, bo, call, "Usage: !ban <name> [minutes]")
		return
	}
	mins := 0
	if len(fields) == 2 {
		var err error
		mins, err = strconv.Atoi(fields[1])
		if err != nil || mins <= 0 {
			whisper(ctx, bo, call, "Usage: !ban <name> [minutes]")
			return
		}
	}
	target, ok := resolve(ctx, bo, call, fields[0])
	if !ok {
		return
	}
	if err := call.Room.Ban(ctx, target.ID, time.Duration(mins)*time.Minute); err != nil {
		report(ctx, bo, call, "ban", target, err)
		return
	}
	record(ctx, bo, call, modlog.Entry{
		Moderator: call.User.Name,
		Target:    target.Name,
		Action:    "ban",
		Duration:  mins,
	})
	if mins > 0 {
		whisper(ctx, bo, call, fmt.Sprintf("Banned %s for %d minutes.", target.Name, mins))
	} else {
		whisper(ctx, bo, call, fmt.Sprintf("Banned %s.", target.Name))
	}
}

// Unban reports that lifting bans isn't available through chat.
func Unban(ctx context.Context, bo *Bot, call *Invocation) {
	whisper(ctx, bo, call, "The unban command is not supported yet.")
}

// LogTail whispers the most recent entries of one moderation kind.
// Usage: !log <kind>.
func LogTail(ctx context.Context, bo *Bot, call *Invocation) {
	fields := strings.Fields(call.Args["args"])
	if len(fields) != 1 {
		whisper(ctx, bo, call, fmt.Sprintf("Usage: !log <%s>", strings.Join(modlog.Kinds, "|")))
		return
	}
	kind := strings.ToLower(fields[0])
	if !modlog.IsKind(kind) {
		whisper(ctx, bo, call, fmt.Sprintf("Usage: !log <%s>", strings.Join(modlog.Kinds, "|")))
		return
	}
	entries := call.Room.ModLog.Last(kind, 5)
	if len(entries) == 0 {
		whisper(ctx, bo, call, fmt.Sprintf("No %s logs.", kind))
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %s logs:", kind)
	for _, e := range entries {
		fmt.Fprintf(&sb, "\n%s — %s -> %s", e.Time, e.Moderator, e.Target)
		if e.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", e.Reason)
		}
	}
	whisper(ctx, bo, call, sb.String())
}

// resolve finds a user by name in the live roster, case-insensitively. A
// leading @ is ignored. Failure is whispered to the invoker.
func resolve(ctx context.Context, bo *Bot, call *Invocation, name string) (highrise.User, bool) {
	name = strings.TrimPrefix(name, "@")
	users, err := call.Room.Users(ctx)
	if err != nil {
		bo.Log.ErrorContext(ctx, "couldn't list users",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
		)
		whisper(ctx, bo, call, "Couldn't fetch the room roster.")
		return highrise.User{}, false
	}
	for _, u := range users {
		if strings.EqualFold(u.User.Name, name) {
			return u.User, true
		}
	}
	whisper(ctx, bo, call, fmt.Sprintf("User not found: %s", name))
	return highrise.User{}, false
}

// report whispers a failed moderation action. No log entry is written for
// actions that didn't happen.
func report(ctx context.Context, bo *Bot, call *Invocation, action string, target highrise.User, err error) {
	bo.Log.ErrorContext(ctx, "moderation failed",
		slog.Any("err", err),
		slog.String("room", call.Room.Name),
		slog.String("action", action),
		slog.String("target", target.ID),
	)
	whisper(ctx, bo, call, fmt.Sprintf("Couldn't %s %s: %v", action, target.Name, err))
}

// record appends to the moderation log with the current timestamp.
func record(ctx context.Context, bo *Bot, call *Invocation, e modlog.Entry) {
	e.Time = modlog.Stamp(time.Now())
	if err := call.Room.ModLog.Append(e); err != nil {
		bo.Log.ErrorContext(ctx, "couldn't write mod log",
			slog.Any("err", err),
			slog.String("room", call.Room.Name),
		)
		bo.Metrics.PersistErrors.Observe(1)
	}
}
