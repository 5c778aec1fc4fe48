package command_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hernuell/bellhop/command"
	"github.com/hernuell/bellhop/highrise"
	"github.com/hernuell/bellhop/loop"
	"github.com/hernuell/bellhop/metrics"
	"github.com/hernuell/bellhop/modlog"
	"github.com/hernuell/bellhop/room"
	"github.com/hernuell/bellhop/stats"
	"github.com/hernuell/bellhop/store"
)

// recorder is a fake room transport that records every call.
type recorder struct {
	mu       sync.Mutex
	whispers []string
	emotes   []string
	mutes    []string
	usersErr error
	muteErr  error
	roster   []highrise.RoomUser
}

func (rec *recorder) room(t *testing.T) *room.Room {
	t.Helper()
	dir := t.TempDir()
	ml, err := modlog.Open(filepath.Join(dir, "modlog.json"))
	if err != nil {
		t.Fatal(err)
	}
	r := &room.Room{
		Name: "test",
		Me:   highrise.User{ID: "bot", Name: "bellhop"},
		Chat: func(ctx context.Context, text string) error { return nil },
		Whisper: func(ctx context.Context, userID, text string) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.whispers = append(rec.whispers, text)
			return nil
		},
		Emote: func(ctx context.Context, emoteID, targetID string) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.emotes = append(rec.emotes, emoteID+"@"+targetID)
			return nil
		},
		Teleport: func(ctx context.Context, userID string, pos highrise.Position) error { return nil },
		Users: func(ctx context.Context) ([]highrise.RoomUser, error) {
			return rec.roster, rec.usersErr
		},
		Mute: func(ctx context.Context, userID string, d time.Duration) error {
			if rec.muteErr != nil {
				return rec.muteErr
			}
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.mutes = append(rec.mutes, userID)
			return nil
		},
		Unmute:    func(ctx context.Context, userID string) error { return nil },
		Kick:      func(ctx context.Context, userID string) error { return nil },
		Ban:       func(ctx context.Context, userID string, d time.Duration) error { return nil },
		Unban:     func(ctx context.Context, userID string) error { return nil },
		Stats:     stats.New(stats.DefaultScore, time.Now, nil, slog.Default()),
		Loops:     loop.NewManager(slog.Default()),
		Broadcast: loop.NewBroadcast(slog.Default()),
		ModLog:    ml,
		Control:   room.NewPolicy(room.StaticNames([]string{"admin"})),
		Mods:      room.NewPolicy(room.StaticNames([]string{"admin"})),
	}
	r.SetState(store.Settings{}, func(store.Settings) error { return nil })
	return r
}

func (rec *recorder) lastWhisper() string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.whispers) == 0 {
		return ""
	}
	return rec.whispers[len(rec.whispers)-1]
}

func testBot() *command.Bot {
	return &command.Bot{Log: slog.Default(), Metrics: metrics.Discard()}
}

func invoke(r *room.Room, user highrise.User, args map[string]string) *command.Invocation {
	return &command.Invocation{Room: r, User: user, Args: args}
}

var admin = highrise.User{ID: "a1", Name: "admin"}
var guest = highrise.User{ID: "g1", Name: "guest"}

func TestSetWelcomePermission(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	bo := testBot()
	command.SetWelcome(context.Background(), bo, invoke(r, guest, map[string]string{"text": "hi"}))
	if r.Welcome() != "" {
		t.Errorf("unauthorized user changed the welcome to %q", r.Welcome())
	}
	if !strings.Contains(rec.lastWhisper(), "permission") {
		t.Errorf("wanted a permission whisper, got %q", rec.lastWhisper())
	}
	command.SetWelcome(context.Background(), bo, invoke(r, admin, map[string]string{"text": "hi {username}"}))
	if r.Welcome() != "hi {username}" {
		t.Errorf("welcome = %q after authorized set", r.Welcome())
	}
	command.SetWelcome(context.Background(), bo, invoke(r, admin, map[string]string{}))
	if r.Welcome() != "" {
		t.Errorf("welcome = %q after clearing", r.Welcome())
	}
}

func TestLoopCommandValidation(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	bo := testBot()
	command.Loop(context.Background(), bo, invoke(r, admin, map[string]string{"interval": "ten", "text": "hi"}))
	if !strings.Contains(rec.lastWhisper(), "Usage") {
		t.Errorf("non-numeric interval should whisper usage, got %q", rec.lastWhisper())
	}
	command.Loop(context.Background(), bo, invoke(r, admin, map[string]string{}))
	if !strings.Contains(rec.lastWhisper(), "No active loop") {
		t.Errorf("cancel with nothing running should say so, got %q", rec.lastWhisper())
	}
	command.Loop(context.Background(), bo, invoke(r, admin, map[string]string{"interval": "10", "text": "hello"}))
	if !strings.Contains(rec.lastWhisper(), "Looping every 10s") {
		t.Errorf("configure should confirm, got %q", rec.lastWhisper())
	}
	command.Loop(context.Background(), bo, invoke(r, admin, map[string]string{}))
	if !strings.Contains(rec.lastWhisper(), "Loop stopped") {
		t.Errorf("cancel should confirm, got %q", rec.lastWhisper())
	}
}

func TestToggleLoopUnknownEmote(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	command.ToggleLoop(context.Background(), testBot(), invoke(r, guest, map[string]string{"name": "nosuch"}))
	if !strings.Contains(rec.lastWhisper(), "Unknown emote") {
		t.Errorf("wanted an unknown-emote whisper, got %q", rec.lastWhisper())
	}
	if _, ok := r.Loops.Active(guest.ID); ok {
		t.Error("no loop should start for an unknown emote")
	}
}

func TestToggleLoopStartStop(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	bo := testBot()
	command.ToggleLoop(context.Background(), bo, invoke(r, guest, map[string]string{"name": "macarena"}))
	if _, ok := r.Loops.Active(guest.ID); !ok {
		t.Fatal("loop should be running after toggle on")
	}
	command.ToggleLoop(context.Background(), bo, invoke(r, guest, map[string]string{"name": "MACARENA"}))
	if name, ok := r.Loops.Active(guest.ID); ok {
		t.Errorf("loop %q still running after toggle off", name)
	}
}

func TestUltiYieldsToRunningLoop(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	bo := testBot()
	command.ToggleLoop(context.Background(), bo, invoke(r, guest, map[string]string{"name": "macarena"}))
	command.Ulti(context.Background(), bo, invoke(r, guest, nil))
	name, ok := r.Loops.Active(guest.ID)
	if !ok {
		t.Fatal("loop should still be running")
	}
	if name != "dance-macarena" {
		t.Errorf("ulti replaced a running loop: active = %q", name)
	}
}

func TestUltiStarts(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	bo := testBot()
	command.Ulti(context.Background(), bo, invoke(r, guest, nil))
	if name, ok := r.Loops.Active(guest.ID); !ok || name != "ulti" {
		t.Errorf("wanted the ulti loop running, got %q, %t", name, ok)
	}
	// Repeating the command leaves the same loop in place.
	command.Ulti(context.Background(), bo, invoke(r, guest, nil))
	if name, ok := r.Loops.Active(guest.ID); !ok || name != "ulti" {
		t.Errorf("ulti should be idempotent, got %q, %t", name, ok)
	}
}

func TestStopLoopIdle(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	command.StopLoop(context.Background(), testBot(), invoke(r, guest, nil))
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.whispers) != 0 || len(rec.emotes) != 0 {
		t.Errorf("stop with no loop must be silent: whispers=%v emotes=%v", rec.whispers, rec.emotes)
	}
}

func TestMuteMalformed(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	bo := testBot()
	for _, args := range []string{"", "guest", "guest ten spam", "guest 0 spam"} {
		command.Mute(context.Background(), bo, invoke(r, admin, map[string]string{"args": args}))
		if !strings.Contains(rec.lastWhisper(), "Usage") {
			t.Errorf("Mute(%q) should whisper usage, got %q", args, rec.lastWhisper())
		}
	}
	if len(rec.mutes) != 0 {
		t.Errorf("malformed commands reached the transport: %v", rec.mutes)
	}
}

func TestMuteUnresolvedTarget(t *testing.T) {
	rec := &recorder{roster: []highrise.RoomUser{{User: guest}}}
	r := rec.room(t)
	command.Mute(context.Background(), testBot(), invoke(r, admin, map[string]string{"args": "nobody 5 spam"}))
	if !strings.Contains(rec.lastWhisper(), "not found") {
		t.Errorf("wanted a not-found whisper, got %q", rec.lastWhisper())
	}
	if len(rec.mutes) != 0 {
		t.Errorf("unresolved target reached the transport: %v", rec.mutes)
	}
	if got := r.ModLog.Last("mute", 5); len(got) != 0 {
		t.Errorf("no log entry should be written: %v", got)
	}
}

func TestMuteSuccessAndLog(t *testing.T) {
	rec := &recorder{roster: []highrise.RoomUser{{User: guest}}}
	r := rec.room(t)
	command.Mute(context.Background(), testBot(), invoke(r, admin, map[string]string{"args": "@GUEST 5 spamming links"}))
	if len(rec.mutes) != 1 || rec.mutes[0] != guest.ID {
		t.Fatalf("mute transport calls = %v, want [%s]", rec.mutes, guest.ID)
	}
	got := r.ModLog.Last("mute", 5)
	if len(got) != 1 {
		t.Fatalf("log entries = %d, want 1", len(got))
	}
	e := got[0]
	if e.Moderator != "admin" || e.Target != "guest" || e.Duration != 5 || e.Reason != "spamming links" {
		t.Errorf("log entry = %+v", e)
	}
}

func TestMuteRPCFailureNoLog(t *testing.T) {
	rec := &recorder{
		roster:  []highrise.RoomUser{{User: guest}},
		muteErr: errors.New("server said no"),
	}
	r := rec.room(t)
	command.Mute(context.Background(), testBot(), invoke(r, admin, map[string]string{"args": "guest 5 spam"}))
	if !strings.Contains(rec.lastWhisper(), "Couldn't mute") {
		t.Errorf("wanted a failure whisper, got %q", rec.lastWhisper())
	}
	if got := r.ModLog.Last("mute", 5); len(got) != 0 {
		t.Errorf("failed action must not be logged: %v", got)
	}
}

func TestUnbanUnsupported(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	command.Unban(context.Background(), testBot(), invoke(r, admin, map[string]string{"args": "guest"}))
	if !strings.Contains(rec.lastWhisper(), "not supported") {
		t.Errorf("wanted the not-supported whisper, got %q", rec.lastWhisper())
	}
}

func TestLogTail(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	bo := testBot()
	command.LogTail(context.Background(), bo, invoke(r, admin, map[string]string{"args": "frobnicate"}))
	if !strings.Contains(rec.lastWhisper(), "Usage") {
		t.Errorf("unknown kind should whisper usage, got %q", rec.lastWhisper())
	}
	command.LogTail(context.Background(), bo, invoke(r, admin, map[string]string{"args": "kick"}))
	if !strings.Contains(rec.lastWhisper(), "No kick logs") {
		t.Errorf("empty log should say so, got %q", rec.lastWhisper())
	}
	for i := 0; i < 7; i++ {
		err := r.ModLog.Append(modlog.Entry{
			Moderator: "admin",
			Target:    "guest",
			Action:    "kick",
			Time:      modlog.Stamp(time.Date(2024, 5, 1, 12, i, 0, 0, time.UTC)),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	command.LogTail(context.Background(), bo, invoke(r, admin, map[string]string{"args": "KICK"}))
	if got := strings.Count(rec.lastWhisper(), "admin -> guest"); got != 5 {
		t.Errorf("readback shows %d entries, want 5:\n%s", got, rec.lastWhisper())
	}
}

func TestStatsWhispersLeaderboard(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	r.Stats.Chat(guest.ID, guest.Name)
	r.Stats.Chat(guest.ID, guest.Name)
	r.Stats.Chat(admin.ID, admin.Name)
	command.Stats(context.Background(), testBot(), invoke(r, guest, nil))
	got := rec.lastWhisper()
	if !strings.Contains(got, "🥇 guest") || !strings.Contains(got, "🥈 admin") {
		t.Errorf("leaderboard medals wrong:\n%s", got)
	}
}

func TestMyTimeUnseen(t *testing.T) {
	rec := &recorder{}
	r := rec.room(t)
	command.MyTime(context.Background(), testBot(), invoke(r, guest, nil))
	if !strings.Contains(rec.lastWhisper(), "No stats recorded") {
		t.Errorf("unseen user should get the empty message, got %q", rec.lastWhisper())
	}
}

func TestAllPartialFailure(t *testing.T) {
	rec := &recorder{roster: []highrise.RoomUser{{User: admin}, {User: guest}}}
	r := rec.room(t)
	var calls int
	var mu sync.Mutex
	r.Emote = func(ctx context.Context, emoteID, targetID string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if targetID == guest.ID {
			return errors.New("target busy")
		}
		return nil
	}
	command.All(context.Background(), testBot(), invoke(r, admin, map[string]string{"name": "macarena"}))
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("sends = %d, want 2 even with a failure", calls)
	}
	if !strings.Contains(rec.lastWhisper(), "Some sends failed") {
		t.Errorf("partial failure should be whispered, got %q", rec.lastWhisper())
	}
}
