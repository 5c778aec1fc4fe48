package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hernuell/bellhop/emote"
)

// Stats whispers the room leaderboard to the invoker.
func Stats(ctx context.Context, bo *Bot, call *Invocation) {
	call.Room.Stats.Fold()
	top := call.Room.Stats.Top(5)
	if len(top) == 0 {
		whisper(ctx, bo, call, "No stats recorded yet.")
		return
	}
	medals := []string{"🥇", "🥈", "🥉"}
	var sb strings.Builder
	sb.WriteString("🏆 Leaderboard (minutes+messages) 🏆\n")
	for i, e := range top {
		medal := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			medal = medals[i]
		}
		fmt.Fprintf(&sb, "\n%s %s — %s — %d messages — score %.1f", medal, e.Name, fmtDur(e.Total), e.Messages, e.Score)
	}
	whisper(ctx, bo, call, sb.String())
}

// MyTime whispers the invoker's own stats, including live session time.
func MyTime(ctx context.Context, bo *Bot, call *Invocation) {
	u, ok := call.Room.Stats.Live(call.User.ID)
	if !ok {
		whisper(ctx, bo, call, "No stats recorded for you yet.")
		return
	}
	rank := call.Room.Stats.Rank(call.User.ID)
	rankStr := "unranked"
	if rank > 0 {
		rankStr = fmt.Sprintf("#%d", rank)
	}
	msg := fmt.Sprintf("📊 Your stats:\n💬 Messages: %d\n⏱️ Time: %s\n🎯 Score: %.1f\n🏆 Rank: %s",
		u.Messages, fmtDur(u.Total), call.Room.Stats.Value(u), rankStr)
	whisper(ctx, bo, call, msg)
}

// EmoteList whispers the animation catalog in pages.
func EmoteList(ctx context.Context, bo *Bot, call *Invocation) {
	names := emote.Names()
	const pageSize = 20
	pages := (len(names) + pageSize - 1) / pageSize
	for i := 0; i < pages; i++ {
		end := min((i+1)*pageSize, len(names))
		msg := fmt.Sprintf("🎭 Emotes (%d/%d) 🎭\n\n%s", i+1, pages, strings.Join(names[i*pageSize:end], ", "))
		whisper(ctx, bo, call, msg)
		if i+1 < pages {
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
		}
	}
}

// fmtDur renders a duration as "Xh Ym" or "Ym".
func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
