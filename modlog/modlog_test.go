package modlog_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hernuell/bellhop/modlog"
)

func TestAppendAndLast(t *testing.T) {
	p := filepath.Join(t.TempDir(), "mod_logs.json")
	l, err := modlog.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	when := modlog.Stamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	for i := range 7 {
		e := modlog.Entry{
			Moderator: "atknz",
			Target:    fmt.Sprintf("user%d", i),
			Action:    "mute",
			Reason:    "spam",
			Duration:  10,
			Time:      when,
		}
		if err := l.Append(e); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	got := l.Last("mute", 5)
	if len(got) != 5 {
		t.Fatalf("wrong count: want 5, got %d", len(got))
	}
	for i, e := range got {
		want := fmt.Sprintf("user%d", i+2)
		if e.Target != want {
			t.Errorf("wrong order at %d: want %s, got %s", i, want, e.Target)
		}
	}
	if got := l.Last("kick", 5); len(got) != 0 {
		t.Errorf("empty kind gave entries: %v", got)
	}
}

func TestReload(t *testing.T) {
	p := filepath.Join(t.TempDir(), "mod_logs.json")
	l, err := modlog.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	e := modlog.Entry{Moderator: "atknz", Target: "bocchi", Action: "kick", Time: modlog.Stamp(time.Now())}
	if err := l.Append(e); err != nil {
		t.Fatal(err)
	}
	l2, err := modlog.Open(p)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if diff := cmp.Diff([]modlog.Entry{e}, l2.Last("kick", 5)); diff != "" {
		t.Errorf("entries changed across reload (-want +got):\n%s", diff)
	}
}

func TestCorruptDocument(t *testing.T) {
	p := filepath.Join(t.TempDir(), "mod_logs.json")
	if err := os.WriteFile(p, []byte("!!"), 0644); err != nil {
		t.Fatal(err)
	}
	l, err := modlog.Open(p)
	if err == nil {
		t.Error("corrupt document gave no error")
	}
	if got := l.Last("ban", 5); len(got) != 0 {
		t.Errorf("corrupt document gave entries: %v", got)
	}
	if err := l.Append(modlog.Entry{Action: "ban", Moderator: "atknz", Target: "ryo", Time: modlog.Stamp(time.Now())}); err != nil {
		t.Errorf("couldn't append after corrupt load: %v", err)
	}
}

func TestIsKind(t *testing.T) {
	for _, k := range modlog.Kinds {
		if !modlog.IsKind(k) {
			t.Errorf("%q not recognized", k)
		}
	}
	if modlog.IsKind("slap") {
		t.Error("unknown kind recognized")
	}
}
