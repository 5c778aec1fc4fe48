package emote_test

import (
	"testing"

	"github.com/hernuell/bellhop/emote"
)

func TestLookup(t *testing.T) {
	cases := []struct {
		name string
		in   string
		id   string
		ok   bool
	}{
		{"exact", "macarena", "dance-macarena", true},
		{"case", "MacArena", "dance-macarena", true},
		{"space", "  hello ", "emote-hello", true},
		{"alias", "1", "dance-macarena", true},
		{"unknown", "moonwalk", "", false},
		{"empty", "", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, ok := emote.Lookup(c.in)
			if ok != c.ok {
				t.Errorf("wrong ok for %q: want %t, got %t", c.in, c.ok, ok)
			}
			if e.ID != c.id {
				t.Errorf("wrong id for %q: want %q, got %q", c.in, c.id, e.ID)
			}
		})
	}
}

func TestNames(t *testing.T) {
	names := emote.Names()
	if len(names) == 0 {
		t.Fatal("no names")
	}
	for i, n := range names {
		if n[0] >= '0' && n[0] <= '9' {
			t.Errorf("digit alias %q in listing", n)
		}
		if i > 0 && names[i-1] >= n {
			t.Errorf("listing not sorted at %q", n)
		}
		if _, ok := emote.Lookup(n); !ok {
			t.Errorf("listed name %q does not resolve", n)
		}
	}
}

func TestRandomTables(t *testing.T) {
	for range 32 {
		if e := emote.RandomDance(); e.ID == "" || e.Dur <= 0 {
			t.Fatalf("bad dance pick: %+v", e)
		}
		if e := emote.RandomPaid(); e.ID == "" || e.Dur <= 0 {
			t.Fatalf("bad paid pick: %+v", e)
		}
	}
}
