package main_test

import (
	"context"
	_ "embed"
	"strings"
	"testing"

	main "github.com/hernuell/bellhop"
)

//go:embed example.toml
var exampleToml string

func eqcase[T comparable](t *testing.T, name string, val T, eq T) {
	t.Helper()
	if val != eq {
		t.Errorf("wrong %s: want %#v, got %#v", name, eq, val)
	}
}

func TestExampleConfig(t *testing.T) {
	t.Setenv("LOUNGE_TOKEN", "hof5gwx0su6owfnys0nyan9c87zr6t")
	t.Setenv("ROOFTOP_TOKEN", "nyan9c87zr6thof5gwx0su6owfnys0")
	cfg, _, err := main.Load(context.Background(), strings.NewReader(exampleToml))
	if err != nil {
		t.Fatalf("failed to load example.toml: %v", err)
	}

	eqcase(t, "HTTP.Listen", cfg.HTTP.Listen, ":4959")
	eqcase(t, "API", cfg.API, "")
	eqcase(t, "Rooms[`lounge`].ID", cfg.Rooms[`lounge`].ID, `657f9fb2a1b2c3d4e5f60718`)
	eqcase(t, "Rooms[`lounge`].Token", cfg.Rooms[`lounge`].Token, `hof5gwx0su6owfnys0nyan9c87zr6t`)
	eqcase(t, "Rooms[`lounge`].Stats", cfg.Rooms[`lounge`].Stats, `/var/bellhop/lounge_stats.json`)
	eqcase(t, "Rooms[`lounge`].Settings", cfg.Rooms[`lounge`].Settings, `/var/bellhop/lounge_settings.json`)
	eqcase(t, "Rooms[`lounge`].ModLog", cfg.Rooms[`lounge`].ModLog, `/var/bellhop/lounge_modlog.json`)
	eqcase(t, "Rooms[`lounge`].Control[0]", cfg.Rooms[`lounge`].Control[0], `bocchi`)
	eqcase(t, "Rooms[`lounge`].Moderators[1]", cfg.Rooms[`lounge`].Moderators[1], `nijika`)
	eqcase(t, "Rooms[`lounge`].Score.Minutes", cfg.Rooms[`lounge`].Score.Minutes, 10.0)
	eqcase(t, "Rooms[`lounge`].Score.Messages", cfg.Rooms[`lounge`].Score.Messages, 1.0)
	eqcase(t, "Rooms[`lounge`].Rate.Every", cfg.Rooms[`lounge`].Rate.Every, 1.5)
	eqcase(t, "Rooms[`lounge`].Rate.Num", cfg.Rooms[`lounge`].Rate.Num, 2)
	eqcase(t, "Rooms[`rooftop`].ID", cfg.Rooms[`rooftop`].ID, `657f9fb2a1b2c3d4e5f60719`)
	eqcase(t, "Rooms[`rooftop`].Score.Minutes", cfg.Rooms[`rooftop`].Score.Minutes, 0.0)
}

func TestConfigDefaults(t *testing.T) {
	cfg, _, err := main.Load(context.Background(), strings.NewReader("[rooms.attic]\nid = 'x'\ntoken = 'y'\n"))
	if err != nil {
		t.Fatal(err)
	}
	eqcase(t, "Rooms[`attic`].Stats", cfg.Rooms[`attic`].Stats, "attic_stats.json")
	eqcase(t, "Rooms[`attic`].Settings", cfg.Rooms[`attic`].Settings, "attic_settings.json")
	eqcase(t, "Rooms[`attic`].ModLog", cfg.Rooms[`attic`].ModLog, "attic_modlog.json")
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		toml string
	}{
		{
			name: "no-id",
			toml: "[rooms.a]\ntoken = 'x'\n",
		},
		{
			name: "no-token",
			toml: "[rooms.a]\nid = 'x'\n",
		},
		{
			name: "negative-score",
			toml: "[rooms.a]\nid = 'x'\ntoken = 'y'\n[rooms.a.score]\nminutes = -1.0\n",
		},
		{
			name: "file-collision",
			toml: "[rooms.a]\nid = 'x'\ntoken = 'y'\nstats = 'same.json'\n[rooms.b]\nid = 'z'\ntoken = 'w'\nstats = 'same.json'\n",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := main.Load(context.Background(), strings.NewReader(c.toml))
			if err == nil {
				t.Error("bad config loaded without error")
			}
		})
	}
}
