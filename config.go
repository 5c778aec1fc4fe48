package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"

	"github.com/hernuell/bellhop/highrise"
	"github.com/hernuell/bellhop/stats"
)

// Load loads the bot configuration from TOML.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	expandcfg(&cfg, os.Getenv)
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, &md, nil
}

// defaults fills in per-room file paths that the config leaves out.
func (cfg *Config) defaults() {
	for name, rc := range cfg.Rooms {
		if rc == nil {
			continue
		}
		if rc.Stats == "" {
			rc.Stats = name + "_stats.json"
		}
		if rc.Settings == "" {
			rc.Settings = name + "_settings.json"
		}
		if rc.ModLog == "" {
			rc.ModLog = name + "_modlog.json"
		}
	}
}

// Config is the root configuration.
type Config struct {
	// HTTP is the HTTP server configuration.
	HTTP HTTPCfg `toml:"http"`
	// API is the bot API websocket endpoint. Empty means the production
	// endpoint.
	API string `toml:"api"`
	// Rooms is the set of room configurations, keyed by a name of the
	// operator's choosing.
	Rooms map[string]*RoomCfg `toml:"rooms"`
}

// HTTPCfg is the configuration for the bot's own HTTP server.
type HTTPCfg struct {
	// Listen is the address to bind.
	Listen string `toml:"listen"`
}

// RoomCfg is the configuration for one room.
type RoomCfg struct {
	// ID is the room identifier.
	ID string `toml:"id"`
	// Token is the bot account's API token.
	Token string `toml:"token"`
	// Stats is the path to the room's usage stats file.
	Stats string `toml:"stats"`
	// Settings is the path to the room's settings file.
	Settings string `toml:"settings"`
	// ModLog is the path to the room's moderation log file.
	ModLog string `toml:"modlog"`
	// Control is the list of usernames allowed to use bot control
	// commands. Room moderators are allowed regardless.
	Control []string `toml:"control"`
	// Moderators is the list of usernames allowed to use moderation
	// commands through the bot.
	Moderators []string `toml:"moderators"`
	// Score is the leaderboard scoring weights.
	Score ScoreCfg `toml:"score"`
	// Rate is the rate limit for messages to room chat.
	Rate RateCfg `toml:"rate"`
}

// ScoreCfg is the leaderboard scoring weights for a room. The zero value
// selects the defaults.
type ScoreCfg struct {
	// Minutes is the divisor applied to time spent in minutes.
	Minutes float64 `toml:"minutes"`
	// Messages is the weight applied to each message.
	Messages float64 `toml:"messages"`
}

// score resolves the configured weights against the defaults.
func (c ScoreCfg) score() stats.Score {
	s := stats.DefaultScore
	if c.Minutes > 0 {
		s.Minutes = c.Minutes
	}
	if c.Messages > 0 {
		s.Messages = c.Messages
	}
	return s
}

// RateCfg is a rate limit configuration.
type RateCfg struct {
	// Every is the time in seconds to gain an additional send.
	Every float64 `toml:"every"`
	// Num is the maximum burst size.
	Num int `toml:"num"`
}

// limiter creates the rate limiter described by the config. The zero
// value allows one message per two seconds with a small burst.
func (c RateCfg) limiter() *rate.Limiter {
	every, num := 2*time.Second, 2
	if c.Every > 0 {
		every = time.Duration(c.Every * float64(time.Second))
	}
	if c.Num > 0 {
		num = c.Num
	}
	return rate.NewLimiter(rate.Every(every), num)
}

// api resolves the websocket endpoint.
func (cfg *Config) api() string {
	if cfg.API != "" {
		return cfg.API
	}
	return highrise.DefaultURL
}

// validate checks invariants that the TOML syntax can't. Rooms without
// credentials and per-room file collisions are configuration mistakes
// better caught at startup than as runtime errors.
func (cfg *Config) validate() error {
	files := make(map[string]string)
	for name, rc := range cfg.Rooms {
		if rc == nil || rc.ID == "" {
			return fmt.Errorf("room %s: missing id", name)
		}
		if rc.Token == "" {
			return fmt.Errorf("room %s: missing token", name)
		}
		if rc.Score.Minutes < 0 || rc.Score.Messages < 0 {
			return fmt.Errorf("room %s: negative score weights", name)
		}
		if rc.Rate.Every < 0 || rc.Rate.Num < 0 {
			return fmt.Errorf("room %s: negative rate limit", name)
		}
		for _, f := range []string{rc.Stats, rc.Settings, rc.ModLog} {
			if f == "" {
				continue
			}
			if other, ok := files[f]; ok {
				return fmt.Errorf("room %s: file %s already used by room %s", name, f, other)
			}
			files[f] = name
		}
	}
	return nil
}

// expandcfg expands environment variables in configuration strings that
// may hold secrets or deployment-specific paths.
func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.HTTP.Listen,
		&cfg.API,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
	for _, rc := range cfg.Rooms {
		if rc == nil {
			continue
		}
		rc.ID = os.Expand(rc.ID, expand)
		rc.Token = os.Expand(rc.Token, expand)
		rc.Stats = os.Expand(rc.Stats, expand)
		rc.Settings = os.Expand(rc.Settings, expand)
		rc.ModLog = os.Expand(rc.ModLog, expand)
	}
}
