package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/hernuell/bellhop/metrics"
)

var app = cli.Command{
	Name:  "bellhop",
	Usage: "Highrise room bot",

	Flags: []cli.Flag{
		&flagConfig,
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:  "check",
			Usage: "Validate the configuration without connecting",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				slog.SetDefault(loggerFromFlags(cmd))
				cfg, _, err := loadFlagConfig(ctx, cmd)
				if err != nil {
					return err
				}
				fmt.Printf("ok: %d rooms\n", len(cfg.Rooms))
				return nil
			},
		},
	},
	Action: cliRun,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
	}
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, _, err := loadFlagConfig(ctx, cmd)
	if err != nil {
		return err
	}
	if len(cfg.Rooms) == 0 {
		return errors.New("no rooms configured")
	}
	b := New(cfg, newMetrics())
	return b.Run(ctx)
}

func loadFlagConfig(ctx context.Context, cmd *cli.Command) (*Config, *toml.MetaData, error) {
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, md, err := Load(ctx, r)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't load config: %w", err)
	}
	return cfg, md, nil
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Required:   true,
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}

// metrics configuration
func newMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		EventCount: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "bellhop",
					Subsystem: "room",
					Name:      "events",
					Help:      "Number of events received from rooms.",
				},
			),
		),
		CommandCount: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "bellhop",
					Subsystem: "room",
					Name:      "commands",
					Help:      "Number of command invocations received in room chat.",
				},
				[]string{"name"},
			),
		),
		EmoteCount: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "bellhop",
					Subsystem: "room",
					Name:      "emotes",
					Help:      "Number of animations sent.",
				},
			),
		),
		TransportErrors: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "bellhop",
					Subsystem: "transport",
					Name:      "errors",
					Help:      "Number of connection failures, including reconnects.",
				},
			),
		),
		PersistErrors: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "bellhop",
					Subsystem: "store",
					Name:      "errors",
					Help:      "Number of failed writes to stats, settings, or mod log files.",
				},
			),
		),
	}
}
