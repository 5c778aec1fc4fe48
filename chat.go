package main

import (
	"regexp"

	"github.com/hernuell/bellhop/command"
	"github.com/hernuell/bellhop/emote"
)

type chatCommand struct {
	parse *regexp.Regexp
	// guard can reject a syntactic match so the scan continues. Nil
	// means any match wins.
	guard func(args map[string]string) bool
	fn    command.Func
	name  string
}

// findCommand finds the first command matching text. Patterns match the
// trimmed original text so argument case survives.
func findCommand(cmds []chatCommand, text string) (*chatCommand, map[string]string) {
	for i := range cmds {
		c := &cmds[i]
		u := c.parse.FindStringSubmatch(text)
		if u == nil {
			continue
		}
		var m map[string]string
		if len(u) > 1 {
			m = make(map[string]string, len(u)-1)
			s := c.parse.SubexpNames()
			for k, v := range u[1:] {
				m[s[k+1]] = v
			}
		}
		if c.guard != nil && !c.guard(m) {
			continue
		}
		return c, m
	}
	return nil, nil
}

// knownEmote lets bare animation names match without swallowing every
// other single word said in the room.
func knownEmote(args map[string]string) bool {
	_, ok := emote.Lookup(args["name"])
	return ok
}

var chatCommands = []chatCommand{
	{
		parse: regexp.MustCompile(`(?i)^!stats$`),
		fn:    command.Stats,
		name:  "stats",
	},
	{
		parse: regexp.MustCompile(`(?i)^!mytime$`),
		fn:    command.MyTime,
		name:  "mytime",
	},
	{
		parse: regexp.MustCompile(`(?i)^!emotelist$`),
		fn:    command.EmoteList,
		name:  "emotelist",
	},
	{
		parse: regexp.MustCompile(`(?i)^!setwelcome(?:\s+(?<text>.+))?$`),
		fn:    command.SetWelcome,
		name:  "setwelcome",
	},
	{
		parse: regexp.MustCompile(`(?i)^!loop(?:\s+(?<interval>\S+)(?:\s+(?<text>.+))?)?$`),
		fn:    command.Loop,
		name:  "loop",
	},
	{
		parse: regexp.MustCompile(`(?i)^!bots$`),
		fn:    command.Bots,
		name:  "bots",
	},
	{
		parse: regexp.MustCompile(`(?i)^full\s*(?<name>\S*)$`),
		fn:    command.ToggleLoop,
		name:  "full",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:stop|dur|0)$`),
		fn:    command.StopLoop,
		name:  "stop",
	},
	{
		parse: regexp.MustCompile(`(?i)^ulti$`),
		fn:    command.Ulti,
		name:  "ulti",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?<name>\S+)$`),
		guard: knownEmote,
		fn:    command.Single,
		name:  "emote",
	},
	{
		parse: regexp.MustCompile(`(?i)^all\s+(?<name>\S+)$`),
		fn:    command.All,
		name:  "all",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:dans|dance)`),
		fn:    command.Dance,
		name:  "dance",
	},
}

var modCommands = []chatCommand{
	{
		parse: regexp.MustCompile(`(?i)^!mute\b\s*(?<args>.*)$`),
		fn:    command.Mute,
		name:  "mute",
	},
	{
		parse: regexp.MustCompile(`(?i)^!unmute\b\s*(?<args>.*)$`),
		fn:    command.Unmute,
		name:  "unmute",
	},
	{
		parse: regexp.MustCompile(`(?i)^!kick\b\s*(?<args>.*)$`),
		fn:    command.Kick,
		name:  "kick",
	},
	{
		parse: regexp.MustCompile(`(?i)^!unban\b\s*(?<args>.*)$`),
		fn:    command.Unban,
		name:  "unban",
	},
	{
		parse: regexp.MustCompile(`(?i)^!ban\b\s*(?<args>.*)$`),
		fn:    command.Ban,
		name:  "ban",
	},
	{
		parse: regexp.MustCompile(`(?i)^!log\b\s*(?<args>.*)$`),
		fn:    command.LogTail,
		name:  "log",
	},
}
