// Package emote holds the static animation tables for the room.
package emote

import (
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"gitlab.com/zephyrtronium/pick"
)

// Emote is a named animation performable by or targeted at a user.
type Emote struct {
	// ID is the platform animation identifier.
	ID string
	// Dur is how long one play of the animation takes. Loops wait this
	// long between sends.
	Dur time.Duration
}

// All maps chat names to animations. Keys are lowercase. Digit keys are
// aliases and are omitted from listings.
var All = map[string]Emote{
	"kiss":       {"emote-kiss", 3 * time.Second},
	"no":         {"emote-no", 3 * time.Second},
	"sad":        {"emote-sad", 4 * time.Second},
	"yes":        {"emote-yes", 3 * time.Second},
	"laughing":   {"emote-laughing", 3 * time.Second},
	"hello":      {"emote-hello", 3 * time.Second},
	"wave":       {"emote-wave", 3 * time.Second},
	"shy":        {"emote-shy", 5 * time.Second},
	"tired":      {"emote-tired", 5 * time.Second},
	"angry":      {"emoji-angry", 4 * time.Second},
	"thumbsup":   {"emoji-thumbsup", 3 * time.Second},
	"lust":       {"emote-lust", 5 * time.Second},
	"greedy":     {"emote-greedy", 5 * time.Second},
	"flex":       {"emoji-flex", 3 * time.Second},
	"gagging":    {"emoji-gagging", 6 * time.Second},
	"celebrate":  {"emoji-celebrate", 4 * time.Second},
	"macarena":   {"dance-macarena", 13 * time.Second},
	"tiktok2":    {"dance-tiktok2", 11 * time.Second},
	"tiktok8":    {"dance-tiktok8", 11 * time.Second},
	"tiktok9":    {"dance-tiktok9", 13 * time.Second},
	"tiktok10":   {"dance-tiktok10", 9 * time.Second},
	"blackpink":  {"dance-blackpink", 7 * time.Second},
	"russian":    {"dance-russian", 10 * time.Second},
	"shopping":   {"dance-shoppingcart", 5 * time.Second},
	"icecream":   {"dance-icecream", 9 * time.Second},
	"wrong":      {"dance-wrong", 13 * time.Second},
	"anime":      {"dance-anime", 8 * time.Second},
	"weird":      {"dance-weird", 22 * time.Second},
	"pennywise":  {"dance-pennywise", 4 * time.Second},
	"model":      {"emote-model", 6 * time.Second},
	"bow":        {"emote-bow", 3 * time.Second},
	"curtsy":     {"emote-curtsy", 3 * time.Second},
	"boxer":      {"emote-boxer", 6 * time.Second},
	"teleport":   {"emote-teleporting", 11 * time.Second},
	"swordfight": {"emote-swordfight", 6 * time.Second},
	"gravity":    {"emote-gravity", 9 * time.Second},
	"confused":   {"emote-confused", 9 * time.Second},
	"snowangel":  {"emote-snowangel", 6 * time.Second},
	"hot":        {"emote-hot", 5 * time.Second},
	"snake":      {"emote-snake", 6 * time.Second},
	"frog":       {"emote-frog", 15 * time.Second},
	"sing":       {"idle_singing", 11 * time.Second},
	"sitfloor":   {"idle-loop-sitfloor", 9 * time.Second},
	"dizzy":      {"emoji-dizzy", 5 * time.Second},
	"hadoken":    {"emoji-hadoken", 4 * time.Second},
	"cursing":    {"emoji-cursing", 3 * time.Second},
	"1":          {"dance-macarena", 13 * time.Second},
	"2":          {"dance-tiktok2", 11 * time.Second},
	"3":          {"dance-blackpink", 7 * time.Second},
	"4":          {"emote-model", 6 * time.Second},
	"5":          {"dance-russian", 10 * time.Second},
}

// Dance is the curated subset used for greetings, the dance fallback, and
// randomized loops.
var Dance = map[string]Emote{
	"macarena":  {"dance-macarena", 13 * time.Second},
	"tiktok2":   {"dance-tiktok2", 11 * time.Second},
	"tiktok8":   {"dance-tiktok8", 11 * time.Second},
	"blackpink": {"dance-blackpink", 7 * time.Second},
	"russian":   {"dance-russian", 10 * time.Second},
	"shopping":  {"dance-shoppingcart", 5 * time.Second},
	"icecream":  {"dance-icecream", 9 * time.Second},
	"anime":     {"dance-anime", 8 * time.Second},
	"weird":     {"dance-weird", 22 * time.Second},
	"wrong":     {"dance-wrong", 13 * time.Second},
}

// Paid is the table the ambient loop draws from.
var Paid = map[string]Emote{
	"employee":     {"dance-employee", 9 * time.Second},
	"touch":        {"dance-touch", 12 * time.Second},
	"gravity":      {"emote-gravity", 9 * time.Second},
	"fairyfloat":   {"idle-floating", 27 * time.Second},
	"ghostfloat":   {"emote-ghost-idle", 18 * time.Second},
	"creepypuppet": {"dance-creepypuppet", 7 * time.Second},
	"frogrun":      {"dance-frog", 15 * time.Second},
	"pinguin":      {"dance-pinguin", 12 * time.Second},
}

var (
	dances = pick.New(pick.FromMap(weights(Dance)))
	paids  = pick.New(pick.FromMap(weights(Paid)))
)

func weights[M map[string]Emote](m M) map[string]int {
	w := make(map[string]int, len(m))
	for k := range m {
		w[k] = 1
	}
	return w
}

// Lookup finds an animation by chat name, case-insensitively.
func Lookup(name string) (Emote, bool) {
	e, ok := All[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// RandomDance picks an animation from the curated table.
func RandomDance() Emote {
	return Dance[dances.Pick(rand.Uint32())]
}

// RandomPaid picks an animation from the paid table.
func RandomPaid() Emote {
	return Paid[paids.Pick(rand.Uint32())]
}

// Names lists the chat names in All, sorted, without digit aliases.
func Names() []string {
	r := make([]string, 0, len(All))
	for k := range All {
		if k[0] >= '0' && k[0] <= '9' {
			continue
		}
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}
