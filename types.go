package epicleaderboard

import (
	"fmt"
	"strconv"
	"strings"
)

// Game identifies a game on the service. Key is the write secret and is only
// sent when submitting scores.
type Game struct {
	ID  string
	Key string
}

// Leaderboard selects a board and an optional sub-board (a level, a mode).
type Leaderboard struct {
	PrimaryID   string
	SecondaryID string
}

type Entry struct {
	Rank     int               `json:"rank"`
	Username string            `json:"username"`
	Score    string            `json:"score"`
	Country  string            `json:"country"`
	Meta     map[string]string `json:"meta"`
}

type EntriesResult struct {
	Entries []Entry `json:"entries"`

	// set only when the query named a player who has a score
	PlayerEntry *Entry `json:"playerEntry,omitempty"`
}

type Timeframe int

const (
	AllTime Timeframe = iota
	Year
	Month
	Week
	Day
)

var timeframeNames = [...]string{"all", "year", "month", "week", "day"}

func (t Timeframe) String() string {
	if t < AllTime || t > Day {
		return "Timeframe(" + strconv.Itoa(int(t)) + ")"
	}
	return timeframeNames[t]
}

// ParseTimeframe accepts a timeframe name (all, alltime, all-time, year,
// month, week, day) or its ordinal.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "alltime", "all-time", "0":
		return AllTime, nil
	case "year", "1":
		return Year, nil
	case "month", "2":
		return Month, nil
	case "week", "3":
		return Week, nil
	case "day", "4":
		return Day, nil
	}
	return AllTime, fmt.Errorf("unknown timeframe %q", s)
}

type UsernameAvailability int

const (
	Available UsernameAvailability = iota
	Invalid
	Profanity
	Taken
)

func (a UsernameAvailability) String() string {
	switch a {
	case Available:
		return "available"
	case Invalid:
		return "invalid"
	case Profanity:
		return "profanity"
	case Taken:
		return "taken"
	}
	return "UsernameAvailability(" + strconv.Itoa(int(a)) + ")"
}

// parseAvailability maps the service's one-character answer. Anything it does
// not recognise is Invalid.
func parseAvailability(body string) UsernameAvailability {
	switch body {
	case "0":
		return Available
	case "2":
		return Profanity
	case "3":
		return Taken
	default:
		return Invalid
	}
}
