package epicleaderboard

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/epicleaderboard/epicleaderboard-go/params"
)

// Fields are kept raw so a single malformed record degrades to defaults
// instead of failing the whole response.
type scoresResponse struct {
	Scores      json.RawMessage `json:"scores"`
	PlayerScore json.RawMessage `json:"playerscore"`
}

type rawEntry struct {
	Rank     json.RawMessage `json:"rank"`
	Username json.RawMessage `json:"username"`
	Score    json.RawMessage `json:"score"`
	Country  json.RawMessage `json:"country"`
	Meta     json.RawMessage `json:"meta"`
}

func decodeEntries(body []byte) (*EntriesResult, error) {
	var data scoresResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	result := &EntriesResult{Entries: []Entry{}}

	var scores []json.RawMessage
	if isJSONArray(data.Scores) && json.Unmarshal(data.Scores, &scores) == nil {
		for _, raw := range scores {
			result.Entries = append(result.Entries, decodeEntry(raw))
		}
	}

	if isJSONObject(data.PlayerScore) {
		player := decodeEntry(data.PlayerScore)
		result.PlayerEntry = &player
	}

	return result, nil
}

func decodeEntry(raw json.RawMessage) Entry {
	var r rawEntry
	if isJSONObject(raw) {
		// a type mismatch cannot happen with RawMessage fields
		_ = json.Unmarshal(raw, &r)
	}

	return Entry{
		Rank:     rawRank(r.Rank),
		Username: rawText(r.Username),
		Score:    rawText(r.Score),
		Country:  rawText(r.Country),
		Meta:     rawMeta(r.Meta),
	}
}

// rawRank truncates JSON numbers and reads the leading integer of JSON
// strings ("12th" is 12). Missing, unparseable, negative or out of range
// ranks are 0.
func rawRank(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		return leadingInt(s)
	}

	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || f < 0 || f >= math.MaxInt {
		return 0
	}
	return int(f)
}

func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r")
	s = strings.TrimPrefix(s, "+")

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// rawText returns a JSON string's value or a JSON number's literal text.
// Everything else is "".
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	}
	return ""
}

// rawMeta accepts the usual JSON-encoded string as well as an inline object.
func rawMeta(raw json.RawMessage) map[string]string {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0:
		return map[string]string{}
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return map[string]string{}
		}
		return params.DeserializeMeta(s)
	case raw[0] == '{':
		return params.DeserializeMetaBytes(raw)
	}
	return map[string]string{}
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isJSONArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
