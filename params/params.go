// Package params encodes request parameters and entry metadata the way the
// EpicLeaderboard service expects them on the wire.
package params

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Param is a single key/value pair.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list. Order is kept on the wire.
type Params []Param

// Add appends a pair and returns the extended list.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// Encode joins the pairs as key=value with '&', percent-encoding both sides.
// An empty list encodes to "".
func Encode(p Params) string {
	if len(p) == 0 {
		return ""
	}

	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(kv.Key))
		b.WriteByte('=')
		b.WriteString(Escape(kv.Value))
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes s, leaving only A-Z a-z 0-9 and -_.!~*'() literal.
// Spaces become %20, never '+'.
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', upperhex[c>>4], upperhex[c&15])
	}
	return string(buf)
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// SerializeMeta encodes metadata as a JSON object with sorted keys.
func SerializeMeta(meta map[string]string) string {
	if meta == nil {
		return "{}"
	}
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(meta); err != nil {
		// map[string]string always encodes
		return "{}"
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// DeserializeMeta parses a JSON object into metadata. Anything that is not a
// JSON object yields an empty map. Non-string members keep their JSON text and
// null members are dropped.
func DeserializeMeta(s string) map[string]string {
	return decodeMeta([]byte(s))
}

// DeserializeMetaBytes is DeserializeMeta for raw JSON.
func DeserializeMetaBytes(b []byte) map[string]string {
	return decodeMeta(b)
}

func decodeMeta(b []byte) map[string]string {
	out := map[string]string{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return out
	}

	for k, raw := range fields {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				out[k] = s
			}
			continue
		}
		out[k] = string(raw)
	}
	return out
}
