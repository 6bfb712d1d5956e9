// Package directive extracts an optional action proposal from generated text.
//
// A reply may embed one directive of the form
//
//	[ACTION:<type>:<json-object>]
//
// anywhere in its text, possibly spanning several lines. Parse never fails:
// malformed or disallowed directives leave the reply as plain text.
package directive

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"
)

const marker = "[ACTION:"

// Proposal is a recognized action directive.
type Proposal struct {
	Type string
	Data map[string]any
}

// Discard explains why a directive-shaped span was ignored.
type Discard struct {
	Type   string
	Reason string
}

// Result is the outcome of interpreting one reply.
type Result struct {
	// Text is the reply shown to the user with any recognized directive removed.
	Text string
	// Proposal is set when a directive was recognized.
	Proposal *Proposal
	// Discarded is set when a directive marker was found but ignored.
	Discarded *Discard
}

// Parse scans reply for the first directive marker. allowed gates the action
// type; a nil allowed accepts every type.
func Parse(reply string, allowed func(actionType string) bool) Result {
	start := strings.Index(reply, marker)
	if start < 0 {
		return Result{Text: strings.TrimSpace(reply)}
	}
	plain := func(actionType, reason string) Result {
		return Result{
			Text:      strings.TrimSpace(reply),
			Discarded: &Discard{Type: actionType, Reason: reason},
		}
	}

	rest := reply[start+len(marker):]
	typeEnd := strings.IndexFunc(rest, func(r rune) bool { return !isTypeRune(r) })
	if typeEnd <= 0 || rest[typeEnd] != ':' {
		return plain("", "malformed action type")
	}
	actionType := rest[:typeEnd]
	payload := rest[typeEnd+1:]

	decoder := json.NewDecoder(strings.NewReader(payload))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return plain(actionType, "payload is not valid JSON")
	}
	data, ok := decoded.(map[string]any)
	if !ok {
		return plain(actionType, "payload is not a JSON object")
	}

	offset := int(decoder.InputOffset())
	tail := payload[offset:]
	closing := strings.IndexFunc(tail, func(r rune) bool { return !unicode.IsSpace(r) })
	if closing < 0 || tail[closing] != ']' {
		return plain(actionType, "directive is not closed")
	}

	if allowed != nil && !allowed(actionType) {
		return plain(actionType, "action type is not allowed for this module")
	}

	end := start + len(marker) + typeEnd + 1 + offset + closing + 1
	return Result{
		Text: strings.TrimSpace(reply[:start] + reply[end:]),
		Proposal: &Proposal{
			Type: actionType,
			Data: normalizeNumbers(data).(map[string]any),
		},
	}
}

func isTypeRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// normalizeNumbers converts json.Number leaves to int64 when integral and
// float64 otherwise.
func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeNumbers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil && !math.IsInf(f, 0) {
			return f
		}
		return v.String()
	default:
		return v
	}
}
