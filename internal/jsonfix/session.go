package jsonfix

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NonJSONError indicates the model's terminal output could not be parsed or
// repaired into a structured value. It carries the raw text so operators can
// distinguish a misbehaving model from a transient network failure.
type NonJSONError struct {
	Raw string
}

func (e *NonJSONError) Error() string {
	return fmt.Sprintf("model returned non-JSON text: %s", truncate(e.Raw, 500))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Session accumulates streamed model text and exposes the last accepted
// structured value. The accepted value never regresses: once a key or index
// holds a non-null value, every later accepted value still contains it.
// A Session is single-use; start a new one per extraction stream.
type Session struct {
	buf  strings.Builder
	last any
}

// NewSession creates an empty parse session.
func NewSession() *Session {
	return &Session{}
}

// Feed appends a raw text chunk and re-parses the full buffer. It returns
// the current accepted value and whether this chunk produced a new one.
// Candidates that fail the non-regression check are discarded.
func (s *Session) Feed(chunk string) (any, bool) {
	s.buf.WriteString(chunk)
	cand, ok := parseLoose(s.buf.String())
	if !ok {
		return s.last, false
	}
	if !notRegressed(s.last, cand) {
		return s.last, false
	}
	s.last = cand
	return s.last, true
}

// Current returns the last accepted value, which may be nil.
func (s *Session) Current() any {
	return s.last
}

// Buffer returns the full accumulated raw text.
func (s *Session) Buffer() string {
	return s.buf.String()
}

// Final performs the terminal strict-then-repaired parse over the whole
// buffer. An unparsable non-empty buffer yields a NonJSONError carrying the
// raw text.
func (s *Session) Final() (any, error) {
	raw := s.buf.String()
	val, ok := parseLoose(raw)
	if !ok {
		return nil, &NonJSONError{Raw: raw}
	}
	return val, nil
}

// parseLoose tries a strict parse of text, then a parse of its repaired
// form. Only objects and arrays are accepted as top-level values.
func parseLoose(text string) (any, bool) {
	if v, ok := parseStructured(text); ok {
		return v, true
	}
	return parseStructured(Repair(text))
}

func parseStructured(text string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

// notRegressed reports whether cand preserves everything prev holds: every
// key (or array index) with a non-null value in prev must still be present
// and non-null in cand. Values may change or grow; containers must keep
// their kind and, for arrays, their length may only grow.
func notRegressed(prev, cand any) bool {
	if prev == nil {
		return true
	}
	switch p := prev.(type) {
	case map[string]any:
		c, ok := cand.(map[string]any)
		if !ok {
			return false
		}
		for k, pv := range p {
			if pv == nil {
				continue
			}
			cv, present := c[k]
			if !present || cv == nil {
				return false
			}
			if !notRegressed(pv, cv) {
				return false
			}
		}
		return true
	case []any:
		c, ok := cand.([]any)
		if !ok {
			return false
		}
		if len(c) < len(p) {
			return false
		}
		for i, pv := range p {
			if pv == nil {
				continue
			}
			if c[i] == nil {
				return false
			}
			if !notRegressed(pv, c[i]) {
				return false
			}
		}
		return true
	default:
		// Scalars only need continued presence; extension is allowed.
		return cand != nil
	}
}
