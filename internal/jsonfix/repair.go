// Package jsonfix turns a growing, possibly malformed model output buffer
// into a monotonically non-regressing structured value.
package jsonfix

import "strings"

// Repair applies a best-effort structural fix to a truncated or lightly
// malformed JSON document: markdown fences and leading prose are stripped,
// an unterminated string is closed, a dangling trailing comma is dropped, a
// dangling colon gets a null, and unmatched braces/brackets are closed.
// The result is not guaranteed to parse; callers must re-parse and decide.
func Repair(s string) string {
	s = stripFences(s)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	s = s[start:]

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := s
	if inString {
		if escaped {
			// A lone trailing backslash would escape the closing quote.
			out = out[:len(out)-1]
		}
		out += `"`
	}

	for {
		trimmed := strings.TrimRight(out, " \t\r\n")
		if strings.HasSuffix(trimmed, ",") {
			out = trimmed[:len(trimmed)-1]
			continue
		}
		out = trimmed
		break
	}
	if strings.HasSuffix(out, ":") {
		out += "null"
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

// stripFences removes a surrounding markdown code fence, including an
// optional language tag, and any prose before the fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	i := strings.Index(s, "```")
	if i < 0 {
		return s
	}
	s = s[i+3:]
	if j := strings.IndexByte(s, '\n'); j >= 0 && len(strings.TrimSpace(s[:j])) <= 4 {
		s = s[j+1:]
	}
	if k := strings.Index(s, "```"); k >= 0 {
		s = s[:k]
	}
	return strings.TrimSpace(s)
}
