package attribution

import (
	"encoding/json"
	"strings"
)

// maxCutbacks bounds how many trailing elements RepairJSON will drop while
// searching for a closable prefix.
const maxCutbacks = 64

// RepairJSON attempts to turn a truncated JSON document into a valid one. It
// closes an unterminated string, removes a dangling comma, fills a dangling
// object value with null and appends the closers for every open array and
// object. If the result is still invalid it drops the trailing element (back
// to the previous comma outside a string) and tries again. Input with a
// closer that does not match its opener is never cut back. It returns false
// when no valid document could be produced. Valid input is returned unchanged.
func RepairJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if json.Valid([]byte(s)) {
		return s, true
	}

	cut := s
	for i := 0; i < maxCutbacks; i++ {
		fixed, ok := closeJSON(cut)
		if !ok {
			// Mismatched or trailing content is not truncation.
			break
		}
		if json.Valid([]byte(fixed)) {
			return fixed, true
		}
		idx := lastStructuralComma(cut)
		if idx <= 0 {
			break
		}
		cut = cut[:idx]
	}
	return "", false
}

// closeJSON appends whatever is needed to balance s. It reports false when s
// contains a closer that does not match the innermost open container, or
// content after the top-level value has closed.
func closeJSON(s string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false
	opened := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if opened && len(stack) == 0 && !isJSONSpace(c) {
			return "", false
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
			opened = true
		case '[':
			stack = append(stack, ']')
			opened = true
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
		}
	}

	var b strings.Builder
	b.Grow(len(s) + len(stack) + 8)

	if inString {
		if escaped {
			s = s[:len(s)-1]
		}
		b.WriteString(s)
		b.WriteByte('"')
	} else {
		s = strings.TrimRight(s, " \t\r\n")
		s = strings.TrimSuffix(s, ",")
		b.WriteString(s)
		if strings.HasSuffix(s, ":") {
			b.WriteString("null")
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// lastStructuralComma returns the byte index of the last comma that is not
// inside a string literal, or -1.
func lastStructuralComma(s string) int {
	last := -1
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',':
			last = i
		}
	}
	return last
}
