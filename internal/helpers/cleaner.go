package helpers

import (
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no balanced JSON object/array found")

// StripCodeFence removes a wrapping ``` or ~~~ fence (with optional
// language tag) from model output. Text without a leading fence is
// returned trimmed and unchanged.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if inner, ok := unwrapFence(s); ok {
		return strings.TrimSpace(inner)
	}
	return s
}

// ExtractJSON finds and returns the first JSON object or array in s.
// Fences are removed first, then the text is scanned for a balanced
// {...} or [...] ignoring brackets inside strings.
func ExtractJSON(s string) (string, error) {
	s = StripCodeFence(s)
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			if out, ok := balancedFrom(s, i); ok {
				return out, nil
			}
		}
	}
	return "", ErrNoJSON
}

func unwrapFence(s string) (string, bool) {
	fence := ""
	switch {
	case strings.HasPrefix(s, "```"):
		fence = "```"
	case strings.HasPrefix(s, "~~~"):
		fence = "~~~"
	default:
		return "", false
	}
	rest := s[len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]
	if end := strings.LastIndex(rest, fence); end != -1 {
		return rest[:end], true
	}
	// unterminated fence: keep everything after the opener
	return rest, true
}

func balancedFrom(s string, start int) (string, bool) {
	var (
		stack    []byte
		inString bool
		escape   bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
