package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/tradescope/internal/helpers"
)

var ErrUndecodableCritique = errors.New("undecodable critique")

// DecodeCritique turns raw critic output into a Critique. It accepts a JSON
// object (optionally fenced or wrapped in prose) with decision/reason keys,
// or the older plain "PASS" / "FAIL: reason" form. A missing decision means
// PASS. Anything else is an error so the caller can fail open.
func DecodeCritique(raw string) (Critique, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Critique{}, fmt.Errorf("%w: empty", ErrUndecodableCritique)
	}
	if js, err := helpers.ExtractJSON(raw); err == nil {
		return decodeCritiqueJSON(js)
	}
	return decodeCritiqueText(raw)
}

func decodeCritiqueJSON(js string) (Critique, error) {
	var payload struct {
		Decision string          `json:"decision"`
		Reason   json.RawMessage `json:"reason"`
	}
	if err := json.Unmarshal([]byte(js), &payload); err != nil {
		return Critique{}, fmt.Errorf("%w: %v", ErrUndecodableCritique, err)
	}
	decision, err := parseDecision(payload.Decision)
	if err != nil {
		return Critique{}, err
	}
	return Critique{Decision: decision, Reason: reasonOrDefault(decision, flattenReason(payload.Reason))}, nil
}

func decodeCritiqueText(raw string) (Critique, error) {
	upper := strings.ToUpper(raw)
	for _, d := range []Decision{Pass, Fail} {
		if strings.HasPrefix(upper, string(d)) {
			rest := strings.TrimSpace(raw[len(d):])
			rest = strings.TrimSpace(strings.TrimLeft(rest, ":-"))
			return Critique{Decision: d, Reason: reasonOrDefault(d, rest)}, nil
		}
	}
	return Critique{}, fmt.Errorf("%w: no decision in %q", ErrUndecodableCritique, helpers.Truncate(raw, 80))
}

func parseDecision(s string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case "", Pass:
		return Pass, nil
	case Fail:
		return Fail, nil
	}
	return "", fmt.Errorf("%w: unknown decision %q", ErrUndecodableCritique, s)
}

// flattenReason accepts a string or a list of strings.
func flattenReason(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := list[:0]
		for _, p := range list {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, "; ")
	}
	return strings.TrimSpace(string(raw))
}

func reasonOrDefault(d Decision, reason string) string {
	if reason != "" {
		return reason
	}
	if d == Fail {
		return "No reason provided"
	}
	return ""
}
