package collector

import (
	"strconv"
	"strings"
)

var trustedPublishers = []string{
	"economic times", "business standard", "financial express",
	"livemint", "moneycontrol", "reuters", "bloomberg",
	"ministry", "government", "rbi", "sebi", "nse", "bse",
}

var tradeTerms = []string{"trade", "export", "import", "investment", "growth", "policy", "opportunity", "market"}

type scorer struct {
	recency []string
}

// newScorer treats the current and previous year as recency markers.
func newScorer(year int) scorer {
	return scorer{recency: []string{strconv.Itoa(year), strconv.Itoa(year - 1), "latest", "current", "recent"}}
}

// score ranks a hit: 50 base, +30 for a trusted publisher, +5 for a trade
// term in the title, +3 for a recency marker anywhere.
func (s scorer) score(source, title, body string) int {
	score := 50
	if containsAny(strings.ToLower(source), trustedPublishers) {
		score += 30
	}
	lowerTitle := strings.ToLower(title)
	if containsAny(lowerTitle, tradeTerms) {
		score += 5
	}
	if containsAny(lowerTitle+" "+strings.ToLower(body), s.recency) {
		score += 3
	}
	return score
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
