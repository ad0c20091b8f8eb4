package helpers

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	noiseRe      = regexp.MustCompile(`(?i)(cookie policy|terms of service|privacy policy|sign up for.*newsletter|subscribe now|related articles?:?|read more:?|share this article|advertisement|\[.*?\])`)
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
)

// StripHTML returns the text content of an HTML fragment. Plain text passes
// through untouched.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

// CleanText strips markup, collapses whitespace and removes boilerplate
// phrases commonly found in scraped news snippets.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = StripHTML(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = noiseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Fingerprint is a cheap near-duplicate key: lowercase, non-word runs
// removed, first 100 characters.
func Fingerprint(s string) string {
	s = nonWordRe.ReplaceAllString(strings.ToLower(s), "")
	return Truncate(s, 100)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "gclid", "fbclid"}

// CanonicalURL lowercases the host, drops the fragment and tracking query
// parameters. Unparseable input is returned as given.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.RawQuery != "" {
		q := u.Query()
		for _, p := range trackingParams {
			q.Del(p)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
