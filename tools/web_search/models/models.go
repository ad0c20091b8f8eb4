package models

import (
	"net/url"
	"strings"
	"time"
)

// Result is one normalized search hit regardless of backend.
type Result struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Published time.Time `json:"published,omitempty"`
}

// HostOf returns the host part of a URL without a leading www., used as
// the publisher name when a backend does not report one.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
