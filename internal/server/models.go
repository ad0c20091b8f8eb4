package server

import (
	"time"

	"github.com/mohammad-safakhou/tradescope/internal/ratelimit"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

type ServiceInfo struct {
	Service       string            `json:"service"`
	Version       string            `json:"version"`
	Documentation string            `json:"documentation"`
	Endpoints     map[string]string `json:"endpoints"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// RateLimitResponse reports the caller's configured and remaining quota.
type RateLimitResponse struct {
	User      string              `json:"user"`
	Limits    ratelimit.Limits    `json:"limits"`
	Remaining ratelimit.Remaining `json:"remaining"`
	Timestamp time.Time           `json:"timestamp"`
}

type CreateKeyRequest struct {
	UserID string `json:"user_id"`
}

type CreateKeyResponse struct {
	UserID  string `json:"user_id"`
	APIKey  string `json:"api_key"`
	Message string `json:"message"`
	Usage   string `json:"usage"`
}
