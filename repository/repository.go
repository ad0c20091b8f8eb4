package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/tradescope/internal/analysis"
	"github.com/mohammad-safakhou/tradescope/repository/redis_repository"
)

// ReportRepository caches finished analyses per (sector, country).
type ReportRepository interface {
	SaveReport(ctx context.Context, res analysis.Result) error
	GetReport(ctx context.Context, sector, country string) (analysis.Result, error)
}

type RepoType string

const (
	RepoTypeRedis  RepoType = "redis"
	RepoTypeMemory RepoType = "memory"
)

var ErrReportNotFound = redis_repository.ErrReportNotFound

// NewReportRepository builds the cache for t. client is only used by the
// Redis type.
func NewReportRepository(t RepoType, client redis.UniversalClient, ttl time.Duration) (ReportRepository, error) {
	switch t {
	case RepoTypeRedis:
		if client == nil {
			return nil, fmt.Errorf("redis report repository needs a client")
		}
		return redis_repository.NewRedisReportRepository(client, ttl), nil
	case RepoTypeMemory:
		return NewMemoryReportRepository(ttl, nil), nil
	}
	return nil, fmt.Errorf("invalid repository type: %s", t)
}

type memoryEntry struct {
	res     analysis.Result
	expires time.Time
}

type memoryReportRepository struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryReportRepository(ttl time.Duration, now func() time.Time) *memoryReportRepository {
	if now == nil {
		now = time.Now
	}
	return &memoryReportRepository{ttl: ttl, now: now, entries: make(map[string]memoryEntry)}
}

func (m *memoryReportRepository) SaveReport(_ context.Context, res analysis.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[redis_repository.ReportKey(res.Sector, res.Country)] = memoryEntry{res: res, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *memoryReportRepository) GetReport(_ context.Context, sector, country string) (analysis.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := redis_repository.ReportKey(sector, country)
	e, ok := m.entries[key]
	if !ok {
		return analysis.Result{}, ErrReportNotFound
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return analysis.Result{}, ErrReportNotFound
	}
	return e.res, nil
}
