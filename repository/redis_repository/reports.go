package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/tradescope/internal/analysis"
)

const reportKeyPrefix = "tradescope:report:"

// ErrReportNotFound is returned for a miss or an expired entry.
var ErrReportNotFound = errors.New("report not cached")

// redisReportRepository keeps the latest result per sector and country.
type redisReportRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func ReportKey(sector, country string) string {
	return reportKeyPrefix + strings.ToLower(strings.TrimSpace(sector)) + ":" + strings.ToLower(strings.TrimSpace(country))
}

func (r redisReportRepository) SaveReport(ctx context.Context, res analysis.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, ReportKey(res.Sector, res.Country), data, r.ttl).Err()
}

func (r redisReportRepository) GetReport(ctx context.Context, sector, country string) (analysis.Result, error) {
	val, err := r.client.Get(ctx, ReportKey(sector, country)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return analysis.Result{}, ErrReportNotFound
		}
		return analysis.Result{}, err
	}

	var res analysis.Result
	if err := json.Unmarshal(val, &res); err != nil {
		return analysis.Result{}, err
	}
	return res, nil
}

func NewRedisReportRepository(client redis.UniversalClient, ttl time.Duration) *redisReportRepository {
	return &redisReportRepository{
		client: client,
		ttl:    ttl,
	}
}
