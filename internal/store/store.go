package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/tradescope/config"
	"github.com/mohammad-safakhou/tradescope/internal/analysis"
)

type Store struct {
	DB *sql.DB
}

var tracer trace.Tracer = otel.Tracer("tradescope/internal/store")

// AnalysisRecord is a row of the analysis history without the report body.
type AnalysisRecord struct {
	ID           string               `json:"report_id"`
	Sector       string               `json:"sector"`
	Country      string               `json:"country"`
	Status       string               `json:"status"`
	Iterations   int                  `json:"iterations"`
	DataQuality  analysis.DataQuality `json:"data_quality"`
	FallbackUsed bool                 `json:"fallback_used"`
	CreatedAt    time.Time            `json:"timestamp"`
}

// New opens the database described by cfg.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SaveAnalysis stores a finished run. The full result is kept as JSON so
// reports can be served back exactly as they were produced.
func (s *Store) SaveAnalysis(ctx context.Context, res analysis.Result) error {
	ctx, span := tracer.Start(ctx, "store.SaveAnalysis", trace.WithAttributes(attribute.String("report_id", res.ReportID)))
	defer span.End()

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO analyses (id, sector, country, status, iterations, data_quality, fallback_used, result, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING`,
		res.ReportID, res.Sector, res.Country, res.Status, res.Iterations,
		string(res.DataQuality), res.FallbackUsed, payload, res.Timestamp)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (s *Store) GetAnalysis(ctx context.Context, id string) (analysis.Result, bool, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `SELECT result FROM analyses WHERE id=$1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return analysis.Result{}, false, nil
	}
	if err != nil {
		return analysis.Result{}, false, err
	}
	var res analysis.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return analysis.Result{}, false, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return res, true, nil
}

// ListAnalyses returns the newest runs first. An empty sector lists all.
func (s *Store) ListAnalyses(ctx context.Context, sector string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, sector, country, status, iterations, data_quality, fallback_used, created_at
FROM analyses
WHERE ($1 = '' OR sector = $1)
ORDER BY created_at DESC
LIMIT $2`, sector, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AnalysisRecord{}
	for rows.Next() {
		var r AnalysisRecord
		var quality string
		if err := rows.Scan(&r.ID, &r.Sector, &r.Country, &r.Status, &r.Iterations, &quality, &r.FallbackUsed, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.DataQuality = analysis.DataQuality(quality)
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertAPIKey stores the digest of an issued key.
func (s *Store) InsertAPIKey(ctx context.Context, digest, userID string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO api_keys (key_hash, user_id, created_at) VALUES ($1,$2,NOW())`, digest, userID)
	return err
}

// LookupAPIKey resolves an active key digest to its user.
func (s *Store) LookupAPIKey(ctx context.Context, digest string) (string, bool, error) {
	var user string
	err := s.DB.QueryRowContext(ctx, `SELECT user_id FROM api_keys WHERE key_hash=$1 AND revoked_at IS NULL`, digest).Scan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return user, true, nil
}

func (s *Store) RevokeAPIKey(ctx context.Context, digest string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `UPDATE api_keys SET revoked_at=NOW() WHERE key_hash=$1 AND revoked_at IS NULL`, digest)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
