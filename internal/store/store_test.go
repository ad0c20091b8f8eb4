package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/tradescope/internal/analysis"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func sampleResult() analysis.Result {
	size := "USD 50 billion"
	return analysis.Result{
		Status:      analysis.StatusSuccess,
		ReportID:    "rep-1",
		Sector:      "pharmaceuticals",
		Country:     "India",
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Report:      "## Pharmaceuticals",
		Iterations:  1,
		Summary:     analysis.Summary{MarketSize: &size, Recommendations: []string{"Expand API capacity"}},
		Sources:     []analysis.Source{{Title: "t", URL: "https://example.com", Source: "Reuters"}},
		DataQuality: analysis.QualityHigh,
		Critique:    analysis.Critique{Decision: analysis.Pass},
	}
}

func TestSaveAnalysis(t *testing.T) {
	st, mock := newMock(t)
	res := sampleResult()

	query := regexp.QuoteMeta(`
INSERT INTO analyses (id, sector, country, status, iterations, data_quality, fallback_used, result, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING`)
	mock.ExpectExec(query).
		WithArgs("rep-1", "pharmaceuticals", "India", "success", 1, "high", false, sqlmock.AnyArg(), res.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveAnalysis(context.Background(), res); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetAnalysis(t *testing.T) {
	st, mock := newMock(t)
	payload, err := json.Marshal(sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT result FROM analyses WHERE id=$1`)).
		WithArgs("rep-1").
		WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(payload))

	got, ok, err := st.GetAnalysis(context.Background(), "rep-1")
	if err != nil || !ok {
		t.Fatalf("GetAnalysis: ok=%v err=%v", ok, err)
	}
	if got.Sector != "pharmaceuticals" || got.Summary.MarketSize == nil || *got.Summary.MarketSize != "USD 50 billion" {
		t.Fatalf("unexpected result %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetAnalysisMissing(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT result FROM analyses WHERE id=$1`)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := st.GetAnalysis(context.Background(), "nope")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatalf("expected missing row")
	}
}

func TestListAnalysesDefaultsLimit(t *testing.T) {
	st, mock := newMock(t)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "sector", "country", "status", "iterations", "data_quality", "fallback_used", "created_at"}).
		AddRow("rep-2", "textiles", "India", "degraded", 1, "low", true, created).
		AddRow("rep-1", "pharmaceuticals", "India", "success", 0, "high", false, created.Add(-time.Hour))
	mock.ExpectQuery(`SELECT id, sector, country, status, iterations, data_quality, fallback_used, created_at\s+FROM analyses`).
		WithArgs("", 20).
		WillReturnRows(rows)

	got, err := st.ListAnalyses(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(got) != 2 || got[0].ID != "rep-2" || got[0].DataQuality != analysis.QualityLow || !got[0].FallbackUsed {
		t.Fatalf("unexpected records %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO api_keys (key_hash, user_id, created_at) VALUES ($1,$2,NOW())`)).
		WithArgs("digest", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id FROM api_keys WHERE key_hash=$1 AND revoked_at IS NULL`)).
		WithArgs("digest").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("alice"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE api_keys SET revoked_at=NOW() WHERE key_hash=$1 AND revoked_at IS NULL`)).
		WithArgs("digest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id FROM api_keys WHERE key_hash=$1 AND revoked_at IS NULL`)).
		WithArgs("digest").
		WillReturnError(sql.ErrNoRows)

	if err := st.InsertAPIKey(ctx, "digest", "alice"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	user, ok, err := st.LookupAPIKey(ctx, "digest")
	if err != nil || !ok || user != "alice" {
		t.Fatalf("lookup: user=%q ok=%v err=%v", user, ok, err)
	}
	revoked, err := st.RevokeAPIKey(ctx, "digest")
	if err != nil || !revoked {
		t.Fatalf("revoke: %v %v", revoked, err)
	}
	if _, ok, err := st.LookupAPIKey(ctx, "digest"); err != nil || ok {
		t.Fatalf("expected revoked key to be gone: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
