package analysis

import (
	"strings"
	"time"
)

// Decision is the critic's verdict on a report draft.
type Decision string

const (
	Pass Decision = "PASS"
	Fail Decision = "FAIL"
)

// Critique is the normalized critic output.
type Critique struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
}

// Normalized treats the zero critique as a pass.
func (c Critique) Normalized() Critique {
	if c.Decision == "" {
		c.Decision = Pass
	}
	return c
}

type DataQuality string

const (
	QualityHigh     DataQuality = "high"
	QualityModerate DataQuality = "moderate"
	QualityLow      DataQuality = "low"
)

// QualityFor grades a collection by the number of retained sources.
func QualityFor(n int) DataQuality {
	switch {
	case n >= 5:
		return QualityHigh
	case n >= 3:
		return QualityModerate
	default:
		return QualityLow
	}
}

// Source is one retained search result.
type Source struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Source    string `json:"source"`
	Snippet   string `json:"snippet"`
	Priority  int    `json:"-"`
	QueryType string `json:"-"`
}

// Collection is what the collector hands to the pipeline.
type Collection struct {
	Context      string
	Results      []Source
	Quality      DataQuality
	FallbackUsed bool
}

// Summary is the structured extraction of a final report.
type Summary struct {
	MarketSize      *string  `json:"market_size"`
	GrowthCAGR      *string  `json:"growth_cagr"`
	Recommendations []string `json:"recommendations"`
}

// EmptySummary is the all-null shape used when extraction fails.
func EmptySummary() Summary {
	return Summary{Recommendations: []string{}}
}

// WorkflowState is threaded through every stage of a single run. Only the
// orchestrator mutates it.
type WorkflowState struct {
	Sector  string
	Country string

	RawContext    *string
	SearchResults []Source
	DataQuality   DataQuality
	FallbackUsed  bool

	Report         *string
	Critique       Critique
	IterationCount int

	Summary *Summary

	Error       *string
	Diagnostics []string
	StartedAt   time.Time
}

func NewState(sector, country string, now time.Time) *WorkflowState {
	return &WorkflowState{
		Sector:      sector,
		Country:     country,
		DataQuality: QualityLow,
		Critique:    Critique{Decision: Pass},
		StartedAt:   now,
	}
}

// recordError appends msg to the accumulated error string.
func (s *WorkflowState) recordError(msg string) {
	if msg == "" {
		return
	}
	if s.Error == nil || *s.Error == "" {
		s.Error = &msg
		return
	}
	joined := strings.Join([]string{*s.Error, msg}, "; ")
	s.Error = &joined
}

// Result is the externally visible outcome of a run.
type Result struct {
	Status       string      `json:"status"`
	ReportID     string      `json:"report_id"`
	Sector       string      `json:"sector"`
	Country      string      `json:"country"`
	Timestamp    time.Time   `json:"timestamp"`
	Report       string      `json:"report"`
	Iterations   int         `json:"iterations"`
	Error        *string     `json:"error"`
	Summary      Summary     `json:"structured_summary"`
	Sources      []Source    `json:"sources"`
	DataQuality  DataQuality `json:"data_quality"`
	FallbackUsed bool        `json:"fallback_used"`
	Critique     Critique    `json:"critique"`
	Diagnostics  []string    `json:"diagnostics,omitempty"`
}

const (
	StatusSuccess  = "success"
	StatusDegraded = "degraded"
	StatusError    = "error"
)
