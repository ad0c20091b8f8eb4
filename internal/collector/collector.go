package collector

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/tradescope/config"
	"github.com/mohammad-safakhou/tradescope/internal/analysis"
	"github.com/mohammad-safakhou/tradescope/internal/helpers"
	"github.com/mohammad-safakhou/tradescope/tools/web_search"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/models"
)

var collectorTracer trace.Tracer = otel.Tracer("tradescope/internal/collector")

// Backend is a named search provider.
type Backend struct {
	Name     string
	Searcher web_search.WebSearcher
}

// Recorder counts outbound search requests by provider and status.
type Recorder interface {
	SearchRequest(provider, status string)
}

type nopRecorder struct{}

func (nopRecorder) SearchRequest(string, string) {}

type Options struct {
	ResultsPerQuery int
	MaxSources      int
	Retry           config.RetryConfig
	Logger          *zap.Logger
	Recorder        Recorder
	// Sleep waits between queries; it must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0,1) used to spread inter-query delays.
	Jitter func() float64
	Now    func() time.Time
}

// Collector runs the sector queries and turns raw hits into ranked,
// deduplicated sources plus an LLM-ready context block.
type Collector struct {
	primary   *Backend
	secondary *Backend
	opts      Options
	logger    *zap.Logger
}

func New(primary, secondary *Backend, opts Options) *Collector {
	if opts.ResultsPerQuery <= 0 {
		opts.ResultsPerQuery = 3
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = 8
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry.Attempts = 2
	}
	if opts.Retry.InitialInterval <= 0 {
		opts.Retry.InitialInterval = 4 * time.Second
	}
	if opts.Retry.MaxInterval <= 0 {
		opts.Retry.MaxInterval = 15 * time.Second
	}
	if opts.Retry.Multiplier < 1 {
		opts.Retry.Multiplier = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Jitter == nil {
		opts.Jitter = rand.Float64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Collector{primary: primary, secondary: secondary, opts: opts, logger: opts.Logger.Named("collector")}
}

type query struct {
	text string
	kind string
}

func queriesFor(sector, country string, year int) []query {
	return []query{
		{fmt.Sprintf("%s %s trade opportunities market growth %d", country, sector, year), "Trade & Growth"},
		{fmt.Sprintf("%s %s export import policy investment %d", country, sector, year), "Policy & Investment"},
		{fmt.Sprintf("%s %s market size companies trends %d", country, sector, year), "Market Data"},
	}
}

// Collect never fails. Query errors are logged and skipped; an empty
// result set yields the fallback context.
func (c *Collector) Collect(ctx context.Context, sector, country string) analysis.Collection {
	ctx, span := collectorTracer.Start(ctx, "collector.collect", trace.WithAttributes(
		attribute.String("sector", sector),
		attribute.String("country", country),
	))
	defer span.End()

	now := c.opts.Now()
	scorer := newScorer(now.Year())
	seen := make(map[string]struct{})
	var results []analysis.Source

	for i, q := range queriesFor(sector, country, now.Year()) {
		if i > 0 {
			d := c.delay()
			c.logger.Debug("waiting before next query", zap.Duration("delay", d))
			if err := c.opts.Sleep(ctx, d); err != nil {
				c.logger.Warn("collection interrupted", zap.Error(err))
				break
			}
		}

		hits, err := c.search(ctx, q.text)
		if err != nil {
			c.logger.Warn("query failed", zap.Int("query", i+1), zap.String("q", q.text), zap.Error(err))
			continue
		}
		for _, h := range hits {
			title := strings.TrimSpace(h.Title)
			if title == "" {
				title = "No Title"
			}
			source := strings.TrimSpace(h.Source)
			if source == "" {
				source = "Unknown"
			}
			body := helpers.CleanText(h.Body)
			fp := helpers.Fingerprint(body)
			if _, dup := seen[fp]; dup {
				c.logger.Debug("skipping duplicate", zap.String("title", helpers.Truncate(title, 50)))
				continue
			}
			seen[fp] = struct{}{}
			results = append(results, analysis.Source{
				Title:     title,
				URL:       helpers.CanonicalURL(h.URL),
				Source:    source,
				Snippet:   helpers.Truncate(body, 300),
				Priority:  scorer.score(source, title, h.Body),
				QueryType: q.kind,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Priority > results[j].Priority })
	if len(results) > c.opts.MaxSources {
		results = results[:c.opts.MaxSources]
	}

	out := analysis.Collection{
		Results:      results,
		Quality:      analysis.QualityFor(len(results)),
		FallbackUsed: len(results) == 0,
	}
	if out.FallbackUsed {
		out.Context = FallbackContext(sector, country)
		c.logger.Warn("no search results, using fallback context", zap.String("sector", sector))
	} else {
		out.Context = FormatContext(results)
	}
	span.SetAttributes(attribute.Int("results", len(results)), attribute.String("quality", string(out.Quality)))
	c.logger.Info("collection complete", zap.Int("results", len(results)), zap.String("quality", string(out.Quality)))
	return out
}

// delay is 1-2s when a primary provider is configured, 5-8s otherwise.
func (c *Collector) delay() time.Duration {
	lo, hi := 5.0, 8.0
	if c.primary != nil {
		lo, hi = 1.0, 2.0
	}
	secs := lo + (hi-lo)*c.opts.Jitter()
	return time.Duration(secs * float64(time.Second))
}

func (c *Collector) search(ctx context.Context, q string) ([]models.Result, error) {
	if c.primary != nil {
		hits, err := c.primary.Searcher.Search(ctx, q, c.opts.ResultsPerQuery)
		c.opts.Recorder.SearchRequest(c.primary.Name, status(err))
		if err == nil {
			return hits, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("primary search failed, trying secondary", zap.String("provider", c.primary.Name), zap.Error(err))
	}
	if c.secondary == nil {
		return nil, errors.New("no search backend available")
	}
	return c.searchSecondary(ctx, q)
}

func (c *Collector) searchSecondary(ctx context.Context, q string) ([]models.Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.Retry.InitialInterval
	b.MaxInterval = c.opts.Retry.MaxInterval
	b.Multiplier = c.opts.Retry.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.Retry.Attempts-1)), ctx)

	var hits []models.Result
	op := func() error {
		res, err := c.secondary.Searcher.Search(ctx, q, c.opts.ResultsPerQuery)
		c.opts.Recorder.SearchRequest(c.secondary.Name, status(err))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		hits = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("secondary search retry", zap.String("provider", c.secondary.Name), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("%s: %w", c.secondary.Name, err)
	}
	return hits, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FormatContext renders sources in the delimited article layout the
// analysis prompt expects.
func FormatContext(results []analysis.Source) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		n := strconv.Itoa(i + 1)
		parts = append(parts, "---Article "+n+"---\n"+
			"SOURCE: "+r.Source+"\n"+
			"TITLE: "+r.Title+"\n"+
			"URL: "+r.URL+"\n\n"+
			r.Snippet+"\n\n"+
			"---End Article "+n+"---")
	}
	return strings.Join(parts, "\n\n")
}

// FallbackContext tells the model no external data was found and that
// every figure must be hedged.
func FallbackContext(sector, country string) string {
	return fmt.Sprintf(`---Fallback Context---
SOURCE: System Context
TITLE: %[1]s Sector Analysis Framework - %[2]s

IMPORTANT INSTRUCTION:
No external search data is currently available. Build the report from:
1. General knowledge of the %[2]s %[3]s sector
2. Standard industry analysis frameworks
3. General economic trends in %[2]s

MANDATORY DISCLAIMERS:
- Label every data point as "Estimated" or "Approximate"
- Attribute claims to "Industry estimates" or "General market observations"
- Prefer qualitative analysis over specific numbers
- State that this is a preliminary analysis pending data availability
- Recommend data sources for future validation
---End Fallback Context---`, analysis.TitleCase(sector), country, sector)
}
