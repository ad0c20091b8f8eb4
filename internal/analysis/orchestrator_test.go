package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mohammad-safakhou/tradescope/config"
	"github.com/mohammad-safakhou/tradescope/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var models = config.LLMModels{Analysis: "gpt-4o", Critique: "gpt-4o-mini", Refine: "gpt-4o", Format: "gpt-4o-mini"}

func richCollection(n int) Collection {
	var results []Source
	var parts []string
	for i := 1; i <= n; i++ {
		results = append(results, Source{Title: fmt.Sprintf("Title %d", i), URL: fmt.Sprintf("https://example.com/%d", i), Source: "Reuters", Snippet: "s"})
		parts = append(parts, fmt.Sprintf("---Article %d---\nSOURCE: Reuters\n---End Article %d---", i, i))
	}
	return Collection{Context: strings.Join(parts, "\n\n"), Results: results, Quality: QualityFor(n)}
}

type countingRecorder struct {
	decisions []Decision
	status    string
	stages    map[string]int
}

func (r *countingRecorder) ObserveStage(stage string, d time.Duration) {
	if r.stages == nil {
		r.stages = map[string]int{}
	}
	r.stages[stage]++
}
func (r *countingRecorder) CritiqueDecision(d Decision, path string) { r.decisions = append(r.decisions, d) }
func (r *countingRecorder) AnalysisFinished(status string, iterations int) { r.status = status }

func newTestOrchestrator(c Collector, llm provider.Provider, max int, rec Recorder) *Orchestrator {
	return NewOrchestrator(c, llm, Options{
		Models:          models,
		MaxIterations:   max,
		MinReportLength: 500,
		Recorder:        rec,
		NewID:           func() string { return "rep-1" },
	})
}

func TestRunTerminatesWithAlwaysFailingCritic(t *testing.T) {
	for _, max := range []int{0, 1, 2, 3} {
		t.Run(fmt.Sprintf("max=%d", max), func(t *testing.T) {
			llm := newScriptedLLM(map[string]handler{
				"analyze":  constant(longReport),
				"critique": constant(`{"decision":"FAIL","reason":"never good enough"}`),
				"refine":   func(n int, _ provider.Request) (string, error) { return fmt.Sprintf("%s v%d", longReport, n), nil },
				"format":   constant(`{"market_size":null,"growth_cagr":null,"top_recommendations":[]}`),
			})
			rec := &countingRecorder{}
			res := newTestOrchestrator(staticCollector{c: richCollection(6)}, llm, max, rec).Run(context.Background(), "pharma", "India")

			if res.Iterations != max {
				t.Fatalf("expected %d iterations, got %d", max, res.Iterations)
			}
			if llm.count("refine") != max || llm.count("critique") != max+1 {
				t.Fatalf("unexpected call counts refine=%d critique=%d", llm.count("refine"), llm.count("critique"))
			}
			if llm.count("format") != 1 {
				t.Fatalf("formatter must run exactly once")
			}
			if res.Critique.Decision != Fail || res.Status != StatusSuccess {
				t.Fatalf("unexpected result %+v", res)
			}
			if len(rec.decisions) != max+1 || rec.status != StatusSuccess {
				t.Fatalf("recorder saw %v / %q", rec.decisions, rec.status)
			}
		})
	}
}

func TestRunPassSkipsRefinement(t *testing.T) {
	llm := newScriptedLLM(map[string]handler{
		"analyze":  constant(longReport),
		"critique": constant(`{"decision":"PASS","reason":"fine"}`),
		"format":   constant(`{"market_size":"USD 1 billion"}`),
	})
	res := newTestOrchestrator(staticCollector{c: richCollection(3)}, llm, 1, nil).Run(context.Background(), "pharma", "India")
	if res.Iterations != 0 || llm.count("refine") != 0 {
		t.Fatalf("expected no refinement, got %d", res.Iterations)
	}
	if res.DataQuality != QualityModerate || res.Report != longReport {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Error != nil {
		t.Fatalf("expected no error, got %q", *res.Error)
	}
}

func TestRunFallbackDataBypassesCritic(t *testing.T) {
	llm := newScriptedLLM(map[string]handler{
		"analyze":  constant(longReport),
		"critique": constant(`{"decision":"FAIL"}`),
		"format":   constant(`{}`),
	})
	col := Collection{Context: "fallback", Quality: QualityLow, FallbackUsed: true}
	res := newTestOrchestrator(staticCollector{c: col}, llm, 2, nil).Run(context.Background(), "pharma", "India")
	if llm.count("critique") != 0 {
		t.Fatalf("critic model must not be called on fallback data")
	}
	if !res.FallbackUsed || res.Critique.Decision != Pass || res.Iterations != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Sources) != 0 || res.Sources == nil {
		t.Fatalf("expected empty non-nil sources")
	}
}

func TestRunDegradesWhenEveryModelCallFails(t *testing.T) {
	boom := errors.New("upstream unavailable")
	llm := newScriptedLLM(map[string]handler{
		"analyze":  failing(boom),
		"critique": failing(boom),
		"refine":   failing(boom),
		"format":   failing(boom),
	})
	res := newTestOrchestrator(staticCollector{c: richCollection(5)}, llm, 1, nil).Run(context.Background(), "pharma", "India")

	if !strings.Contains(res.Report, "Analysis Unavailable") {
		t.Fatalf("expected fallback report, got %q", res.Report)
	}
	if res.Error == nil || !strings.Contains(*res.Error, "analysis generation failed") || !strings.Contains(*res.Error, "; ") {
		t.Fatalf("expected joined stage errors, got %v", res.Error)
	}
	// fallback report is short, so the critic fails it without a call
	if res.Iterations != 1 || llm.count("critique") != 0 {
		t.Fatalf("unexpected iterations=%d critique calls=%d", res.Iterations, llm.count("critique"))
	}
	if res.Status != StatusDegraded || res.Summary.Recommendations == nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	rec := &countingRecorder{}
	res := newTestOrchestrator(staticCollector{panic: true}, newScriptedLLM(nil), 1, rec).Run(context.Background(), "pharma", "India")
	if res.Status != StatusError || rec.status != StatusError {
		t.Fatalf("expected error status, got %q", res.Status)
	}
	if !strings.Contains(res.Report, "## Workflow Error") || !strings.Contains(res.Report, "collector exploded") {
		t.Fatalf("expected error report, got %q", res.Report)
	}
	if res.Error == nil || !strings.HasPrefix(*res.Error, "workflow execution failed") {
		t.Fatalf("unexpected error %v", res.Error)
	}
}

func TestRunRefinerPanicStillCountsIteration(t *testing.T) {
	llm := newScriptedLLM(map[string]handler{
		"analyze":  constant(longReport),
		"critique": constant(`{"decision":"FAIL","reason":"x"}`),
		"refine":   func(int, provider.Request) (string, error) { panic("refiner bug") },
	})
	res := newTestOrchestrator(staticCollector{c: richCollection(5)}, llm, 3, nil).Run(context.Background(), "pharma", "India")
	if res.Status != StatusError || res.Iterations != 1 {
		t.Fatalf("expected aborted run with one counted iteration, got %s/%d", res.Status, res.Iterations)
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := newScriptedLLM(map[string]handler{"analyze": constant(longReport)})
	res := newTestOrchestrator(staticCollector{c: richCollection(5)}, llm, 1, nil).Run(ctx, "pharma", "India")
	if res.Status != StatusError || llm.count("analyze") != 0 {
		t.Fatalf("expected immediate abort, got %s", res.Status)
	}
	if !strings.Contains(*res.Error, context.Canceled.Error()) {
		t.Fatalf("expected cancellation in error, got %q", *res.Error)
	}
}

func TestNextAfterCritique(t *testing.T) {
	st := &WorkflowState{Critique: Critique{Decision: Fail}}
	if nextAfterCritique(st, 1) != phaseRefine {
		t.Fatalf("FAIL under bound should refine")
	}
	st.IterationCount = 1
	if nextAfterCritique(st, 1) != phaseFormat {
		t.Fatalf("bound reached should format")
	}
	st.IterationCount = 0
	st.Critique = Critique{}
	if nextAfterCritique(st, 1) != phaseFormat {
		t.Fatalf("zero critique counts as PASS")
	}
}

func TestRunPharmaceuticalsEndToEnd(t *testing.T) {
	llm := newScriptedLLM(map[string]handler{
		"analyze": func(n int, req provider.Request) (string, error) {
			if req.Model != "gpt-4o" {
				t.Errorf("analysis should use gpt-4o, got %s", req.Model)
			}
			return "# Pharmaceuticals Sector - Trade Opportunities Analysis (India)\n\n" + longReport, nil
		},
		"critique": func(n int, req provider.Request) (string, error) {
			if n == 1 {
				return `{"decision":"FAIL","reason":"Criterion 1: add CAGR"}`, nil
			}
			return `{"decision":"PASS","reason":"meets baseline"}`, nil
		},
		"refine": func(n int, req provider.Request) (string, error) {
			return "# Pharmaceuticals Sector - Trade Opportunities Analysis (India)\n\nCAGR 11%. " + longReport, nil
		},
		"format": constant("```json\n{\"market_size\":\"USD 50 billion\",\"growth_cagr\":\"11% CAGR\",\"top_recommendations\":[\"a\",\"b\",\"c\"]}\n```"),
	})
	res := newTestOrchestrator(staticCollector{c: richCollection(12)}, llm, 1, nil).Run(context.Background(), "pharmaceuticals", "India")

	if res.Status != StatusSuccess || res.Error != nil {
		t.Fatalf("unexpected status %s err=%v", res.Status, res.Error)
	}
	if res.Iterations != 1 || res.Critique.Decision != Pass {
		t.Fatalf("expected one refinement then PASS, got %d/%s", res.Iterations, res.Critique.Decision)
	}
	if !strings.Contains(res.Report, "CAGR 11%") {
		t.Fatalf("expected refined report")
	}
	if len(res.Sources) != 10 || res.DataQuality != QualityHigh {
		t.Fatalf("expected 10 exposed sources with high quality, got %d/%s", len(res.Sources), res.DataQuality)
	}
	if res.ReportID != "rep-1" || res.Timestamp.IsZero() {
		t.Fatalf("missing identity fields")
	}

	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]any
	_ = json.Unmarshal(b, &wire)
	summary := wire["structured_summary"].(map[string]any)
	if summary["market_size"] != "USD 50 billion" || len(summary["recommendations"].([]any)) != 3 {
		t.Fatalf("unexpected summary %v", summary)
	}
	if _, ok := wire["error"]; !ok || wire["error"] != nil {
		t.Fatalf("error must be present and null, got %v", wire["error"])
	}
}

func TestRunConcurrentRequestsShareNothing(t *testing.T) {
	boom := errors.New("upstream unavailable")
	llm := newScriptedLLM(map[string]handler{
		"analyze":  failing(boom),
		"critique": constant(`{"decision":"PASS","reason":"ok"}`),
		"format":   constant(`{}`),
	})
	orch := newTestOrchestrator(staticCollector{c: Collection{Context: "fallback", Quality: QualityLow, FallbackUsed: true}}, llm, 1, nil)

	sectors := []string{"pharmaceuticals", "textiles", "auto parts", "renewable energy"}
	var wg sync.WaitGroup
	results := make([]Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = orch.Run(context.Background(), sectors[i%len(sectors)], "India")
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		want := "# " + TitleCase(sectors[i%len(sectors)]) + " Sector"
		if !strings.HasPrefix(res.Report, want) {
			t.Fatalf("run %d: expected heading %q, got %q", i, want, res.Report)
		}
		if res.Sector != sectors[i%len(sectors)] || res.Status != StatusDegraded {
			t.Fatalf("run %d: unexpected result %s/%s", i, res.Sector, res.Status)
		}
	}
}
