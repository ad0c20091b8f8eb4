package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/tradescope/provider"
)

func TestGeneratorFallsBackOnFailure(t *testing.T) {
	llm := newScriptedLLM(map[string]handler{"analyze": failing(errors.New("503"))})
	out := NewGenerator(llm, "gpt-4o", nil).Generate(context.Background(), "pharmaceuticals", "India", "ctx")
	if !out.Degraded {
		t.Fatalf("expected degraded outcome")
	}
	if !strings.HasPrefix(out.Value, "# Pharmaceuticals Sector - Trade Opportunities Analysis (India)") {
		t.Fatalf("unexpected fallback report %q", out.Value)
	}
	if !strings.Contains(out.Value, "Analysis Unavailable") {
		t.Fatalf("fallback report missing marker")
	}
}

func TestGeneratorPromptCarriesContext(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) }
	llm := newScriptedLLM(map[string]handler{"analyze": func(n int, req provider.Request) (string, error) {
		if !strings.Contains(req.User, "---Article 1---") || !strings.Contains(req.User, "March 04, 2025") {
			t.Errorf("prompt missing context or date")
		}
		if req.Temperature != 0.2 || req.MaxTokens != 4000 {
			t.Errorf("unexpected sampling %+v", req)
		}
		return "report", nil
	}})
	out := NewGenerator(llm, "gpt-4o", now).Generate(context.Background(), "textiles", "India", "---Article 1---")
	if out.Degraded || out.Value != "report" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestRefinerKeepsPreviousOnEmpty(t *testing.T) {
	llm := newScriptedLLM(nil)
	out := NewRefiner(llm, "gpt-4o").Refine(context.Background(), "s", "c", "old report", Critique{Decision: Fail, Reason: "r"}, "ctx")
	if !out.Degraded || out.Value != "old report" {
		t.Fatalf("expected previous report retained, got %+v", out)
	}
}

func TestRefinerPromptIncludesCritique(t *testing.T) {
	llm := newScriptedLLM(map[string]handler{"refine": func(n int, req provider.Request) (string, error) {
		if !strings.Contains(req.User, "needs CAGR") || req.Temperature != 0.1 {
			t.Errorf("unexpected refine request")
		}
		return "new report", nil
	}})
	out := NewRefiner(llm, "gpt-4o").Refine(context.Background(), "s", "c", "old", Critique{Decision: Fail, Reason: "needs CAGR"}, "ctx")
	if out.Degraded || out.Value != "new report" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestFormatterExtractsFencedJSON(t *testing.T) {
	raw := "```json\n{\"market_size\": \"USD 50 billion\", \"growth_cagr\": \" \", \"top_recommendations\": [\"Register with CDSCO\", \"\", \"Target EU generics\"]}\n```"
	llm := newScriptedLLM(map[string]handler{"format": constant(raw)})
	out := NewFormatter(llm, "mini").Extract(context.Background(), "report")
	if out.Degraded {
		t.Fatalf("unexpected degrade: %s", out.Reason)
	}
	if out.Value.MarketSize == nil || *out.Value.MarketSize != "USD 50 billion" {
		t.Fatalf("unexpected market size %v", out.Value.MarketSize)
	}
	if out.Value.GrowthCAGR != nil {
		t.Fatalf("blank CAGR should be null")
	}
	if len(out.Value.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %v", out.Value.Recommendations)
	}
}

func TestFormatterFailureYieldsEmptyShape(t *testing.T) {
	llm := newScriptedLLM(map[string]handler{"format": constant("no json here")})
	out := NewFormatter(llm, "mini").Extract(context.Background(), "report")
	if !out.Degraded {
		t.Fatalf("expected degraded")
	}
	if out.Value.MarketSize != nil || out.Value.GrowthCAGR != nil || out.Value.Recommendations == nil || len(out.Value.Recommendations) != 0 {
		t.Fatalf("expected empty shape, got %+v", out.Value)
	}
}

func TestFormatterRequestsJSONObject(t *testing.T) {
	llm := newScriptedLLM(map[string]handler{"format": func(n int, req provider.Request) (string, error) {
		if req.Format != provider.FormatJSON || req.Temperature != 0 || req.MaxTokens != 800 {
			t.Errorf("unexpected format request %+v", req)
		}
		return `{"market_size":null,"growth_cagr":"9% CAGR","top_recommendations":[]}`, nil
	}})
	out := NewFormatter(llm, "mini").Extract(context.Background(), "report")
	if out.Degraded || out.Value.GrowthCAGR == nil || *out.Value.GrowthCAGR != "9% CAGR" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}
