package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/tradescope/internal/helpers"
	"github.com/mohammad-safakhou/tradescope/provider"
)

// Formatter extracts the structured summary from the final report.
type Formatter struct {
	llm   provider.Provider
	model string
}

func NewFormatter(llm provider.Provider, model string) *Formatter {
	return &Formatter{llm: llm, model: model}
}

func (f *Formatter) Extract(ctx context.Context, report string) Outcome[Summary] {
	raw, err := f.llm.Complete(ctx, provider.Request{
		System:      formatSystemPrompt,
		User:        formatPrompt(report),
		Model:       f.model,
		Temperature: 0,
		MaxTokens:   800,
		Format:      provider.FormatJSON,
	})
	if err != nil {
		return Degrade(EmptySummary(), fmt.Sprintf("summary extraction failed: %v", err))
	}
	sum, err := decodeSummary(raw)
	if err != nil {
		return Degrade(EmptySummary(), fmt.Sprintf("summary extraction unusable: %v", err))
	}
	return Succeed(sum)
}

func decodeSummary(raw string) (Summary, error) {
	js, err := helpers.ExtractJSON(raw)
	if err != nil {
		return Summary{}, err
	}
	var payload struct {
		MarketSize         *string  `json:"market_size"`
		GrowthCAGR         *string  `json:"growth_cagr"`
		TopRecommendations []string `json:"top_recommendations"`
		Recommendations    []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(js), &payload); err != nil {
		return Summary{}, err
	}
	recs := payload.TopRecommendations
	if len(recs) == 0 {
		recs = payload.Recommendations
	}
	out := EmptySummary()
	out.MarketSize = nonBlank(payload.MarketSize)
	out.GrowthCAGR = nonBlank(payload.GrowthCAGR)
	for _, r := range recs {
		if r = strings.TrimSpace(r); r != "" {
			out.Recommendations = append(out.Recommendations, r)
		}
	}
	return out, nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
