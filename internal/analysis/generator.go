package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/tradescope/provider"
)

// Generator drafts the first report from the collected context.
type Generator struct {
	llm   provider.Provider
	model string
	now   func() time.Time
}

func NewGenerator(llm provider.Provider, model string, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{llm: llm, model: model, now: now}
}

func (g *Generator) Generate(ctx context.Context, sector, country, grounding string) Outcome[string] {
	out, err := g.llm.Complete(ctx, provider.Request{
		System:      analystSystemPrompt,
		User:        analysisPrompt(sector, country, grounding, g.now()),
		Model:       g.model,
		Temperature: 0.2,
		MaxTokens:   4000,
		Format:      provider.FormatText,
	})
	if err != nil {
		return Degrade(FallbackReport(sector, country), fmt.Sprintf("analysis generation failed: %v", err))
	}
	if out == "" {
		return Degrade(FallbackReport(sector, country), "analysis generation returned an empty response")
	}
	return Succeed(out)
}
