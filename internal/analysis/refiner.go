package analysis

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/tradescope/provider"
)

// Refiner rewrites a rejected draft against the critique.
type Refiner struct {
	llm   provider.Provider
	model string
}

func NewRefiner(llm provider.Provider, model string) *Refiner {
	return &Refiner{llm: llm, model: model}
}

// Refine returns the rewritten report, or the previous one when the model
// fails or answers with nothing.
func (r *Refiner) Refine(ctx context.Context, sector, country, previous string, critique Critique, grounding string) Outcome[string] {
	out, err := r.llm.Complete(ctx, provider.Request{
		System:      refinerSystemPrompt,
		User:        refinePrompt(sector, country, previous, critique, grounding),
		Model:       r.model,
		Temperature: 0.1,
		MaxTokens:   4000,
		Format:      provider.FormatText,
	})
	if err != nil {
		return Degrade(previous, fmt.Sprintf("refinement failed: %v", err))
	}
	if out == "" {
		return Degrade(previous, "refinement returned an empty response")
	}
	return Succeed(out)
}
