package analysis

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/mohammad-safakhou/tradescope/provider"
)

// Paths a critique can take; exported for metrics labels.
const (
	CritiquePathTooShort = "too_short"
	CritiquePathFallback = "fallback"
	CritiquePathModel    = "model"
	CritiquePathFailOpen = "fail_open"
)

// Verdict is a critique plus the path that produced it.
type Verdict struct {
	Critique Critique
	Path     string
}

// Critic judges a draft. Only the model path costs a call.
type Critic struct {
	llm       provider.Provider
	model     string
	minLength int
}

func NewCritic(llm provider.Provider, model string, minLength int) *Critic {
	if minLength <= 0 {
		minLength = 500
	}
	return &Critic{llm: llm, model: model, minLength: minLength}
}

// Review checks length first, then the fallback bypass, then asks the
// model. Model failures resolve to PASS.
func (c *Critic) Review(ctx context.Context, sector string, report *string, fallbackUsed bool) Outcome[Verdict] {
	if report == nil || utf8.RuneCountInString(*report) < c.minLength {
		return Succeed(Verdict{
			Critique: Critique{Decision: Fail, Reason: "Report is too short or empty. Needs substantial content."},
			Path:     CritiquePathTooShort,
		})
	}
	if fallbackUsed {
		return Succeed(Verdict{
			Critique: Critique{Decision: Pass, Reason: "Fallback data used; strict critique skipped."},
			Path:     CritiquePathFallback,
		})
	}

	raw, err := c.llm.Complete(ctx, provider.Request{
		System:      criticSystemPrompt,
		User:        critiquePrompt(sector, *report),
		Model:       c.model,
		Temperature: 0.2,
		MaxTokens:   800,
		Format:      provider.FormatJSON,
	})
	if err != nil {
		return failOpen(fmt.Sprintf("critique call failed: %v", err))
	}
	crit, err := DecodeCritique(raw)
	if err != nil {
		return failOpen(fmt.Sprintf("critique output unusable: %v", err))
	}
	return Succeed(Verdict{Critique: crit, Path: CritiquePathModel})
}

func failOpen(diag string) Outcome[Verdict] {
	return Degrade(Verdict{
		Critique: Critique{Decision: Pass, Reason: "Critique unavailable, defaulted to PASS (" + diag + ")"},
		Path:     CritiquePathFailOpen,
	}, diag)
}
