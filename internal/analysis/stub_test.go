package analysis

import (
	"context"
	"sync"

	"github.com/mohammad-safakhou/tradescope/provider"
)

type handler func(n int, req provider.Request) (string, error)

// scriptedLLM answers each stage with a per-stage handler and counts calls.
type scriptedLLM struct {
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]handler
}

func newScriptedLLM(h map[string]handler) *scriptedLLM {
	return &scriptedLLM{calls: map[string]int{}, handlers: h}
}

func stageOf(req provider.Request) string {
	switch req.System {
	case analystSystemPrompt:
		return "analyze"
	case criticSystemPrompt:
		return "critique"
	case refinerSystemPrompt:
		return "refine"
	case formatSystemPrompt:
		return "format"
	}
	return "unknown"
}

func (s *scriptedLLM) Complete(ctx context.Context, req provider.Request) (string, error) {
	stage := stageOf(req)
	s.mu.Lock()
	s.calls[stage]++
	n := s.calls[stage]
	h := s.handlers[stage]
	s.mu.Unlock()
	if h == nil {
		return "", provider.ErrEmptyResponse
	}
	return h(n, req)
}

func (s *scriptedLLM) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stage]
}

func constant(out string) handler {
	return func(int, provider.Request) (string, error) { return out, nil }
}

func failing(err error) handler {
	return func(int, provider.Request) (string, error) { return "", err }
}

type staticCollector struct {
	c     Collection
	panic bool
}

func (s staticCollector) Collect(ctx context.Context, sector, country string) Collection {
	if s.panic {
		panic("collector exploded")
	}
	return s.c
}
