package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/tradescope/config"
	"github.com/mohammad-safakhou/tradescope/provider"
)

// Collector gathers grounding context for a sector. It never fails; an
// empty collection is reported through FallbackUsed.
type Collector interface {
	Collect(ctx context.Context, sector, country string) Collection
}

// Recorder receives pipeline metrics. See internal/telemetry.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	CritiqueDecision(decision Decision, path string)
	AnalysisFinished(status string, iterations int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) CritiqueDecision(Decision, string)  {}
func (nopRecorder) AnalysisFinished(string, int)       {}

var ErrStepLimit = errors.New("workflow exceeded its step limit")

type phase int

const (
	phaseCollect phase = iota
	phaseAnalyze
	phaseCritique
	phaseRefine
	phaseFormat
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseCollect:
		return "collect"
	case phaseAnalyze:
		return "analyze"
	case phaseCritique:
		return "critique"
	case phaseRefine:
		return "refine"
	case phaseFormat:
		return "format"
	case phaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Options configures an Orchestrator.
type Options struct {
	Models          config.LLMModels
	MaxIterations   int
	MinReportLength int
	ExposedSources  int
	Logger          *zap.Logger
	Recorder        Recorder
	Clock           func() time.Time
	NewID           func() string
}

// Orchestrator runs collect, analyze, critique, bounded refine/critique
// rounds and format for one sector at a time. It holds no per-run state
// and is safe for concurrent use.
type Orchestrator struct {
	collector Collector
	generator *Generator
	critic    *Critic
	refiner   *Refiner
	formatter *Formatter

	maxIterations  int
	exposedSources int

	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

var orchestratorTracer trace.Tracer = otel.Tracer("tradescope/internal/analysis")

func NewOrchestrator(collector Collector, llm provider.Provider, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.MaxIterations < 0 {
		opts.MaxIterations = 0
	}
	if opts.ExposedSources <= 0 {
		opts.ExposedSources = 10
	}
	return &Orchestrator{
		collector:      collector,
		generator:      NewGenerator(llm, opts.Models.Analysis, opts.Clock),
		critic:         NewCritic(llm, opts.Models.Critique, opts.MinReportLength),
		refiner:        NewRefiner(llm, opts.Models.Refine),
		formatter:      NewFormatter(llm, opts.Models.Format),
		maxIterations:  opts.MaxIterations,
		exposedSources: opts.ExposedSources,
		logger:         opts.Logger.Named("orch"),
		recorder:       opts.Recorder,
		now:            opts.Clock,
		newID:          opts.NewID,
	}
}

// MaxIterations reports the configured refinement bound.
func (o *Orchestrator) MaxIterations() int { return o.maxIterations }

// Run executes the whole pipeline. It never returns an error and never
// panics: stage failures degrade in place, and anything that escapes a
// stage (a panic or a cancelled context) produces an error report.
func (o *Orchestrator) Run(ctx context.Context, sector, country string) (res Result) {
	state := NewState(sector, country, o.now().UTC())
	ctx, span := orchestratorTracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("sector", sector),
		attribute.String("country", country),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("workflow panic: %v", r)
			o.logger.Error("workflow aborted", zap.String("sector", sector), zap.Any("panic", r))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			res = o.abort(state, err)
		}
	}()

	if err := o.drive(ctx, state); err != nil {
		o.logger.Error("workflow aborted", zap.String("sector", sector), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return o.abort(state, err)
	}
	res = o.finish(state)
	span.SetAttributes(attribute.Int("iterations", res.Iterations), attribute.String("status", res.Status))
	return res
}

func (o *Orchestrator) drive(ctx context.Context, state *WorkflowState) error {
	limit := 2*o.maxIterations + 4
	steps := 0
	for p := phaseCollect; p != phaseDone; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if steps++; steps > limit {
			return ErrStepLimit
		}
		started := time.Now()
		next := o.step(ctx, p, state)
		o.recorder.ObserveStage(p.String(), time.Since(started))
		p = next
	}
	return nil
}

func (o *Orchestrator) step(ctx context.Context, p phase, state *WorkflowState) phase {
	ctx, span := orchestratorTracer.Start(ctx, "analysis."+p.String(), trace.WithAttributes(
		attribute.Int("iteration", state.IterationCount),
	))
	defer span.End()

	switch p {
	case phaseCollect:
		o.collect(ctx, state)
		return phaseAnalyze
	case phaseAnalyze:
		o.analyze(ctx, state)
		return phaseCritique
	case phaseCritique:
		o.critique(ctx, state)
		return nextAfterCritique(state, o.maxIterations)
	case phaseRefine:
		o.refine(ctx, state)
		return phaseCritique
	case phaseFormat:
		o.format(ctx, state)
		return phaseDone
	}
	return phaseDone
}

// nextAfterCritique is the only branching point of the workflow.
func nextAfterCritique(state *WorkflowState, maxIterations int) phase {
	if state.IterationCount >= maxIterations {
		return phaseFormat
	}
	if state.Critique.Normalized().Decision == Pass {
		return phaseFormat
	}
	return phaseRefine
}

func (o *Orchestrator) collect(ctx context.Context, state *WorkflowState) {
	c := o.collector.Collect(ctx, state.Sector, state.Country)
	raw := c.Context
	state.RawContext = &raw
	state.SearchResults = c.Results
	state.DataQuality = c.Quality
	if state.DataQuality == "" {
		state.DataQuality = QualityFor(len(c.Results))
	}
	state.FallbackUsed = c.FallbackUsed
	o.logger.Info("collected",
		zap.String("sector", state.Sector),
		zap.Int("results", len(c.Results)),
		zap.String("quality", string(state.DataQuality)),
		zap.Bool("fallback", c.FallbackUsed))
}

func (o *Orchestrator) analyze(ctx context.Context, state *WorkflowState) {
	out := o.generator.Generate(ctx, state.Sector, state.Country, deref(state.RawContext))
	o.absorb(state, "analyze", out.Degraded, out.Reason, true)
	report := out.Value
	state.Report = &report
	o.logger.Info("report drafted", zap.Int("chars", len(report)), zap.Bool("fallback_report", out.Degraded))
}

func (o *Orchestrator) critique(ctx context.Context, state *WorkflowState) {
	out := o.critic.Review(ctx, state.Sector, state.Report, state.FallbackUsed)
	o.absorb(state, "critique", out.Degraded, out.Reason, false)
	state.Critique = out.Value.Critique.Normalized()
	o.recorder.CritiqueDecision(state.Critique.Decision, out.Value.Path)
	o.logger.Info("critique",
		zap.String("decision", string(state.Critique.Decision)),
		zap.String("path", out.Value.Path),
		zap.Int("iteration", state.IterationCount))
}

// refine counts an iteration even if the stage panics.
func (o *Orchestrator) refine(ctx context.Context, state *WorkflowState) {
	defer func() { state.IterationCount++ }()
	out := o.refiner.Refine(ctx, state.Sector, state.Country, deref(state.Report), state.Critique, deref(state.RawContext))
	o.absorb(state, "refine", out.Degraded, out.Reason, true)
	report := out.Value
	state.Report = &report
}

func (o *Orchestrator) format(ctx context.Context, state *WorkflowState) {
	out := o.formatter.Extract(ctx, deref(state.Report))
	o.absorb(state, "format", out.Degraded, out.Reason, true)
	sum := out.Value
	state.Summary = &sum
}

// absorb records a degraded stage. Critic degradations are diagnostics
// only; the rest also land in the run's error field.
func (o *Orchestrator) absorb(state *WorkflowState, stage string, degraded bool, reason string, isError bool) {
	if !degraded {
		return
	}
	state.Diagnostics = append(state.Diagnostics, stage+": "+reason)
	if isError {
		state.recordError(reason)
	}
	o.logger.Warn("stage degraded", zap.String("stage", stage), zap.String("reason", reason))
}

func (o *Orchestrator) finish(state *WorkflowState) Result {
	status := StatusSuccess
	if state.Error != nil {
		status = StatusDegraded
	}
	res := o.result(state, status)
	o.recorder.AnalysisFinished(status, res.Iterations)
	o.logger.Info("workflow complete",
		zap.String("sector", state.Sector),
		zap.String("status", status),
		zap.Int("iterations", res.Iterations))
	return res
}

func (o *Orchestrator) abort(state *WorkflowState, err error) Result {
	state.recordError("workflow execution failed: " + err.Error())
	report := ErrorReport(state.Sector, state.Country, err.Error())
	state.Report = &report
	res := o.result(state, StatusError)
	o.recorder.AnalysisFinished(StatusError, res.Iterations)
	return res
}

func (o *Orchestrator) result(state *WorkflowState, status string) Result {
	summary := EmptySummary()
	if state.Summary != nil {
		summary = *state.Summary
	}
	sources := state.SearchResults
	if len(sources) > o.exposedSources {
		sources = sources[:o.exposedSources]
	}
	if sources == nil {
		sources = []Source{}
	}
	return Result{
		Status:       status,
		ReportID:     o.newID(),
		Sector:       state.Sector,
		Country:      state.Country,
		Timestamp:    state.StartedAt,
		Report:       deref(state.Report),
		Iterations:   state.IterationCount,
		Error:        state.Error,
		Summary:      summary,
		Sources:      sources,
		DataQuality:  state.DataQuality,
		FallbackUsed: state.FallbackUsed,
		Critique:     state.Critique.Normalized(),
		Diagnostics:  state.Diagnostics,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
