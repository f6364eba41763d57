// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package proposal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/proposal-engine/internal/assemble"
	"github.com/pdiddy/proposal-engine/internal/gaps"
	"github.com/pdiddy/proposal-engine/internal/logging"
	"github.com/pdiddy/proposal-engine/internal/quality"
	"github.com/pdiddy/proposal-engine/internal/reconcile"
	"github.com/pdiddy/proposal-engine/internal/retrieve"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Retriever finds grounding for one section.
type Retriever interface {
	Retrieve(ctx context.Context, spec types.SectionSpec) retrieve.Result
}

// Generator drafts one section with a single call to the generation service.
type Generator interface {
	Generate(ctx context.Context, spec types.SectionSpec, citations []types.Citation, prior *types.SectionDraft) (types.SectionDraft, error)
}

// Checker validates a draft against its spec.
type Checker interface {
	Check(ctx context.Context, draft types.SectionDraft, spec types.SectionSpec) quality.Report
}

// GenerationFailure is a section whose generation still failed after every
// retry. Other sections are unaffected.
type GenerationFailure struct {
	Section  string
	Attempts int
	Err      error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generating section %q failed after %d attempts: %v", e.Section, e.Attempts, e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

// BatchSummary counts the outcomes of GenerateAll.
type BatchSummary struct {
	Generated int
	Skipped   int
	Failed    int
}

// Total returns the number of sections processed.
func (s BatchSummary) Total() int {
	return s.Generated + s.Skipped + s.Failed
}

// HasFailures reports whether any section failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// backoffBase controls the base duration for exponential backoff between
// generation attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// Pipeline runs the per-section stages against a Session.
type Pipeline struct {
	retriever Retriever
	generator Generator
	checker   Checker
	ledger    Ledger
	cfg       types.PipelineConfig
	logger    *slog.Logger
}

// NewPipeline wires the stages. checker may be nil to skip quality checks.
func NewPipeline(r Retriever, g Generator, c Checker, cfg types.PipelineConfig, logger *slog.Logger) *Pipeline {
	def := types.DefaultPipelineConfig()
	if cfg.Retrieval.Concurrency <= 0 {
		cfg.Retrieval.Concurrency = def.Retrieval.Concurrency
	}
	if cfg.Generation.Concurrency <= 0 {
		cfg.Generation.Concurrency = def.Generation.Concurrency
	}
	if cfg.Generation.MaxRetries < 0 {
		cfg.Generation.MaxRetries = 0
	}
	if cfg.Generation.Timeout <= 0 {
		cfg.Generation.Timeout = def.Generation.Timeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{retriever: r, generator: g, checker: c, cfg: cfg, logger: logger}
}

// WithLedger makes generation claim each section in l before drafting it
// and commit the result through l. Without a ledger, results are kept in
// the Session only.
func (p *Pipeline) WithLedger(l Ledger) *Pipeline {
	p.ledger = l
	return p
}

// RetrieveAll retrieves grounding for every section concurrently and
// records the results on s.
func (p *Pipeline) RetrieveAll(ctx context.Context, s *Session) map[string]retrieve.Result {
	var mu sync.Mutex
	out := make(map[string]retrieve.Result, len(s.Blueprint.Sections))

	wp := pool.New().WithMaxGoroutines(p.cfg.Retrieval.Concurrency)
	for _, spec := range s.Blueprint.Sections {
		wp.Go(func() {
			res := p.retriever.Retrieve(ctx, spec)
			s.SetRetrieval(res)
			mu.Lock()
			out[spec.Name] = res
			mu.Unlock()
		})
	}
	wp.Wait()
	return out
}

// Retrieve retrieves grounding for one section and records it on s.
func (p *Pipeline) Retrieve(ctx context.Context, s *Session, name string) (retrieve.Result, error) {
	spec, err := s.Spec(name)
	if err != nil {
		return retrieve.Result{}, err
	}
	res := p.retriever.Retrieve(ctx, spec)
	s.SetRetrieval(res)
	return res, nil
}

// Gaps analyzes the latest retrieval results recorded on s.
func Gaps(s *Session) []types.GapReport {
	return gaps.Analyze(&s.Blueprint, s.Retrievals())
}

// Assemble renders the session's drafts in blueprint order with the latest
// gap analysis.
func Assemble(s *Session) assemble.Proposal {
	return assemble.Assemble(&s.Blueprint, s.Drafts(), Gaps(s))
}

// ExportReady reports whether no blocking warning, missing required section
// or blocking gap on an uncited section remains.
func ExportReady(s *Session) bool {
	return Assemble(s).ExportReady
}

// GenerateSection retrieves, drafts, reconciles and checks one section,
// then commits the result. Generation failures and timeouts are retried
// with exponential backoff; exhaustion yields a *GenerationFailure. A
// result made stale by a concurrent edit is dropped with ErrStaleResult.
// With a ledger, a section claimed by another process is rejected with
// ErrGenerationInProgress before anything is generated.
func (p *Pipeline) GenerateSection(ctx context.Context, s *Session, name string) (types.SectionDraft, error) {
	spec, err := s.Spec(name)
	if err != nil {
		return types.SectionDraft{}, err
	}
	ticket, prior, err := s.BeginGeneration(spec.Name)
	if err != nil {
		return types.SectionDraft{}, err
	}

	var persist persistFunc
	if p.ledger != nil {
		lease, err := p.ledger.ClaimSection(ctx, s.ID, spec.Name, ticket.Base)
		if err != nil {
			s.Abort(ticket)
			return types.SectionDraft{}, fmt.Errorf("section %q: %w", spec.Name, err)
		}
		defer func() {
			if err := p.ledger.ReleaseSection(context.WithoutCancel(ctx), s.ID, spec.Name, lease); err != nil {
				p.logger.Warn("releasing section lease", "section", spec.Name, "error", err)
			}
		}()
		persist = func(position int, base, next uint64, d types.SectionDraft) error {
			return p.ledger.WriteDraft(ctx, s.ID, position, base, next, d, lease)
		}
	}

	res := p.retriever.Retrieve(ctx, spec)
	s.SetRetrieval(res)

	gen, attempts, err := p.generateWithRetry(ctx, spec, res.Citations, prior)
	if err != nil {
		s.Abort(ticket)
		p.logger.Error("generation failed", "section", spec.Name, "attempts", attempts, "error", err)
		return types.SectionDraft{}, &GenerationFailure{Section: spec.Name, Attempts: attempts, Err: err}
	}
	if res.Gap != nil && res.Gap.Reason == types.GapLowConfidence {
		gen.Warnings = append(gen.Warnings, types.Warning{
			Code:    types.WarnLowConfidence,
			Message: "supporting evidence is weak: " + res.Gap.Detail,
		})
	}

	merged := reconcile.Reconcile(prior, &gen, nil)
	p.refresh(ctx)(spec, &merged)

	if err := s.commit(ticket, merged, persist); err != nil {
		if errors.Is(err, ErrStaleResult) {
			p.logger.Info("discarded stale generation", "section", spec.Name)
		} else {
			p.logger.Error("storing generation failed", "section", spec.Name, "error", err)
		}
		return types.SectionDraft{}, err
	}
	p.logger.Info("generated section", "section", spec.Name, "words", merged.WordCount, "citations", len(merged.Citations), "attempts", attempts)
	return merged, nil
}

// GenerateAll generates every blueprint section. Sections are independent:
// a failure is reported and counted without stopping the others.
func (p *Pipeline) GenerateAll(ctx context.Context, s *Session, w io.Writer) BatchSummary {
	var (
		mu      sync.Mutex
		summary BatchSummary
	)
	wp := pool.New().WithMaxGoroutines(p.cfg.Generation.Concurrency)
	for _, spec := range s.Blueprint.Sections {
		wp.Go(func() {
			draft, err := p.GenerateSection(ctx, s, spec.Name)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrGenerationInProgress), errors.Is(err, ErrStaleResult):
				fmt.Fprintf(w, "skipped %s: %v\n", spec.Name, err)
				summary.Skipped++
			case err != nil:
				fmt.Fprintf(w, "failed  %s: %v\n", spec.Name, err)
				summary.Failed++
			default:
				fmt.Fprintf(w, "generated %s (%d words, %d citations)\n", spec.Name, draft.WordCount, len(draft.Citations))
				summary.Generated++
			}
		})
	}
	wp.Wait()
	return summary
}

// Edit applies overlay to its section and re-runs the quality checks.
func (p *Pipeline) Edit(ctx context.Context, s *Session, overlay types.EditOverlay) (types.SectionDraft, error) {
	return s.SaveEdit(overlay, p.refresh(ctx))
}

// Check re-runs the quality checks on every existing draft, stores the
// refreshed warnings and returns the reports keyed by section name.
func (p *Pipeline) Check(ctx context.Context, s *Session) map[string]quality.Report {
	out := make(map[string]quality.Report)
	if p.checker == nil {
		return out
	}
	for _, sec := range s.Blueprint.Sections {
		err := s.Update(sec.Name, func(spec types.SectionSpec, d *types.SectionDraft) {
			rep := p.checker.Check(ctx, *d, spec)
			quality.Apply(d, rep)
			out[spec.Name] = rep
		})
		if err != nil && !errors.Is(err, ErrNoDraft) {
			p.logger.Warn("quality check skipped", "section", sec.Name, "error", err)
		}
	}
	return out
}

func (p *Pipeline) refresh(ctx context.Context) Refresher {
	return func(spec types.SectionSpec, d *types.SectionDraft) {
		if p.checker == nil {
			return
		}
		quality.Apply(d, p.checker.Check(ctx, *d, spec))
	}
}

// generateWithRetry calls the generator with a per-attempt timeout and
// exponential backoff. It stops early when ctx itself is done.
func (p *Pipeline) generateWithRetry(ctx context.Context, spec types.SectionSpec, citations []types.Citation, prior *types.SectionDraft) (types.SectionDraft, int, error) {
	var lastErr error
	attempt := 0
	for attempt <= p.cfg.Generation.MaxRetries {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return types.SectionDraft{}, attempt, ctx.Err()
			case <-time.After(backoff):
			}
		}
		attempt++

		actx, cancel := context.WithTimeout(ctx, p.cfg.Generation.Timeout)
		draft, err := p.generator.Generate(actx, spec, citations, prior)
		cancel()
		if err == nil {
			return draft, attempt, nil
		}
		lastErr = err
		p.logger.Warn("generation attempt failed", "section", spec.Name, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			return types.SectionDraft{}, attempt, ctx.Err()
		}
	}
	return types.SectionDraft{}, attempt, lastErr
}
