// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve finds grounding evidence for a blueprint section. It
// queries the chunk store once per section with a bounded timeout, drops
// weak matches, and reports a gap when nothing useful remains.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pdiddy/proposal-engine/internal/logging"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// ChunkStore is the similarity search contract the retriever consumes.
// Results are ranked best first; equal scores keep a deterministic order.
type ChunkStore interface {
	Search(ctx context.Context, query string, k int) ([]types.Chunk, error)
}

// ErrRetrievalTimeout is recorded on a Result whose search did not finish in time.
var ErrRetrievalTimeout = errors.New("retrieval timed out")

// Result is the outcome of retrieving grounding for one section. Err is
// informational: a failed or timed-out search still yields a usable Result
// with no citations and a gap.
type Result struct {
	SectionName string           `json:"section_name" yaml:"section_name"`
	Citations   []types.Citation `json:"citations" yaml:"citations"`
	Gap         *types.GapReport `json:"gap,omitempty" yaml:"gap,omitempty"`
	Err         error            `json:"-" yaml:"-"`
}

// Retriever turns section requirements into ranked, filtered citations.
type Retriever struct {
	store  ChunkStore
	cfg    types.RetrievalConfig
	logger *slog.Logger
}

// New returns a Retriever. Zero config values take the package defaults.
func New(store ChunkStore, cfg types.RetrievalConfig, logger *slog.Logger) *Retriever {
	def := types.DefaultPipelineConfig().Retrieval
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MinRelevance <= 0 {
		cfg.MinRelevance = def.MinRelevance
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = def.SnippetChars
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Retriever{store: store, cfg: cfg, logger: logger}
}

// BuildQuery combines the section's name, requirement text and word limit
// into the search query.
func BuildQuery(spec types.SectionSpec) string {
	parts := []string{spec.Name}
	if r := strings.TrimSpace(spec.Requirement); r != "" {
		parts = append(parts, r)
	}
	if spec.WordLimit != nil {
		parts = append(parts, fmt.Sprintf("requirements for %d word section", *spec.WordLimit))
	}
	return strings.Join(parts, " ")
}

type searchResult struct {
	chunks []types.Chunk
	err    error
}

// Retrieve searches the chunk store for spec. It never returns an error:
// timeouts and store failures produce an empty citation list plus a
// no_grounding gap whose detail names the cause.
func (r *Retriever) Retrieve(ctx context.Context, spec types.SectionSpec) Result {
	res := Result{SectionName: spec.Name}
	query := BuildQuery(spec)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	// The store may ignore ctx; the select bounds the wait regardless.
	ch := make(chan searchResult, 1)
	go func() {
		chunks, err := r.store.Search(ctx, query, r.cfg.TopK)
		ch <- searchResult{chunks: chunks, err: err}
	}()

	var sr searchResult
	select {
	case sr = <-ch:
	case <-ctx.Done():
		sr = searchResult{err: ctx.Err()}
	}

	if sr.err != nil {
		if errors.Is(sr.err, context.DeadlineExceeded) {
			sr.err = fmt.Errorf("%w after %s", ErrRetrievalTimeout, r.cfg.SearchTimeout)
		}
		r.logger.Warn("retrieval failed", "section", spec.Name, "error", sr.err)
		res.Err = sr.err
		res.Gap = r.gap(spec, types.GapNoGrounding, sr.err.Error())
		return res
	}

	passing := make([]types.Chunk, 0, len(sr.chunks))
	for _, c := range sr.chunks {
		if c.Score >= r.cfg.MinRelevance {
			passing = append(passing, c)
		}
	}
	sort.SliceStable(passing, func(i, j int) bool {
		return passing[i].Score > passing[j].Score
	})

	res.Citations = make([]types.Citation, len(passing))
	best := 0.0
	for i, c := range passing {
		res.Citations[i] = types.CitationFromChunk(c, r.cfg.SnippetChars)
		if c.Score > best {
			best = c.Score
		}
	}

	switch {
	case len(passing) == 0:
		res.Gap = r.gap(spec, types.GapNoGrounding,
			fmt.Sprintf("no chunk scored at least %.2f", r.cfg.MinRelevance))
	case best < r.cfg.ConfidenceThreshold:
		res.Gap = r.gap(spec, types.GapLowConfidence,
			fmt.Sprintf("best match scored %.2f, below %.2f", best, r.cfg.ConfidenceThreshold))
	}

	r.logger.Debug("retrieved grounding", "section", spec.Name, "candidates", len(sr.chunks), "kept", len(passing))
	return res
}

func (r *Retriever) gap(spec types.SectionSpec, reason types.GapReason, detail string) *types.GapReport {
	unmet := strings.TrimSpace(spec.Requirement)
	if unmet == "" {
		unmet = spec.Name
	}
	return &types.GapReport{
		SectionName:      spec.Name,
		UnmetRequirement: unmet,
		Reason:           reason,
		Detail:           detail,
	}
}
