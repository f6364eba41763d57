// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate drafts proposal sections from retrieved citations.
// The generation service is untrusted: every inline marker it returns is
// checked against the supplied citations, and anything else is removed.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/internal/logging"
	"github.com/pdiddy/proposal-engine/internal/markup"
	"github.com/pdiddy/proposal-engine/internal/quality"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Generator produces SectionDrafts through a Completer. It makes one call
// per Generate; retry policy belongs to the caller.
type Generator struct {
	completer llm.Completer
	cfg       types.GenerationConfig
	quality   types.QualityConfig
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Generator. Zero config values take the package defaults.
func New(c llm.Completer, cfg types.GenerationConfig, qcfg types.QualityConfig, logger *slog.Logger) *Generator {
	def := types.DefaultPipelineConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.Generation.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Generation.Temperature
	}
	if qcfg.WordsPerPage <= 0 {
		qcfg.WordsPerPage = def.Quality.WordsPerPage
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Generator{completer: c, cfg: cfg, quality: qcfg, logger: logger, now: time.Now}
}

// Generate drafts spec grounded on citations. When prior carries locked
// paragraphs they are sent as fixed content and spliced back verbatim;
// their markers are matched against prior's citations rather than the
// supplied list. Returned text is never truncated: an over-limit draft
// carries an over_limit warning instead.
func (g *Generator) Generate(ctx context.Context, spec types.SectionSpec, citations []types.Citation, prior *types.SectionDraft) (types.SectionDraft, error) {
	locked, priorParas := lockedParagraphs(prior)

	prompt, err := renderPrompt(spec, citations, locked, g.quality.WordsPerPage)
	if err != nil {
		return types.SectionDraft{}, fmt.Errorf("rendering prompt for %q: %w", spec.Name, err)
	}

	raw, err := g.completer.Complete(ctx, prompt, llm.Options{
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return types.SectionDraft{}, fmt.Errorf("generating %q: %w", spec.Name, err)
	}

	paras := markup.Paragraphs(cleanResponse(raw, spec.Name))
	// fixed marks paragraphs carried over from prior: locked ones and any
	// prior paragraphs needed to reach a locked index the model skipped.
	fixed := make(map[int]bool, len(locked))
	for _, l := range locked {
		fixed[l.Index] = true
		for len(paras) < l.Index {
			fixed[len(paras)] = true
			paras = append(paras, priorParas[len(paras)])
		}
		if l.Index < len(paras) {
			paras[l.Index] = l.Text
		} else {
			paras = append(paras, l.Text)
		}
	}

	var priorCitations []types.Citation
	if prior != nil {
		priorCitations = prior.Citations
	}

	// A generated paragraph left empty by resolution is dropped, unless a
	// fixed paragraph follows it: then the prior text fills the gap so the
	// fixed paragraphs keep their indices.
	lastFixed := -1
	for i := range fixed {
		lastFixed = max(lastFixed, i)
	}
	pool := markup.MergeCitations(priorCitations, citations)

	draft := types.SectionDraft{SectionName: spec.Name}
	var (
		kept    []string
		used    [][]types.Citation
		dropped []string
	)
	for i, p := range paras {
		if fixed[i] {
			u, _ := markup.Collect(p, pool)
			kept, used = append(kept, p), append(used, u)
			draft.ParagraphOwners = append(draft.ParagraphOwners, priorOwner(prior, i))
			continue
		}
		res := markup.Resolve(p, citations)
		dropped = append(dropped, res.Dropped...)
		if markup.StripMarkers(res.Text) == "" {
			if i > lastFixed || i >= len(priorParas) {
				continue
			}
			u, _ := markup.Collect(priorParas[i], pool)
			kept, used = append(kept, priorParas[i]), append(used, u)
			draft.ParagraphOwners = append(draft.ParagraphOwners, priorOwner(prior, i))
			continue
		}
		kept, used = append(kept, res.Text), append(used, res.Used)
		draft.ParagraphOwners = append(draft.ParagraphOwners, types.OwnerGenerated)
	}

	draft.Text = markup.Join(kept)
	draft.WordCount = markup.WordCount(draft.Text)
	draft.Citations = markup.MergeCitations(used...)
	if prior != nil {
		draft.Lock(prior.LockedParagraphs...)
	}
	draft.GeneratedAt = g.now().UTC()

	for _, raw := range dropped {
		draft.Warnings = append(draft.Warnings, types.Warning{
			Code:    types.WarnUnverifiedClaim,
			Message: fmt.Sprintf("removed citation %s that matches no supplied source", raw),
		})
	}
	if len(dropped) > 0 {
		g.logger.Warn("stripped invented citations", "section", spec.Name, "count", len(dropped))
	}
	draft.Warnings = append(draft.Warnings, quality.CheckLimits(draft.Text, spec, g.quality)...)
	if len(citations) == 0 {
		draft.Warnings = append(draft.Warnings, types.Warning{
			Code:    types.WarnNoGrounding,
			Message: "generated without supporting sources; add evidence before submission",
		})
	}
	return draft, nil
}

// lockedParagraphs returns prior's in-range locked paragraphs in index
// order together with all of prior's paragraphs.
func lockedParagraphs(prior *types.SectionDraft) ([]promptLocked, []string) {
	if prior == nil || len(prior.LockedParagraphs) == 0 {
		return nil, nil
	}
	paras := markup.Paragraphs(prior.Text)
	var out []promptLocked
	for _, i := range types.NormalizeIndices(prior.LockedParagraphs) {
		if i < len(paras) {
			out = append(out, promptLocked{Index: i, Text: paras[i]})
		}
	}
	return out, paras
}

func priorOwner(prior *types.SectionDraft, i int) types.ParagraphOwner {
	if prior != nil && i < len(prior.ParagraphOwners) && prior.ParagraphOwners[i] != "" {
		return prior.ParagraphOwners[i]
	}
	return types.OwnerGenerated
}

// cleanResponse removes wrapping code fences and a leading line that
// repeats the section heading.
func cleanResponse(raw, sectionName string) string {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = ""
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
	}

	first, rest, _ := strings.Cut(text, "\n")
	heading := strings.Trim(strings.TrimSpace(first), "#*: ")
	if strings.EqualFold(heading, strings.TrimSpace(sectionName)) {
		text = strings.TrimSpace(rest)
	}
	return text
}
