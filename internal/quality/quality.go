// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality validates section drafts against their blueprint spec
// and against citation integrity. Checks never modify the draft; Apply
// merges a Report into one when the caller decides to.
package quality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/pdiddy/proposal-engine/internal/logging"
	"github.com/pdiddy/proposal-engine/internal/markup"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// DocumentChecker reports whether a context document is still indexed.
type DocumentChecker interface {
	DocumentExists(ctx context.Context, documentID string) (bool, error)
}

// Report is the outcome of checking one draft.
type Report struct {
	Warnings           []types.Warning `json:"warnings" yaml:"warnings"`
	BlueprintCompliant bool            `json:"blueprint_compliant" yaml:"blueprint_compliant"`
}

// Checker runs the draft checks in a fixed order: limits, stale citations,
// subjective language, required-section presence, then custom rules.
type Checker struct {
	docs       DocumentChecker
	cfg        types.QualityConfig
	subjective []*regexp.Regexp
	rules      []compiledRule
	logger     *slog.Logger
}

// New builds a Checker. docs may be nil, in which case the stale citation
// check is skipped. An invalid custom rule expression is an error.
func New(docs DocumentChecker, cfg types.QualityConfig, logger *slog.Logger) (*Checker, error) {
	def := types.DefaultPipelineConfig().Quality
	if cfg.NearLimitPercent <= 0 {
		cfg.NearLimitPercent = def.NearLimitPercent
	}
	if cfg.WordsPerPage <= 0 {
		cfg.WordsPerPage = def.WordsPerPage
	}
	if cfg.SubjectiveTerms == nil {
		cfg.SubjectiveTerms = def.SubjectiveTerms
	}
	if logger == nil {
		logger = logging.Discard()
	}

	c := &Checker{docs: docs, cfg: cfg, logger: logger}
	for _, term := range cfg.SubjectiveTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		c.subjective = append(c.subjective, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(term)+`\b`))
	}
	for _, r := range cfg.Rules {
		cr, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Check validates draft against spec.
func (c *Checker) Check(ctx context.Context, draft types.SectionDraft, spec types.SectionSpec) Report {
	rep := Report{BlueprintCompliant: true}

	limits := CheckLimits(draft.Text, spec, c.cfg)
	for _, w := range limits {
		if w.Code == types.WarnOverLimit && spec.Required {
			rep.BlueprintCompliant = false
		}
	}
	rep.Warnings = append(rep.Warnings, limits...)
	rep.Warnings = append(rep.Warnings, c.staleCitations(ctx, draft)...)

	if w, ok := c.subjectiveLanguage(draft.Text); ok {
		rep.Warnings = append(rep.Warnings, w)
	}

	if spec.Required && strings.TrimSpace(markup.StripMarkers(draft.Text)) == "" {
		rep.BlueprintCompliant = false
		rep.Warnings = append(rep.Warnings, types.Warning{
			Code:     types.WarnRequiredSectionEmpty,
			Message:  fmt.Sprintf("required section %q is empty", spec.Name),
			Blocking: true,
		})
	}

	for _, r := range c.rules {
		violated, err := r.eval(newRuleEnv(draft, spec))
		if err != nil {
			c.logger.Warn("quality rule failed", "rule", r.Name, "section", spec.Name, "error", err)
			continue
		}
		if !violated {
			continue
		}
		if r.Blocking {
			rep.BlueprintCompliant = false
		}
		rep.Warnings = append(rep.Warnings, types.Warning{Code: types.WarnRule, Message: r.message(), Blocking: r.Blocking})
	}
	return rep
}

// CheckLimits compares the draft text against every limit set on spec.
// Exceeding a limit yields over_limit, blocking only for required
// sections. Coming within NearLimitPercent of a limit yields near_limit.
func CheckLimits(text string, spec types.SectionSpec, cfg types.QualityConfig) []types.Warning {
	near := cfg.NearLimitPercent
	if near <= 0 {
		near = types.DefaultPipelineConfig().Quality.NearLimitPercent
	}
	perPage := cfg.WordsPerPage
	if perPage <= 0 {
		perPage = types.DefaultPipelineConfig().Quality.WordsPerPage
	}

	words := markup.WordCount(text)
	var out []types.Warning
	check := func(count, limit int, unit string) {
		switch {
		case count > limit:
			out = append(out, types.Warning{
				Code:     types.WarnOverLimit,
				Message:  fmt.Sprintf("%d %s exceeds the %d %s limit", count, unit, limit, unit),
				Blocking: spec.Required,
			})
		case float64(count) >= math.Ceil(float64(limit)*(1-near/100)):
			out = append(out, types.Warning{
				Code:    types.WarnNearLimit,
				Message: fmt.Sprintf("%d %s is within %.0f%% of the %d %s limit", count, unit, near, limit, unit),
			})
		}
	}
	if spec.WordLimit != nil {
		check(words, *spec.WordLimit, "words")
	}
	if spec.CharLimit != nil {
		check(markup.CharCount(text), *spec.CharLimit, "characters")
	}
	if spec.PageLimit != nil {
		check(words, *spec.PageLimit*perPage, "words")
	}
	return out
}

func (c *Checker) staleCitations(ctx context.Context, draft types.SectionDraft) []types.Warning {
	if c.docs == nil {
		return nil
	}
	var out []types.Warning
	seen := make(map[string]bool)
	for _, cit := range draft.Citations {
		if cit.DocumentID == "" || seen[cit.DocumentID] {
			continue
		}
		seen[cit.DocumentID] = true
		ok, err := c.docs.DocumentExists(ctx, cit.DocumentID)
		if err != nil {
			c.logger.Warn("checking citation document", "document", cit.DocumentID, "error", err)
			continue
		}
		if !ok {
			out = append(out, types.Warning{
				Code:    types.WarnStaleCitation,
				Message: fmt.Sprintf("citation %s references a document that is no longer indexed", cit.Marker()),
			})
		}
	}
	return out
}

func (c *Checker) subjectiveLanguage(text string) (types.Warning, bool) {
	plain := markup.StripMarkers(text)
	var found []string
	for _, re := range c.subjective {
		if m := re.FindString(plain); m != "" {
			found = append(found, strings.ToLower(m))
		}
	}
	if len(found) == 0 {
		return types.Warning{}, false
	}
	return types.Warning{
		Code:    types.WarnSubjectiveLanguage,
		Message: "subjective language: " + strings.Join(found, ", "),
	}, true
}

// owned lists the warning codes a quality pass is authoritative for.
var owned = map[types.WarningCode]bool{
	types.WarnOverLimit:            true,
	types.WarnNearLimit:            true,
	types.WarnStaleCitation:        true,
	types.WarnSubjectiveLanguage:   true,
	types.WarnRequiredSectionEmpty: true,
	types.WarnRule:                 true,
}

// Apply replaces the quality-owned warnings on draft with those in rep.
// Warnings from other stages, such as unverified_claim, are kept.
func Apply(draft *types.SectionDraft, rep Report) {
	kept := make([]types.Warning, 0, len(draft.Warnings)+len(rep.Warnings))
	for _, w := range draft.Warnings {
		if !owned[w.Code] {
			kept = append(kept, w)
		}
	}
	draft.Warnings = append(kept, rep.Warnings...)
}
