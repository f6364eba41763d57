// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blueprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/internal/logging"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

const (
	aiMaxInputChars = 24000
	aiMaxTokens     = 2048
	aiTemperature   = 0.1
)

var blueprintPromptTmpl = template.Must(template.New("blueprint").Parse(`You analyze grant funding calls. Read the funding call below and list every section the applicant must write.

Respond with a single JSON object and nothing else:
{"program_name": string, "deadline": string,
 "sections": [{"name": string, "required": bool, "word_limit": int|null, "char_limit": int|null, "page_limit": int|null,
               "format": "narrative"|"bullet"|"table", "scoring_weight": number|null, "requirement": string}],
 "eligibility": [string],
 "scoring_criteria": [{"criterion": string, "weight": number|null}]}

Rules:
- Use null for any limit or weight the call does not state explicitly. Never guess a number.
- A section is required unless the call says it is optional.
- Keep sections in the order the call presents them.
- Do not list eligibility, deadlines or review criteria as sections.

Funding call:
{{.Text}}
`))

// AIExtractor asks a generation service for the blueprint and falls back to
// the heuristic extractor when the call fails or returns an invalid structure.
type AIExtractor struct {
	completer llm.Completer
	fallback  *HeuristicExtractor
	logger    *slog.Logger
}

// NewAIExtractor returns an AIExtractor. A nil logger discards output.
func NewAIExtractor(c llm.Completer, cfg types.BlueprintConfig, logger *slog.Logger) *AIExtractor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AIExtractor{completer: c, fallback: NewHeuristicExtractor(cfg), logger: logger}
}

// New returns the extractor selected by cfg.UseAI. Without a completer the
// heuristic extractor is always used.
func New(cfg types.BlueprintConfig, c llm.Completer, logger *slog.Logger) Extractor {
	if cfg.UseAI && c != nil {
		return NewAIExtractor(c, cfg, logger)
	}
	return NewHeuristicExtractor(cfg)
}

// Extract requests a blueprint from the model and validates it.
func (a *AIExtractor) Extract(ctx context.Context, text string) (*types.RequirementBlueprint, error) {
	if err := a.fallback.precheck(text); err != nil {
		return nil, err
	}

	bp, err := a.extractAI(ctx, text)
	if err == nil {
		err = Validate(bp)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("model blueprint extraction failed, using heuristic parser", "error", err)
		return a.fallback.Extract(ctx, text)
	}
	return bp, nil
}

func (a *AIExtractor) extractAI(ctx context.Context, text string) (*types.RequirementBlueprint, error) {
	if r := []rune(text); len(r) > aiMaxInputChars {
		text = string(r[:aiMaxInputChars])
	}
	var buf bytes.Buffer
	if err := blueprintPromptTmpl.Execute(&buf, struct{ Text string }{Text: text}); err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	out, err := a.completer.Complete(ctx, buf.String(), llm.Options{MaxTokens: aiMaxTokens, Temperature: aiTemperature})
	if err != nil {
		return nil, err
	}
	return parseAIResponse(out)
}

// parseAIResponse decodes the first JSON object in out. Zero limits and
// weights are read as "not stated".
func parseAIResponse(out string) (*types.RequirementBlueprint, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in model response")
	}

	var bp types.RequirementBlueprint
	if err := json.Unmarshal([]byte(out[start:end+1]), &bp); err != nil {
		return nil, fmt.Errorf("parsing model response JSON: %w", err)
	}

	for i := range bp.Sections {
		s := &bp.Sections[i]
		s.Name = strings.TrimSpace(s.Name)
		s.WordLimit = zeroAsNil(s.WordLimit)
		s.CharLimit = zeroAsNil(s.CharLimit)
		s.PageLimit = zeroAsNil(s.PageLimit)
		if s.ScoringWeight != nil && *s.ScoringWeight == 0 {
			s.ScoringWeight = nil
		}
		switch s.Format {
		case types.FormatNarrative, types.FormatBullet, types.FormatTable:
		default:
			s.Format = types.FormatNarrative
		}
	}
	if bp.Eligibility == nil {
		bp.Eligibility = []string{}
	}
	if bp.ScoringCriteria == nil {
		bp.ScoringCriteria = []types.ScoringCriterion{}
	}
	return &bp, nil
}

func zeroAsNil(p *int) *int {
	if p != nil && *p == 0 {
		return nil
	}
	return p
}

// Validate checks that bp is machine-checkable: at least one section, every
// section named once, and every stated limit positive.
func Validate(bp *types.RequirementBlueprint) error {
	if bp == nil || len(bp.Sections) == 0 {
		return errors.New("blueprint has no sections")
	}
	seen := make(map[string]bool, len(bp.Sections))
	for i, s := range bp.Sections {
		if s.Name == "" {
			return fmt.Errorf("section %d has no name", i)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return fmt.Errorf("duplicate section %q", s.Name)
		}
		seen[key] = true
		for label, limit := range map[string]*int{"word_limit": s.WordLimit, "char_limit": s.CharLimit, "page_limit": s.PageLimit} {
			if limit != nil && *limit <= 0 {
				return fmt.Errorf("section %q: %s must be positive, got %d", s.Name, label, *limit)
			}
		}
		if s.ScoringWeight != nil && *s.ScoringWeight < 0 {
			return fmt.Errorf("section %q: negative scoring weight", s.Name)
		}
	}
	return nil
}
