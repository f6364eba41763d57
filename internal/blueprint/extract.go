// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package blueprint turns the raw text of a funding call into a
// RequirementBlueprint: the ordered sections an applicant must write, their
// limits and format hints, eligibility constraints and scoring criteria.
//
// The heuristic extractor never fails on ambiguous input; it emits a
// SectionSpec with nil limits instead. It fails with an ExtractionError
// only when the text is empty, too short, or has no section headers.
package blueprint

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

const defaultMinTextLength = 200

// ExtractionError reports a funding call that cannot be turned into a blueprint.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return "blueprint extraction failed: " + e.Reason
}

// Extractor produces a RequirementBlueprint from funding-call text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*types.RequirementBlueprint, error)
}

// HeuristicExtractor parses funding calls with heading and phrase rules.
type HeuristicExtractor struct {
	minTextLength int
}

// NewHeuristicExtractor returns a HeuristicExtractor using cfg.MinTextLength.
func NewHeuristicExtractor(cfg types.BlueprintConfig) *HeuristicExtractor {
	n := cfg.MinTextLength
	if n <= 0 {
		n = defaultMinTextLength
	}
	return &HeuristicExtractor{minTextLength: n}
}

// Extract parses text into a blueprint.
func (h *HeuristicExtractor) Extract(_ context.Context, text string) (*types.RequirementBlueprint, error) {
	if err := h.precheck(text); err != nil {
		return nil, err
	}
	bp := parseBlueprint(text)
	if len(bp.Sections) == 0 {
		return nil, &ExtractionError{Reason: "no discernible section headers"}
	}
	return bp, nil
}

func (h *HeuristicExtractor) precheck(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &ExtractionError{Reason: "funding call text is empty"}
	}
	if n := len([]rune(trimmed)); n < h.minTextLength {
		return &ExtractionError{Reason: fmt.Sprintf("funding call text is too short (%d characters, minimum %d)", n, h.minTextLength)}
	}
	return nil
}

// headingKind classifies a funding-call heading.
type headingKind int

const (
	kindSection headingKind = iota
	kindContainer
	kindEligibility
	kindScoring
	kindAdmin
)

var (
	containerPhrases = []string{
		"proposal sections", "application requirements", "required sections",
		"narrative components", "proposal requirements", "application components",
		"proposal narrative", "proposal content", "application narrative",
	}
	scoringPhrases = []string{
		"evaluation criteria", "evaluation process", "scoring", "review criteria",
		"selection criteria", "merit review", "review process", "rubric",
	}
	adminPhrases = []string{
		"deadline", "key dates", "important dates", "submission", "how to apply",
		"application process", "contact", "program overview", "funding overview",
		"about the program", "award information", "award amount", "funding opportunity",
		"questions",
	}
)

func classify(heading string) headingKind {
	h := strings.ToLower(heading)
	switch {
	case containsAny(h, containerPhrases):
		return kindContainer
	case strings.Contains(h, "eligib"):
		return kindEligibility
	case containsAny(h, scoringPhrases):
		return kindScoring
	case containsAny(h, adminPhrases):
		return kindAdmin
	}
	return kindSection
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

var (
	deadlinePattern = regexp.MustCompile(`(?i)^(?:application\s+|submission\s+|proposal\s+)?(?:deadline|due date)s?\s*[:\-–]\s*(.+)$`)
	programPattern  = regexp.MustCompile(`(?i)^(?:program(?:\s+name)?|funding\s+program|grant\s+program|opportunity(?:\s+title)?)\s*[:\-–]\s*(.+)$`)
)

// metadataLine reports whether line is a "Deadline:" or "Program:" line and
// records its value on bp.
func metadataLine(line string, bp *types.RequirementBlueprint) bool {
	line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
	if m := deadlinePattern.FindStringSubmatch(line); m != nil {
		if bp.Deadline == "" {
			bp.Deadline = strings.TrimSpace(m[1])
		}
		return true
	}
	if m := programPattern.FindStringSubmatch(line); m != nil {
		if bp.ProgramName == "" {
			bp.ProgramName = strings.TrimSpace(m[1])
		}
		return true
	}
	return false
}

type zone struct {
	kind   headingKind
	level  int
	active bool
}

// contains reports whether b nests under z. Plain-text headings carry no
// reliable depth, so inside a container every ordinary heading belongs to it.
func (z zone) contains(b block) bool {
	if !z.active {
		return false
	}
	if b.level > z.level {
		return true
	}
	return !b.markdown && z.kind == kindContainer && classify(b.heading) == kindSection
}

func parseBlueprint(text string) *types.RequirementBlueprint {
	bp := &types.RequirementBlueprint{}

	preamble, blocks := splitBlocks(text)
	for _, line := range preamble {
		metadataLine(line, bp)
	}

	titleIdx := documentTitle(blocks)
	hasContainer := false
	for i, b := range blocks {
		if i != titleIdx && classify(b.heading) == kindContainer {
			hasContainer = true
		}
	}

	var candidates []int
	var z zone
	for i, b := range blocks {
		for _, line := range b.body {
			metadataLine(line, bp)
		}
		if i == titleIdx {
			continue
		}

		if z.contains(b) {
			switch z.kind {
			case kindContainer:
				candidates = append(candidates, i)
			case kindEligibility:
				bp.Eligibility = append(bp.Eligibility, cleanName(b.heading))
				bp.Eligibility = append(bp.Eligibility, listItems(b.body)...)
			case kindScoring:
				bp.ScoringCriteria = append(bp.ScoringCriteria, types.ScoringCriterion{
					Criterion: cleanName(b.heading),
					Weight:    findWeight(b.heading+"\n"+b.bodyText(), true),
				})
			}
			continue
		}

		kind := classify(b.heading)
		z = zone{kind: kind, level: b.level, active: kind != kindSection}
		switch kind {
		case kindEligibility:
			bp.Eligibility = append(bp.Eligibility, listItems(b.body)...)
		case kindScoring:
			for _, item := range listItems(b.body) {
				bp.ScoringCriteria = append(bp.ScoringCriteria, types.ScoringCriterion{
					Criterion: cleanCriterion(item),
					Weight:    findWeight(item, true),
				})
			}
		case kindAdmin:
			if strings.Contains(strings.ToLower(b.heading), "deadline") && bp.Deadline == "" {
				if items := listItems(b.body); len(items) > 0 {
					bp.Deadline = items[0]
				}
			}
		case kindSection:
			if !hasContainer {
				candidates = append(candidates, i)
			}
		}
	}

	if titleIdx >= 0 && bp.ProgramName == "" {
		bp.ProgramName = blocks[titleIdx].heading
	}

	seen := make(map[string]int)
	for _, i := range leaves(blocks, candidates) {
		spec := sectionSpec(blocks[i])
		if spec.Name == "" {
			continue
		}
		key := strings.ToLower(spec.Name)
		if seen[key]++; seen[key] > 1 {
			spec.Name = fmt.Sprintf("%s (%d)", spec.Name, seen[key])
		}
		bp.Sections = append(bp.Sections, spec)
	}
	if bp.Eligibility == nil {
		bp.Eligibility = []string{}
	}
	if bp.ScoringCriteria == nil {
		bp.ScoringCriteria = []types.ScoringCriterion{}
	}
	return bp
}

// documentTitle returns the index of a leading title heading, or -1. A
// Markdown title is a first heading shallower than every other heading. A
// plain-text title is an unnumbered first heading that is followed by
// numbered headings, or whose body holds only metadata lines.
func documentTitle(blocks []block) int {
	if len(blocks) < 2 || classify(blocks[0].heading) != kindSection {
		return -1
	}
	first := blocks[0]
	isTitle := false
	if first.markdown {
		isTitle = true
		for _, b := range blocks[1:] {
			if b.level <= first.level {
				isTitle = false
				break
			}
		}
	} else if !first.numbered {
		isTitle = true
		if slices.ContainsFunc(blocks[1:], func(b block) bool { return b.numbered }) {
			return 0
		}
		var scratch types.RequirementBlueprint
		for _, line := range first.body {
			if strings.TrimSpace(line) != "" && !metadataLine(line, &scratch) {
				isTitle = false
				break
			}
		}
	}
	if !isTitle {
		return -1
	}
	return 0
}

// leaves drops Markdown candidates that only group deeper candidate headings.
func leaves(blocks []block, candidates []int) []int {
	isCandidate := make(map[int]bool, len(candidates))
	for _, i := range candidates {
		isCandidate[i] = true
	}
	var out []int
	for _, i := range candidates {
		next := i + 1
		if blocks[i].markdown && next < len(blocks) && isCandidate[next] && blocks[next].level > blocks[i].level {
			continue
		}
		out = append(out, i)
	}
	return out
}

var (
	parentheticalPattern = regexp.MustCompile(`\s*\([^)]*\)`)
	namePrefixPattern    = regexp.MustCompile(`(?i)^(?:section\s+)?\d{1,2}(?:\.\d{1,2})*[.):]?\s+`)
	nameTailPattern      = regexp.MustCompile(`\s*:\s+.*$|\s+[-–—]\s+.*$|:\s*$`)
	criterionTailPattern = regexp.MustCompile(`\s*[-–—:]\s*\d+(?:\.\d+)?\s*(?:%|points?|pts)\.?\s*$`)

	optionalHeadingPattern = regexp.MustCompile(`(?i)\boptional\b|\bif applicable\b`)
	optionalBodyPattern    = regexp.MustCompile(`(?i)\(optional\)|\b(?:this section|section) is optional\b|^optional\b`)
)

// cleanName strips numbering, parentheticals and trailing limit phrases from a heading.
func cleanName(heading string) string {
	name := namePrefixPattern.ReplaceAllString(strings.TrimSpace(heading), "")
	name = parentheticalPattern.ReplaceAllString(name, "")
	name = nameTailPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(strings.Trim(name, "*_"))
}

// cleanCriterion strips weights from a criterion list item.
func cleanCriterion(item string) string {
	c := parentheticalPattern.ReplaceAllString(item, "")
	c = criterionTailPattern.ReplaceAllString(c, "")
	return strings.TrimSpace(c)
}

func sectionSpec(b block) types.SectionSpec {
	body := b.bodyText()
	full := b.heading + "\n" + body
	spec := types.SectionSpec{
		Name:        cleanName(b.heading),
		Required:    !isOptional(b.heading, body),
		WordLimit:   findLimit(full, wordLimitPatterns),
		CharLimit:   findLimit(full, charLimitPatterns),
		PageLimit:   findLimit(full, pageLimitPatterns),
		Format:      formatHint(full),
		Requirement: body,
	}
	if w := findWeight(b.heading, true); w != nil {
		spec.ScoringWeight = w
	} else {
		spec.ScoringWeight = findWeight(body, false)
	}
	return spec
}

func isOptional(heading, body string) bool {
	if optionalHeadingPattern.MatchString(heading) {
		return true
	}
	return optionalBodyPattern.MatchString(strings.TrimSpace(body))
}

func formatHint(text string) types.SectionFormat {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "table"):
		return types.FormatTable
	case strings.Contains(t, "bullet") || strings.Contains(t, "as a list") || strings.Contains(t, "list format"):
		return types.FormatBullet
	}
	return types.FormatNarrative
}
