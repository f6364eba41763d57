// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble orders finished section drafts into the proposal body
// and decides whether the proposal is ready to export.
package assemble

import (
	"fmt"
	"strings"

	"github.com/pdiddy/proposal-engine/internal/markup"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

const defaultTitle = "Grant Proposal"

// Reference is one numbered entry in the proposal's reference list.
type Reference struct {
	Number        int    `json:"number" yaml:"number"`
	DocumentID    string `json:"document_id" yaml:"document_id"`
	DocumentTitle string `json:"document_title" yaml:"document_title"`
	PageNumber    int    `json:"page_number" yaml:"page_number"`
}

// Section is one rendered section of the proposal.
type Section struct {
	Name      string          `json:"name" yaml:"name"`
	Required  bool            `json:"required" yaml:"required"`
	Text      string          `json:"text" yaml:"text"`
	WordCount int             `json:"word_count" yaml:"word_count"`
	WordLimit *int            `json:"word_limit,omitempty" yaml:"word_limit,omitempty"`
	Missing   bool            `json:"missing,omitempty" yaml:"missing,omitempty"`
	Warnings  []types.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Proposal is the assembled proposal body.
type Proposal struct {
	Title       string      `json:"title" yaml:"title"`
	Markdown    string      `json:"markdown" yaml:"markdown"`
	Sections    []Section   `json:"sections" yaml:"sections"`
	References  []Reference `json:"references" yaml:"references"`
	ExportReady bool        `json:"export_ready" yaml:"export_ready"`
	Blocking    []string    `json:"blocking,omitempty" yaml:"blocking,omitempty"`
}

// Assemble renders drafts in blueprint order. Optional sections without a
// draft are skipped; required ones render a placeholder and block export.
// Any blocking warning on a draft blocks export, as does a blocking gap on
// a section whose draft carries no citations.
func Assemble(bp *types.RequirementBlueprint, drafts map[string]types.SectionDraft, gapReports []types.GapReport) Proposal {
	p := Proposal{Title: defaultTitle}
	if bp.ProgramName != "" {
		p.Title = bp.ProgramName
	}

	gapBySection := make(map[string]types.GapReport)
	for _, g := range gapReports {
		if g.Severity == types.SeverityBlocking {
			gapBySection[g.SectionName] = g
		}
	}

	var citations [][]types.Citation
	for _, spec := range bp.Sections {
		d, ok := drafts[spec.Name]
		if !ok || strings.TrimSpace(d.Text) == "" {
			if !spec.Required {
				continue
			}
			p.Sections = append(p.Sections, Section{Name: spec.Name, Required: true, WordLimit: spec.WordLimit, Missing: true})
			p.Blocking = append(p.Blocking, fmt.Sprintf("required section %q has no draft", spec.Name))
			continue
		}

		p.Sections = append(p.Sections, Section{
			Name:      spec.Name,
			Required:  spec.Required,
			Text:      d.Text,
			WordCount: markup.WordCount(d.Text),
			WordLimit: spec.WordLimit,
			Warnings:  d.Warnings,
		})
		citations = append(citations, d.Citations)

		for _, w := range d.Warnings {
			if w.Blocking {
				p.Blocking = append(p.Blocking, fmt.Sprintf("%s: %s", spec.Name, w.Message))
			}
		}
		if g, ok := gapBySection[spec.Name]; ok && len(d.Citations) == 0 {
			p.Blocking = append(p.Blocking, fmt.Sprintf("%s: no grounding for %q", spec.Name, g.UnmetRequirement))
		}
	}

	for i, c := range markup.MergeCitations(citations...) {
		p.References = append(p.References, Reference{
			Number:        i + 1,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			PageNumber:    c.PageNumber,
		})
	}

	p.ExportReady = len(p.Blocking) == 0
	p.Markdown = render(p)
	return p
}

func render(p Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", p.Title)
	for _, s := range p.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n", s.Name)
		if s.Missing {
			b.WriteString("_This required section has not been drafted._\n")
			continue
		}
		if s.WordLimit != nil {
			fmt.Fprintf(&b, "_%d / %d words_\n\n", s.WordCount, *s.WordLimit)
		} else {
			fmt.Fprintf(&b, "_%d words_\n\n", s.WordCount)
		}
		b.WriteString(strings.TrimSpace(s.Text))
		b.WriteString("\n")
	}
	if len(p.References) > 0 {
		b.WriteString("\n## References\n\n")
		for _, r := range p.References {
			fmt.Fprintf(&b, "%d. %s, p. %d\n", r.Number, r.DocumentTitle, r.PageNumber)
		}
	}
	return b.String()
}
