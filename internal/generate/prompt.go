// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// sectionPromptTmpl is sent to the generation service for every section.
// Sources are numbered from 1; locked paragraphs are numbered from 0 to
// match draft paragraph indices.
var sectionPromptTmpl = template.Must(template.New("section").Parse(`You are drafting the "{{.Name}}" section of a grant proposal. Write in a neutral, factual register suitable for a funding reviewer.

Section requirement:
{{.Requirement}}
{{if .Limit}}
Length: {{.Limit}}. Stay within this limit; do not end mid-sentence.
{{end}}
Format: {{.Format}}
{{if .Sources}}
Sources:
{{range .Sources}}[Source {{.N}}] {{.Title}}, Page {{.Page}}: {{.Snippet}}
{{end}}
Every factual claim must carry an inline citation marker of the form [Document Title, p.N] that refers to one of the sources above, for example {{.Example}}. Cite only these sources. Do not invent sources, page numbers, statistics or quotations.
{{else}}
No supporting sources are available for this section. Write a brief placeholder of under 100 words stating that supporting evidence must be added before submission. Do not include statistics, citations or factual claims.
{{end}}{{if .Locked}}
The following paragraphs were approved by the applicant and are fixed. Paragraphs are numbered from 0. Reproduce each one verbatim at its position and write the remaining paragraphs around them:
{{range .Locked}}
Paragraph {{.Index}}:
{{.Text}}
{{end}}{{end}}
Separate paragraphs with a blank line. Do not repeat the section heading and do not add any text before or after the section body.
`))

type promptSource struct {
	N       int
	Title   string
	Page    int
	Snippet string
}

type promptLocked struct {
	Index int
	Text  string
}

type promptData struct {
	Name        string
	Requirement string
	Limit       string
	Format      string
	Sources     []promptSource
	Example     string
	Locked      []promptLocked
}

// renderPrompt executes the section prompt template.
func renderPrompt(spec types.SectionSpec, citations []types.Citation, locked []promptLocked, wordsPerPage int) (string, error) {
	data := promptData{
		Name:        spec.Name,
		Requirement: strings.TrimSpace(spec.Requirement),
		Limit:       limitText(spec, wordsPerPage),
		Format:      formatText(spec.Format),
		Locked:      locked,
	}
	if data.Requirement == "" {
		data.Requirement = "Address the " + spec.Name + " section as described by the funding call."
	}
	for i, c := range citations {
		data.Sources = append(data.Sources, promptSource{
			N:       i + 1,
			Title:   c.DocumentTitle,
			Page:    c.PageNumber,
			Snippet: strings.Join(strings.Fields(c.Snippet), " "),
		})
	}
	if len(citations) > 0 {
		data.Example = citations[0].Marker()
	}

	var buf bytes.Buffer
	if err := sectionPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func limitText(spec types.SectionSpec, wordsPerPage int) string {
	var parts []string
	if spec.WordLimit != nil {
		parts = append(parts, fmt.Sprintf("at most %d words", *spec.WordLimit))
	}
	if spec.CharLimit != nil {
		parts = append(parts, fmt.Sprintf("at most %d characters", *spec.CharLimit))
	}
	if spec.PageLimit != nil {
		parts = append(parts, fmt.Sprintf("at most %d pages (about %d words)", *spec.PageLimit, *spec.PageLimit*wordsPerPage))
	}
	return strings.Join(parts, " and ")
}

func formatText(f types.SectionFormat) string {
	switch f {
	case types.FormatBullet:
		return "a bulleted list, one item per line starting with \"- \""
	case types.FormatTable:
		return "a Markdown table followed by at most one short explanatory paragraph"
	default:
		return "narrative prose"
	}
}
