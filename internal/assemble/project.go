// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"
)

const (
	proposalFile   = "proposal.md"
	referencesFile = "references.yaml"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// WriteProject writes the proposal into dir as proposal.md, one numbered
// NN-slug.md file per drafted section, and references.yaml. It returns the
// paths written.
func WriteProject(dir string, p Proposal) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write(proposalFile, []byte(p.Markdown)); err != nil {
		return written, err
	}
	n := 0
	for _, s := range p.Sections {
		if s.Missing {
			continue
		}
		n++
		name := fmt.Sprintf("%02d-%s.md", n, slug(s.Name))
		body := fmt.Sprintf("## %s\n\n%s\n", s.Name, strings.TrimSpace(s.Text))
		if err := write(name, []byte(body)); err != nil {
			return written, err
		}
	}

	refs, err := yaml.Marshal(struct {
		References []Reference `yaml:"references"`
	}{p.References})
	if err != nil {
		return written, fmt.Errorf("marshaling references: %w", err)
	}
	if err := write(referencesFile, refs); err != nil {
		return written, err
	}
	return written, nil
}

// slug lowercases s and joins its alphanumeric runs with hyphens.
func slug(s string) string {
	out := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if out == "" {
		return "section"
	}
	return out
}
