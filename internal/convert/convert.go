// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns binary community documents (PDF, Word, slides,
// spreadsheets, HTML) into plain text for indexing.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/proposal-engine/internal/container"
)

// DefaultImage is the markitdown image used when none is configured.
const DefaultImage = "markitdown:latest"

// ErrNoConverter is returned for a file that needs conversion when no
// converter is configured.
var ErrNoConverter = errors.New("no document converter configured")

// Converter transforms a document into Markdown text. PDF output separates
// pages with form feeds.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// convertible lists extensions that are read through a Converter. Every
// other file is read as text.
var convertible = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".pptx": true,
	".xlsx": true, ".xls": true, ".html": true, ".htm": true, ".epub": true,
}

// NeedsConversion reports whether path must go through a Converter.
func NeedsConversion(path string) bool {
	return convertible[strings.ToLower(filepath.Ext(path))]
}

// ReadText returns the text of path, converting it with c when its
// extension requires it.
func ReadText(ctx context.Context, c Converter, path string) (string, error) {
	if !NeedsConversion(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if c == nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoConverter)
	}
	return c.Convert(ctx, path)
}

// MarkitdownConverter pipes documents through the markitdown image.
type MarkitdownConverter struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdownConverter checks that image exists in rt. An empty image
// uses DefaultImage.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime, image string) (*MarkitdownConverter, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{runtime: rt, image: image}, nil
}

// Convert streams the file at path through the container.
func (m *MarkitdownConverter) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, m.image, f, &out); err != nil {
		return "", fmt.Errorf("converting %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("converting %s: empty output", filepath.Base(path))
	}
	return out.String(), nil
}
