// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest splits community-context documents into page-scoped,
// overlapping word windows and writes them to the chunk store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/pdiddy/proposal-engine/internal/convert"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// DocumentWriter persists a document and its chunks.
type DocumentWriter interface {
	AddDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error
}

// Page is one page of a source document.
type Page struct {
	Number int
	Text   string
}

// Summary holds counts from an indexing run.
type Summary struct {
	Indexed int
	Failed  int
}

// Total returns the number of files processed.
func (s Summary) Total() int {
	return s.Indexed + s.Failed
}

// HasFailures reports whether any file failed to index.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

var pageMarker = regexp.MustCompile(`(?mi)^[ \t]*<!--\s*page\s+(\d+)\s*-->[ \t]*$`)

// SplitPages breaks text into pages. Explicit "<!-- page N -->" markers take
// precedence; otherwise form feeds separate consecutively numbered pages.
// Text before the first marker is page 1. Blank pages are dropped.
func SplitPages(text string) []Page {
	var pages []Page
	add := func(n int, s string) {
		if s = strings.TrimSpace(s); s != "" {
			pages = append(pages, Page{Number: n, Text: s})
		}
	}

	locs := pageMarker.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		for i, p := range strings.Split(text, "\f") {
			add(i+1, p)
		}
		return pages
	}

	add(1, text[:locs[0][0]])
	for i, loc := range locs {
		n, _ := strconv.Atoi(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		add(n, text[loc[1]:end])
	}
	return pages
}

// Chunk splits each page of text into windows of cfg.ChunkWords words, with
// cfg.OverlapWords words shared between neighbours. Windows never span pages.
// Chunk IDs are stable for a given document, page and offset.
func Chunk(docID, title, text string, cfg types.IngestConfig) []types.Chunk {
	size := cfg.ChunkWords
	if size <= 0 {
		size = 400
	}
	overlap := cfg.OverlapWords
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	var chunks []types.Chunk
	for _, page := range SplitPages(text) {
		words := strings.Fields(page.Text)
		for start := 0; start < len(words); start += step {
			end := min(start+size, len(words))
			chunks = append(chunks, types.Chunk{
				ID:            chunkID(docID, page.Number, start),
				DocumentID:    docID,
				DocumentTitle: title,
				PageNumber:    page.Number,
				Text:          strings.Join(words[start:end], " "),
			})
			if end == len(words) {
				break
			}
		}
	}
	return chunks
}

func chunkID(docID string, page, offset int) string {
	name := fmt.Sprintf("%s/%d/%d", docID, page, offset)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// IngestText chunks text and stores it under id. It returns the chunk count.
func IngestText(ctx context.Context, w DocumentWriter, cfg types.IngestConfig, id, title, text string) (int, error) {
	chunks := Chunk(id, title, text, cfg)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s has no text", id)
	}
	doc := types.Document{ID: id, Title: title, Chunks: len(chunks)}
	if err := w.AddDocument(ctx, doc, chunks); err != nil {
		return 0, fmt.Errorf("storing %s: %w", id, err)
	}
	return len(chunks), nil
}

// IngestFiles reads each path and indexes it, reporting progress to out.
// Binary formats go through conv, which may be nil when every path is text.
// The document ID is derived from the filename and the title from the first
// level-one heading. A failing file is reported and counted, not fatal.
func IngestFiles(ctx context.Context, w DocumentWriter, conv convert.Converter, cfg types.IngestConfig, paths []string, out io.Writer) (Summary, error) {
	var summary Summary
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		id := DocumentID(path)
		text, err := convert.ReadText(ctx, conv, path)
		if err != nil {
			fmt.Fprintf(out, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}
		n, err := IngestText(ctx, w, cfg, id, Title(path, text), text)
		if err != nil {
			fmt.Fprintf(out, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}
		fmt.Fprintf(out, "indexed %s (%d chunks)\n", id, n)
		summary.Indexed++
	}

	fmt.Fprintf(out, "\nindexed: %d, failed: %d\n", summary.Indexed, summary.Failed)
	return summary, nil
}

// DocumentID derives a lowercase, hyphenated identifier from a file name.
func DocumentID(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	id := strings.TrimSuffix(b.String(), "-")
	if id == "" {
		return "document"
	}
	return id
}

// Title returns the first level-one markdown heading in text, falling back to
// the file name without its extension.
func Title(path, text string) string {
	for line := range strings.SplitSeq(text, "\n") {
		if t, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			if t = strings.TrimSpace(t); t != "" {
				return t
			}
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
