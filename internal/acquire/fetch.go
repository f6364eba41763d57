// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads community documents published online so they
// can be indexed like local files.
package acquire

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/proposal-engine/internal/httputil"
)

// Fetcher downloads documents into a local directory.
type Fetcher struct {
	client     *http.Client
	dir        string
	userAgent  string
	maxRetries int
}

// NewFetcher returns a Fetcher writing into dir. A nil client uses
// http.DefaultClient.
func NewFetcher(client *http.Client, dir, userAgent string, maxRetries int) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, dir: dir, userAgent: userAgent, maxRetries: maxRetries}
}

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads rawURL and returns the local path. A file already
// downloaded from the same URL is reused and skipped is true.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (dest string, skipped bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("parsing %q: %w", rawURL, err)
	}
	base := Slug(u)

	if existing, _ := filepath.Glob(filepath.Join(f.dir, base+".*")); len(existing) > 0 {
		return existing[0], true, nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating %s: %w", f.dir, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.maxRetries)
	if err != nil {
		return "", false, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	dest = filepath.Join(f.dir, base+extension(u, resp.Header.Get("Content-Type")))
	if err := writeAtomic(dest, resp.Body); err != nil {
		return "", false, err
	}
	return dest, false, nil
}

// writeAtomic copies r into a temporary file beside dest and renames it.
func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if copyErr != nil {
			return fmt.Errorf("writing download: %w", copyErr)
		}
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slug names a download after the URL's host and path without extension.
func Slug(u *url.URL) string {
	p := strings.TrimSuffix(u.Path, path.Ext(u.Path))
	s := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(u.Hostname()+p), "-"), "-")
	if s == "" {
		return "download"
	}
	return s
}

var typeExtensions = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/html":     ".html",
	"text/markdown": ".md",
	"text/plain":    ".txt",
}

// extension prefers the URL's own extension, then the response content type.
func extension(u *url.URL, contentType string) string {
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 6 {
		return ext
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	if ext, ok := typeExtensions[mt]; ok {
		return ext
	}
	return ".txt"
}
