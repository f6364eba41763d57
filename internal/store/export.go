// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportSession writes the session's blueprint and drafts to
// <dir>/session-<id>.<format> and returns the path. format is yaml or json.
func (s *Store) ExportSession(ctx context.Context, id, format string) (string, error) {
	rec, err := s.LoadSession(ctx, id)
	if err != nil {
		return "", err
	}

	var data []byte
	switch format {
	case "yaml", "yml":
		format = "yaml"
		data, err = yaml.Marshal(&rec)
		if err != nil {
			return "", fmt.Errorf("marshaling YAML: %w", err)
		}
	case "json":
		data, err = json.MarshalIndent(&rec, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported export format %q: use yaml or json", format)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("session-%s.%s", rec.ID, format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
