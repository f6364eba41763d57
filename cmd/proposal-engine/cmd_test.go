// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndices(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []int
		wantErr bool
	}{
		{"single", []string{"2"}, []int{2}, false},
		{"sorted and deduplicated", []string{"3", "1", "3"}, []int{1, 3}, false},
		{"comma separated", []string{"0,2", " 4 "}, []int{0, 2, 4}, false},
		{"empty", nil, []int{}, false},
		{"negative", []string{"-1"}, nil, true},
		{"not a number", []string{"two"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIndices(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEditText(t *testing.T) {
	file := filepath.Join(t.TempDir(), "para.txt")
	require.NoError(t, os.WriteFile(file, []byte("from file"), 0o644))

	got, err := editText(nil, file, nil)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	got, err = editText([]string{"-"}, "", strings.NewReader("from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", got)

	got, err = editText([]string{"Residents", "asked", "for", "lighting."}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Residents asked for lighting.", got)

	_, err = editText(nil, "", nil)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}
