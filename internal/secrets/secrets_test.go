// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/internal/logging"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  Secrets
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, AnthropicKey, "  sk-ant-123  \n")
				writeFile(t, dir, OpenAIKey, "sk-oa-456")
				return dir
			},
			want: Secrets{AnthropicKey: "sk-ant-123", OpenAIKey: "sk-oa-456"},
		},
		{
			name: "missing directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips blank files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, AnthropicKey, "valid")
				writeFile(t, dir, "empty", "")
				writeFile(t, dir, "whitespace", "  \n\t ")
				return dir
			},
			want: Secrets{AnthropicKey: "valid"},
		},
		{
			name: "skips dotfiles and directories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden", "secret")
				writeFile(t, dir, OpenAIKey, "real")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
				return dir
			},
			want: Secrets{OpenAIKey: "real"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), logging.Discard())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := t.TempDir()
	writeFile(t, dir, AnthropicKey, "value123")
	bad := filepath.Join(dir, OpenAIKey)
	require.NoError(t, os.WriteFile(bad, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(bad, 0o644) })

	got, err := Load(dir, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, Secrets{AnthropicKey: "value123"}, got)
}

func TestFill(t *testing.T) {
	s := Secrets{AnthropicKey: "ant", OpenAIKey: "oa"}

	tests := []struct {
		name string
		cfg  types.AIConfig
		want string
	}{
		{"anthropic", types.AIConfig{Provider: types.ProviderAnthropic}, "ant"},
		{"openai", types.AIConfig{Provider: types.ProviderOpenAI}, "oa"},
		{"empty provider uses anthropic", types.AIConfig{}, "ant"},
		{"explicit key wins", types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "flag"}, "flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			s.Fill(&cfg)
			assert.Equal(t, tt.want, cfg.APIKey)
		})
	}
	assert.Equal(t, []string{AnthropicKey, OpenAIKey}, s.Keys())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
