// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// AIProvider selects the generation service implementation.
type AIProvider string

const (
	ProviderAnthropic AIProvider = "anthropic"
	ProviderOpenAI    AIProvider = "openai"
)

// AIConfig holds shared settings for stages that call a generation service.
type AIConfig struct {
	// Provider selects the API: anthropic or openai.
	Provider AIProvider `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for failed calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Timeout bounds a single request to the service.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RetrievalConfig holds settings for grounding retrieval.
type RetrievalConfig struct {
	// TopK is the number of chunks requested per section (default 5).
	TopK int `json:"top_k" yaml:"top_k"`

	// MinRelevance discards chunks scoring below it (default 0.3).
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`

	// ConfidenceThreshold marks a section low-confidence when no chunk
	// reaches it (default 0.5).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// SearchTimeout bounds a single chunk store search (default 10s).
	SearchTimeout time.Duration `json:"search_timeout" yaml:"search_timeout"`

	// SnippetChars truncates citation snippets (default 500).
	SnippetChars int `json:"snippet_chars" yaml:"snippet_chars"`

	// Concurrency bounds parallel per-section retrieval (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// BlueprintConfig holds settings for requirement extraction.
type BlueprintConfig struct {
	AIConfig `yaml:",inline"`

	// UseAI enables model-assisted extraction with heuristic fallback.
	UseAI bool `json:"use_ai" yaml:"use_ai"`

	// MinTextLength rejects funding calls shorter than this many characters (default 200).
	MinTextLength int `json:"min_text_length" yaml:"min_text_length"`
}

// GenerationConfig holds settings for section drafting.
type GenerationConfig struct {
	AIConfig `yaml:",inline"`

	// MaxTokens bounds the completion length (default 600).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the sampling temperature (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// Concurrency bounds parallel section generation (default 2).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// QualityRule is a custom check evaluated against each draft. Expr must
// evaluate to true when the draft violates the rule.
type QualityRule struct {
	Name     string `json:"name" yaml:"name"`
	Expr     string `json:"expr" yaml:"expr"`
	Message  string `json:"message" yaml:"message"`
	Blocking bool   `json:"blocking" yaml:"blocking"`
}

// QualityConfig holds settings for the quality checker.
type QualityConfig struct {
	// SubjectiveTerms are flagged as non-neutral language.
	SubjectiveTerms []string `json:"subjective_terms" yaml:"subjective_terms"`

	// NearLimitPercent warns when a draft is within this percentage of its limit (default 10).
	NearLimitPercent float64 `json:"near_limit_percent" yaml:"near_limit_percent"`

	// WordsPerPage converts page limits to words (default 500).
	WordsPerPage int `json:"words_per_page" yaml:"words_per_page"`

	// Rules are additional expression-based checks.
	Rules []QualityRule `json:"rules" yaml:"rules"`
}

// IngestConfig holds settings for splitting context documents into chunks.
type IngestConfig struct {
	// ChunkWords is the target chunk size in words (default 400).
	ChunkWords int `json:"chunk_words" yaml:"chunk_words"`

	// OverlapWords is the overlap between consecutive chunks (default 60).
	OverlapWords int `json:"overlap_words" yaml:"overlap_words"`

	// ConvertImage is the container image that turns PDF and office
	// documents into text (default "markitdown:latest").
	ConvertImage string `json:"convert_image" yaml:"convert_image"`

	// ContainerRuntime forces docker or podman. Empty tries docker, then podman.
	ContainerRuntime string `json:"container_runtime" yaml:"container_runtime"`

	// UserAgent is sent when downloading documents given as URLs.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// DownloadTimeout bounds a single document download (default 60s).
	DownloadTimeout time.Duration `json:"download_timeout" yaml:"download_timeout"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	// Dir holds proposal.db and export files (default "proposals").
	Dir string `json:"dir" yaml:"dir"`

	// LeaseTimeout is how long a section generation lease is honoured
	// before another process may take it over (default 15m).
	LeaseTimeout time.Duration `json:"lease_timeout" yaml:"lease_timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level   string `json:"level" yaml:"level"`
	Format  string `json:"format" yaml:"format"`
	Verbose bool   `json:"verbose" yaml:"verbose"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Blueprint  BlueprintConfig  `json:"blueprint" yaml:"blueprint"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Quality    QualityConfig    `json:"quality" yaml:"quality"`
	Ingest     IngestConfig     `json:"ingest" yaml:"ingest"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DefaultSubjectiveTerms are promotional words that undermine a neutral register.
var DefaultSubjectiveTerms = []string{
	"revolutionary", "groundbreaking", "world-class", "unprecedented",
	"best-in-class", "cutting-edge", "game-changing", "amazing",
	"incredible", "unparalleled", "perfect", "obviously",
}

// DefaultPipelineConfig returns a PipelineConfig with every default applied.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Blueprint: BlueprintConfig{
			AIConfig: AIConfig{
				Provider:   ProviderAnthropic,
				Model:      "claude-sonnet-4-5-20250929",
				MaxRetries: 3,
				Timeout:    60 * time.Second,
			},
			MinTextLength: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			MinRelevance:        0.3,
			ConfidenceThreshold: 0.5,
			SearchTimeout:       10 * time.Second,
			SnippetChars:        500,
			Concurrency:         4,
		},
		Generation: GenerationConfig{
			AIConfig: AIConfig{
				Provider:          ProviderAnthropic,
				Model:             "claude-sonnet-4-5-20250929",
				MaxRetries:        3,
				RequestsPerSecond: 1,
				Timeout:           60 * time.Second,
			},
			MaxTokens:   600,
			Temperature: 0.7,
			Concurrency: 2,
		},
		Quality: QualityConfig{
			SubjectiveTerms:  append([]string(nil), DefaultSubjectiveTerms...),
			NearLimitPercent: 10,
			WordsPerPage:     500,
		},
		Ingest: IngestConfig{
			ChunkWords:      400,
			OverlapWords:    60,
			ConvertImage:    "markitdown:latest",
			UserAgent:       "proposal-engine/1.0",
			DownloadTimeout: 60 * time.Second,
		},
		Store: StoreConfig{
			Dir:          "proposals",
			LeaseTimeout: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
