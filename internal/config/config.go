package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "CODEBASE_AGENT"

// Options is the flat configuration record for the whole pipeline.
// Defaults are explicit; overrides come from the environment with the
// CODEBASE_AGENT prefix (e.g. CODEBASE_AGENT_CHUNK_MAX_TOKENS).
type Options struct {
	// Providers.
	ChatProvider      string `split_words:"true" default:"ollama"`
	EmbeddingProvider string `split_words:"true" default:"ollama"`
	Model             string `split_words:"true"`
	EmbeddingModel    string `split_words:"true" default:"nomic-embed-text"`
	OllamaURL         string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	APIKey            string `envconfig:"API_KEY"`
	BaseURL           string `envconfig:"BASE_URL"`

	// Storage.
	VectorBackend string `split_words:"true" default:"sqlite-vec"`
	PersistDir    string `split_words:"true" default:".codebase-agent"`
	Collection    string `split_words:"true" default:"codebase"`

	// Chunking and indexing.
	ChunkMaxTokens        int      `split_words:"true" default:"800"`
	EnableIncremental     bool     `split_words:"true" default:"true"`
	EnablePathObfuscation bool     `split_words:"true" default:"false"`
	IgnorePatterns        []string `split_words:"true"`
	MaxFileSizeMB         int      `envconfig:"MAX_FILE_SIZE_MB" default:"10"`
	EmbedBatchSize        int      `split_words:"true" default:"32"`

	// Retrieval.
	EnableReranking     bool   `split_words:"true" default:"true"`
	RetrievalK          int    `envconfig:"RETRIEVAL_K" default:"10"`
	RerankTopK          int    `envconfig:"RERANK_TOP_K" default:"5"`
	EnableMultiQuery    bool   `split_words:"true" default:"false"`
	CrossEncoderEnabled bool   `split_words:"true" default:"false"`
	CrossEncoderURL     string `envconfig:"CROSS_ENCODER_URL"`

	// Answering.
	UseAgent       bool          `split_words:"true" default:"true"`
	RecursionLimit int           `split_words:"true" default:"20"`
	HistoryLimit   int           `split_words:"true" default:"20"`
	CacheTTL       time.Duration `envconfig:"CACHE_TTL" default:"300s"`

	LogLevel string `split_words:"true" default:"info"`
}

var knownBackends = map[string]bool{"sqlite-vec": true, "chromem": true}

var knownProviders = map[string]bool{"ollama": true, "openai": true, "gemini": true, "groq": true}

// Load builds Options from defaults plus environment overrides and
// validates the result. Invalid combinations fail with every message,
// not just the first.
func Load() (Options, error) {
	var opts Options
	if err := envconfig.Process(envPrefix, &opts); err != nil {
		return Options{}, fmt.Errorf("process environment: %w", err)
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return Options{}, fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return opts, nil
}

// Validate returns the full list of configuration problems.
func (o Options) Validate() []string {
	var errs []string
	if o.ChunkMaxTokens <= 0 || o.ChunkMaxTokens > 8000 {
		errs = append(errs, "chunk max tokens must be in (0, 8000]")
	}
	if o.RetrievalK < o.RerankTopK {
		errs = append(errs, "retrieval k must be >= rerank top k")
	}
	if o.RetrievalK < 1 {
		errs = append(errs, "retrieval k must be at least 1")
	}
	if o.MaxFileSizeMB < 1 {
		errs = append(errs, "max file size must be at least 1 MB")
	}
	if o.EmbedBatchSize < 1 {
		errs = append(errs, "embed batch size must be at least 1")
	}
	if !knownBackends[o.VectorBackend] {
		errs = append(errs, fmt.Sprintf("unknown vector backend %q (sqlite-vec or chromem)", o.VectorBackend))
	}
	if !knownProviders[o.ChatProvider] {
		errs = append(errs, fmt.Sprintf("unknown chat provider %q", o.ChatProvider))
	}
	if !knownProviders[o.EmbeddingProvider] {
		errs = append(errs, fmt.Sprintf("unknown embedding provider %q", o.EmbeddingProvider))
	}
	if o.RecursionLimit < 1 {
		errs = append(errs, "recursion limit must be at least 1")
	}
	if o.HistoryLimit < 2 {
		errs = append(errs, "history limit must be at least 2")
	}
	if o.CrossEncoderEnabled && o.CrossEncoderURL == "" {
		errs = append(errs, "cross encoder URL required when cross encoder is enabled")
	}
	return errs
}
