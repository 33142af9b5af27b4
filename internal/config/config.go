// Package config provides configuration loading for agendad.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults filling anything left unset.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete agendad configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Models    ModelsConfig    `koanf:"models"`
	Cache     CacheConfig     `koanf:"cache"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Store     StoreConfig     `koanf:"store"`
	Source    SourceConfig    `koanf:"source"`
	Prefilter PrefilterConfig `koanf:"prefilter"`
}

// ServerConfig holds the HTTP status server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
}

// ModelsConfig selects providers and per-provider models. Credentials are
// never stored here; they are read from the environment at call time.
type ModelsConfig struct {
	AnthropicModel string `koanf:"anthropic_model"`
	OpenAIModel    string `koanf:"openai_model"`
	EmbeddingModel string `koanf:"embedding_model"`
	// ProviderOrder is the fallback chain, most preferred first.
	ProviderOrder []string `koanf:"provider_order"`
	MaxRetries    int      `koanf:"max_retries"`
}

// CacheConfig tunes the response cache.
type CacheConfig struct {
	TTL                 time.Duration `koanf:"ttl"`
	MaxEntries          int           `koanf:"max_entries"`
	SimilarityThreshold float64       `koanf:"similarity_threshold"`
}

// DedupConfig tunes input deduplication.
type DedupConfig struct {
	Window              time.Duration `koanf:"window"`
	SimilarityThreshold float64       `koanf:"similarity_threshold"`
}

// PipelineConfig tunes the day-processing loop.
type PipelineConfig struct {
	EnableSelfReflection         bool          `koanf:"enable_self_reflection"`
	EnableMultiAgentVerification bool          `koanf:"enable_multi_agent_verification"`
	QualityRetryThreshold        float64       `koanf:"quality_retry_threshold"`
	ConsensusThreshold           float64       `koanf:"consensus_threshold"`
	RescanInterval               time.Duration `koanf:"rescan_interval"`
	RescanDays                   int           `koanf:"rescan_days"`
	CompressThreshold            int           `koanf:"compress_threshold"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory store.
	Path string `koanf:"path"`
}

// SourceConfig locates the conversation spool.
type SourceConfig struct {
	// Dir holds one JSON-lines file per day, named YYYY-MM-DD.jsonl.
	Dir string `koanf:"dir"`
}

// PrefilterConfig tunes the deterministic pre-filter.
type PrefilterConfig struct {
	MinContentLength  int     `koanf:"min_content_length"`
	MessagesThreshold float64 `koanf:"messages_threshold"`
	NotesThreshold    float64 `koanf:"notes_threshold"`
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9180
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Models.AnthropicModel == "" {
		cfg.Models.AnthropicModel = "claude-sonnet-4-20250514"
	}
	if cfg.Models.OpenAIModel == "" {
		cfg.Models.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.Models.EmbeddingModel == "" {
		cfg.Models.EmbeddingModel = "text-embedding-3-small"
	}
	if len(cfg.Models.ProviderOrder) == 0 {
		cfg.Models.ProviderOrder = []string{"anthropic", "openai"}
	}
	if cfg.Models.MaxRetries == 0 {
		cfg.Models.MaxRetries = 3
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 2 * time.Hour
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 200
	}
	if cfg.Cache.SimilarityThreshold == 0 {
		cfg.Cache.SimilarityThreshold = 0.92
	}
	if cfg.Dedup.Window == 0 {
		cfg.Dedup.Window = 24 * time.Hour
	}
	if cfg.Dedup.SimilarityThreshold == 0 {
		cfg.Dedup.SimilarityThreshold = 0.88
	}
	if cfg.Pipeline.QualityRetryThreshold == 0 {
		cfg.Pipeline.QualityRetryThreshold = 7.0
	}
	if cfg.Pipeline.ConsensusThreshold == 0 {
		cfg.Pipeline.ConsensusThreshold = 0.6
	}
	if cfg.Pipeline.RescanInterval == 0 {
		cfg.Pipeline.RescanInterval = 5 * time.Minute
	}
	if cfg.Pipeline.RescanDays == 0 {
		cfg.Pipeline.RescanDays = 7
	}
	if cfg.Pipeline.CompressThreshold == 0 {
		cfg.Pipeline.CompressThreshold = 50
	}
	if cfg.Prefilter.MinContentLength == 0 {
		cfg.Prefilter.MinContentLength = 12
	}
	if cfg.Prefilter.MessagesThreshold == 0 {
		cfg.Prefilter.MessagesThreshold = 1.0
	}
	if cfg.Prefilter.NotesThreshold == 0 {
		cfg.Prefilter.NotesThreshold = 1.5
	}
}

// Validate checks the configuration for values that would misbehave at
// runtime rather than fail fast.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	if c.Cache.SimilarityThreshold <= 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold %v must be in (0, 1]", c.Cache.SimilarityThreshold)
	}
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup.similarity_threshold %v must be in (0, 1]", c.Dedup.SimilarityThreshold)
	}
	if c.Pipeline.ConsensusThreshold < 0 || c.Pipeline.ConsensusThreshold > 1 {
		return fmt.Errorf("pipeline.consensus_threshold %v must be in [0, 1]", c.Pipeline.ConsensusThreshold)
	}
	if c.Pipeline.QualityRetryThreshold < 0 || c.Pipeline.QualityRetryThreshold > 10 {
		return fmt.Errorf("pipeline.quality_retry_threshold %v must be in [0, 10]", c.Pipeline.QualityRetryThreshold)
	}
	if c.Pipeline.RescanDays < 1 {
		return fmt.Errorf("pipeline.rescan_days %d must be at least 1", c.Pipeline.RescanDays)
	}
	for _, p := range c.Models.ProviderOrder {
		switch p {
		case "anthropic", "openai":
		default:
			return fmt.Errorf("models.provider_order entry %q unknown", p)
		}
	}
	return nil
}
