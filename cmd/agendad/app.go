package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/agents"
	"github.com/fyrsmithlabs/agendad/internal/cache"
	"github.com/fyrsmithlabs/agendad/internal/compression"
	"github.com/fyrsmithlabs/agendad/internal/config"
	"github.com/fyrsmithlabs/agendad/internal/dedup"
	"github.com/fyrsmithlabs/agendad/internal/embeddings"
	"github.com/fyrsmithlabs/agendad/internal/llm"
	"github.com/fyrsmithlabs/agendad/internal/logging"
	"github.com/fyrsmithlabs/agendad/internal/pipeline"
	"github.com/fyrsmithlabs/agendad/internal/prefilter"
	"github.com/fyrsmithlabs/agendad/internal/source"
	"github.com/fyrsmithlabs/agendad/internal/store"
)

// app holds the wired object graph for one process.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	coord  *pipeline.Coordinator
	store  store.Store
	llm    *llm.Client
}

// buildApp loads configuration and wires every component. withMetrics
// controls Prometheus registration; the one-shot process command skips it.
func buildApp(withMetrics bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	client, embedder, err := buildModelLayer(cfg, logger)
	if err != nil {
		return nil, err
	}

	st, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Source.Dir == "" {
		return nil, fmt.Errorf("source.dir is required (set AGENDAD_SOURCE_DIR)")
	}
	filter := prefilter.New(prefilter.Config{
		MinContentLength: cfg.Prefilter.MinContentLength,
		MessageThreshold: cfg.Prefilter.MessagesThreshold,
		NotesThreshold:   cfg.Prefilter.NotesThreshold,
	})
	src, err := source.NewSpool(cfg.Source.Dir, filter, logger)
	if err != nil {
		return nil, err
	}

	deduper := dedup.New(cfg.Dedup.Window, cfg.Dedup.SimilarityThreshold)

	var metrics *pipeline.Metrics
	if withMetrics {
		metrics = pipeline.NewMetrics(prometheus.DefaultRegisterer)
	}

	coord, err := pipeline.New(pipeline.Config{
		EnableSelfReflection:         cfg.Pipeline.EnableSelfReflection,
		EnableMultiAgentVerification: cfg.Pipeline.EnableMultiAgentVerification,
		QualityRetryThreshold:        cfg.Pipeline.QualityRetryThreshold,
		ConsensusThreshold:           cfg.Pipeline.ConsensusThreshold,
		RescanInterval:               cfg.Pipeline.RescanInterval,
		RescanDays:                   cfg.Pipeline.RescanDays,
	}, pipeline.Deps{
		Source:    src,
		Store:     st,
		Story:     agents.NewStory(client, deduper, embedder, cfg.Pipeline.CompressThreshold, logger),
		Extractor: agents.NewExtractor(client, logger),
		Formatter: agents.NewFormatter(client, logger),
		Validator: agents.NewValidator(client, logger),
		Critic:    agents.NewCritic(client, logger),
		Verifier:  agents.NewVerifier(client, logger),
		LLMStats:  client.Stats,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, coord: coord, store: st, llm: client}, nil
}

// buildModelLayer assembles providers, the cache, and the embedder.
// Credentials are read from the environment per call so key rotation
// never requires a restart.
func buildModelLayer(cfg *config.Config, logger *zap.Logger) (*llm.Client, embeddings.Embedder, error) {
	var providers []llm.Provider
	for _, name := range cfg.Models.ProviderOrder {
		switch name {
		case "anthropic":
			providers = append(providers, llm.NewAnthropic(llm.AnthropicConfig{
				Model:       cfg.Models.AnthropicModel,
				Credentials: func() string { return os.Getenv("ANTHROPIC_API_KEY") },
			}))
		case "openai":
			providers = append(providers, llm.NewOpenAI(llm.OpenAIConfig{
				Model:       cfg.Models.OpenAIModel,
				Credentials: func() string { return os.Getenv("OPENAI_API_KEY") },
			}))
		}
	}

	// The semantic cache and input dedup need embeddings. Without an
	// OpenAI key both degrade to exact-hash matching.
	var embedder embeddings.Embedder
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		emb, err := embeddings.NewOpenAI(key, "", cfg.Models.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		embedder = emb
	} else {
		logger.Warn("OPENAI_API_KEY not set, semantic cache and similarity dedup disabled")
	}

	client, err := llm.New(llm.Config{
		Providers:  providers,
		Cache:      cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries, cfg.Cache.SimilarityThreshold),
		Embedder:   embedder,
		Compressor: compression.New(logger),
		Retry:      llm.RetryConfig{MaxAttempts: cfg.Models.MaxRetries},
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, embedder, nil
}

func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Path == "" {
		return store.NewMemory(), nil
	}
	return store.NewSQLite(cfg.Store.Path)
}
