package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/extract"
	"github.com/sells-group/project-registry/internal/fetcher"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/pipeline"
	"github.com/sells-group/project-registry/internal/publish"
	"github.com/sells-group/project-registry/internal/resilience"
	"github.com/sells-group/project-registry/internal/resolve"
	"github.com/sells-group/project-registry/internal/scorer"
	"github.com/sells-group/project-registry/internal/store"
	"github.com/sells-group/project-registry/pkg/anthropic"
)

// pipelineEnv holds the store, the pipeline and the clients needed by the
// run, stream, serve and dlq commands.
type pipelineEnv struct {
	Store     store.Store
	Pipeline  *pipeline.Pipeline
	Lexicon   *lexicon.Lexicon
	Publisher *publish.KafkaPublisher // nil when kafka is not configured
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Publisher != nil {
		if err := pe.Publisher.Close(); err != nil {
			zap.L().Warn("close kafka publisher", zap.Error(err))
		}
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.MaxConns)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// loadLexicon returns the built-in tables or the override file named by
// pipeline.lexicon_path.
func loadLexicon(c config.PipelineConfig) (*lexicon.Lexicon, error) {
	if c.LexiconPath == "" {
		return lexicon.Default(), nil
	}
	lx, err := lexicon.LoadFile(c.LexiconPath)
	if err != nil {
		return nil, eris.Wrapf(err, "load lexicon %s", c.LexiconPath)
	}
	zap.L().Info("lexicon loaded", zap.String("path", c.LexiconPath))
	return lx, nil
}

// buildExtractor returns the rule extractor, wrapped behind the AI
// extractor when pipeline.ai_enabled is set.
func buildExtractor(c *config.Config, lx *lexicon.Lexicon, client anthropic.Client) extract.Extractor {
	rules := extract.NewRuleExtractor(lx)
	if !c.Pipeline.AIEnabled || client == nil {
		return rules
	}
	ai := extract.NewAIExtractor(client, lx, aiConfig(c))
	zap.L().Info("ai extraction enabled", zap.String("model", c.Anthropic.Model))
	return extract.NewFallback(ai, rules)
}

func aiConfig(c *config.Config) extract.AIConfig {
	circuit := resilience.DefaultCircuitBreakerConfig("anthropic")
	if c.Circuit.FailureThreshold > 0 {
		circuit.FailureThreshold = c.Circuit.FailureThreshold
	}
	if c.Circuit.ResetTimeoutSecs > 0 {
		circuit.ResetTimeout = time.Duration(c.Circuit.ResetTimeoutSecs) * time.Second
	}
	retry := retryConfig(c.Retry)
	retry.OnRetry = resilience.RetryLogger("extract", "anthropic")
	return extract.AIConfig{
		Model:         c.Anthropic.Model,
		MaxTokens:     c.Anthropic.MaxTokens,
		Temperature:   c.Anthropic.Temperature,
		MaxInputChars: c.Anthropic.TextWindow,
		Timeout:       time.Duration(c.Anthropic.TimeoutSecs) * time.Second,
		Retry:         retry,
		Circuit:       circuit,
	}
}

func retryConfig(c config.RetryConfig) resilience.RetryConfig {
	return resilience.NewRetryConfig(
		c.MaxAttempts,
		time.Duration(c.InitialBackoffMs)*time.Millisecond,
		time.Duration(c.MaxBackoffMs)*time.Millisecond,
	)
}

// pipelineOptions maps config onto pipeline.Options.
func pipelineOptions(c *config.Config) pipeline.Options {
	opts := pipeline.Options{Workers: c.Pipeline.Workers}
	if c.DLQ.Enabled {
		opts.DLQMaxRetries = c.DLQ.MaxRetries
	}
	return opts
}

// initPipeline opens the store, loads the lexicon and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(cfg.Scorer); err != nil {
		return nil, err
	}

	lx, err := loadLexicon(cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st, Lexicon: lx}

	var client anthropic.Client
	if cfg.Pipeline.AIEnabled {
		client = anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.BaseURL)
	}

	var publisher pipeline.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := publish.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init kafka publisher")
		}
		env.Publisher = kp
		publisher = kp
		zap.L().Info("kafka publishing enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	resolver := resolve.NewResolver(resolve.Config{
		Threshold: cfg.Pipeline.SimilarityThreshold,
		PrefixLen: cfg.Pipeline.CandidatePrefixLen,
	}, nil)

	env.Pipeline = pipeline.New(
		st,
		buildExtractor(cfg, lx, client),
		scorer.New(cfg.Scorer, lx),
		resolver,
		lx,
		publisher,
		pipelineOptions(cfg),
	)
	return env, nil
}

// newFetcher builds the HTTP fetcher used by configured sources.
func newFetcher(c config.FetchConfig, r config.RetryConfig) *fetcher.HTTPFetcher {
	retry := retryConfig(r)
	retry.OnRetry = resilience.RetryLogger("fetcher", "download")
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.UserAgent,
		Timeout:    time.Duration(c.TimeoutSecs) * time.Second,
		RatePerSec: c.RatePerSec,
		Burst:      c.Burst,
		Retry:      retry,
	})
}
