package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/candidate-intake/internal/assessment"
	"github.com/jonathan/candidate-intake/internal/config"
	"github.com/jonathan/candidate-intake/internal/llm"
	"github.com/jonathan/candidate-intake/internal/logging"
	"github.com/jonathan/candidate-intake/internal/server/ratelimit"
	"github.com/jonathan/candidate-intake/internal/store"
)

// loadConfig resolves the configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("INTAKE_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(cfg.Logging)
	return cfg, nil
}

// modelConfig applies the configured model and temperature to the Gemini defaults.
func modelConfig(cfg *config.Config) *llm.Config {
	mc := llm.DefaultConfig().WithTemperature(cfg.Temperature)
	if cfg.Model != "" {
		mc = mc.WithModel(llm.TierStandard, cfg.Model)
	}
	return mc
}

func retryPolicy(cfg *config.Config) llm.RetryPolicy {
	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.Timeout = cfg.Timeout()
	policy.InitialBackoff = cfg.Backoff()
	if policy.MaxBackoff < 16*policy.InitialBackoff {
		policy.MaxBackoff = 16 * policy.InitialBackoff
	}
	return policy
}

func rateLimitConfig(cfg *config.Config) *ratelimit.Config {
	rl := ratelimit.DefaultConfig()
	rl.Enabled = !cfg.RateLimit.Disabled
	rl.DefaultLimit = cfg.RateLimit.DefaultPerMinute
	rl.Whitelist = ratelimit.ClientSet(cfg.RateLimit.Allow)
	rl.Blacklist = ratelimit.ClientSet(cfg.RateLimit.Deny)
	return rl
}

// app holds everything a command needs to drive the intake service.
type app struct {
	cfg     *config.Config
	client  llm.Client
	store   store.Store
	service *assessment.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required (set GEMINI_API_KEY environment variable or api_key in the config file)")
	}

	client, err := llm.NewClient(ctx, modelConfig(cfg), cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}

	snapshots, err := store.OpenSnapshots(ctx, cfg)
	if err != nil {
		st.Close()     //nolint:errcheck
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to open snapshot sink: %w", err)
	}

	svc := assessment.NewService(st, snapshots, llm.NewRetrier(client, retryPolicy(cfg)), assessment.Options{
		Now: func() time.Time { return time.Now().UTC() },
	})

	logging.Info().
		Str("store", cfg.StoreBackend).
		Str("model", client.GetModel(llm.TierStandard)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("intake service ready")

	return &app{cfg: cfg, client: client, store: st, service: svc}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close report store")
	}
	if err := a.client.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close model client")
	}
}
