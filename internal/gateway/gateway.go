package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/siteobserver/internal/config"
	"github.com/lehigh-university-libraries/siteobserver/internal/gemini"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
	"github.com/lehigh-university-libraries/siteobserver/internal/ollama"
	"github.com/lehigh-university-libraries/siteobserver/internal/openai"
	"github.com/lehigh-university-libraries/siteobserver/internal/providers"
)

// Gateway is the single path from the service to the vision model. It adds
// a timeout and error classification but never retries or caches.
type Gateway struct {
	provider providers.Provider
	config   providers.Config
	timeout  time.Duration
}

// New wraps provider; a zero timeout leaves the call bounded only by ctx
func New(provider providers.Provider, cfg providers.Config, timeout time.Duration) *Gateway {
	return &Gateway{provider: provider, config: cfg, timeout: timeout}
}

// FromConfig builds the provider named in cfg
func FromConfig(cfg *config.Config) (*Gateway, error) {
	var provider providers.Provider
	switch cfg.Provider {
	case config.ProviderOpenAI:
		provider = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	case config.ProviderOllama:
		provider = ollama.New(cfg.OllamaURL)
	case config.ProviderGemini:
		provider = gemini.New(cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultModel(cfg.Provider)
	}

	return New(provider, providers.Config{Model: model, Temperature: cfg.Temperature}, cfg.RequestTimeout), nil
}

// Provider is the name of the backing provider
func (g *Gateway) Provider() string {
	return g.provider.Name()
}

// Model is the model every request is sent to
func (g *Gateway) Model() string {
	return g.config.Model
}

// Complete sends req and returns the trimmed completion. Provider failures
// are reported as models.ErrGeneration; judging the text is left to callers.
func (g *Gateway) Complete(ctx context.Context, req providers.Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.provider.Complete(ctx, g.config, req)
	if err != nil {
		slog.Error("Model call failed",
			"provider", g.provider.Name(),
			"model", g.config.Model,
			"duration", time.Since(start),
			"err", err)
		return "", fmt.Errorf("%w: %s: %v", models.ErrGeneration, g.provider.Name(), err)
	}

	text = strings.TrimSpace(text)
	slog.Debug("Model call completed",
		"provider", g.provider.Name(),
		"model", g.config.Model,
		"messages", len(req.Messages),
		"duration", time.Since(start),
		"length", len(text))
	return text, nil
}
