package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wellbeing-companion/internal/config"
)

// NewGenerator elige el proveedor según LLM_PROVIDER.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.LLMProvider {
	case config.LLMProviderOpenAI:
		return NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMHistoryLimit, cfg.LLMTimeout(), logger), nil
	case config.LLMProviderArk:
		return NewArkClient(ctx, ArkConfig{
			BaseURL:   cfg.ArkBaseURL(),
			Region:    cfg.ArkRegion,
			APIKey:    cfg.LLMAPIKey,
			AccessKey: cfg.ArkAccessKey,
			SecretKey: cfg.ArkSecretKey,
			Model:     cfg.LLMModel,
		}, cfg.LLMHistoryLimit, logger)
	case config.LLMProviderGemini:
		return NewGeminiClient(ctx, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMHistoryLimit, logger)
	case config.LLMProviderMock:
		logger.Warn("using mock llm provider")
		return &MockClient{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownLLMProvider, cfg.LLMProvider)
	}
}
