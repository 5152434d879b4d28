package factory

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/utils"
)

// LLMFactory creates the optional verdict explainer
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateExplainer creates an explainer for the configured provider. It
// returns nil when no provider is configured.
func (f *LLMFactory) CreateExplainer() (core.Explainer, error) {
	provider := strings.ToLower(strings.TrimSpace(f.cfg.GetLLM().Provider))

	switch provider {
	case "", "none":
		f.logger.Info("No LLM provider configured, explanations are disabled")
		return nil, nil
	case "bedrock":
		return NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateExplainer()
	case "gemini":
		return NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateExplainer()
	case "openai":
		return NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateExplainer()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
