package ports

import (
	"context"

	"github.com/mikey/phishing-detector/internal/core"
)

// PhishingEvaluator scores one email
type PhishingEvaluator interface {
	Evaluate(ctx context.Context, email *core.Email, opts core.EvaluateOptions) (*core.PhishingAnalysisResult, error)
}
