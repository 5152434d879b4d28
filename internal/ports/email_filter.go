package ports

import (
	"context"

	"github.com/mikey/phishing-detector/internal/core"
)

// EmailFilter defines the interface for an inbound mail filter
type EmailFilter interface {
	// ProcessEmail scores an email and returns the verdict
	ProcessEmail(ctx context.Context, email *core.Email) (*core.PhishingAnalysisResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
