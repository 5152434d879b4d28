package core

import (
	"context"
)

// Classifier turns raw email fields into a phishing prediction
type Classifier interface {
	// Evaluate scores the email fields; urls is a comma-separated list
	Evaluate(body, subject, urls, sender string) (*Prediction, error)
}

// Explainer produces a human readable justification for a verdict
type Explainer interface {
	// Explain describes why the email received the given verdict
	Explain(ctx context.Context, email *Email, result *PhishingAnalysisResult) (string, error)
}

// CacheRepository defines the interface for caching phishing verdicts
type CacheRepository interface {
	// Get retrieves a cached entry for a message fingerprint
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, fingerprint string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
