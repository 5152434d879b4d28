package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/metrics"
	"github.com/mikey/phishing-detector/internal/whitelist"
)

const (
	modelClassifier = "classifier"
	modelCache      = "cache"
	modelWhitelist  = "whitelist"
)

// ServiceOptions tunes the phishing service
type ServiceOptions struct {
	CacheEnabled   bool
	CacheTTL       time.Duration
	TrustedDomains []string
}

// EvaluateOptions are per-call switches
type EvaluateOptions struct {
	// Explain asks the configured explainer for a justification of the verdict
	Explain bool
	// Source labels the caller in metrics (http, smtp, cli)
	Source string
}

// PhishingService is the core service for phishing detection
type PhishingService struct {
	classifier   Classifier
	cache        CacheRepository
	explainer    Explainer
	whitelist    *whitelist.Checker
	metrics      *metrics.Recorder
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewPhishingService creates a new phishing service. cache and explainer may be nil.
func NewPhishingService(
	classifier Classifier,
	cache CacheRepository,
	explainer Explainer,
	recorder *metrics.Recorder,
	logger *zap.Logger,
	opts ServiceOptions,
) *PhishingService {
	return &PhishingService{
		classifier:   classifier,
		cache:        cache,
		explainer:    explainer,
		whitelist:    whitelist.NewChecker(opts.TrustedDomains, logger),
		metrics:      recorder,
		logger:       logger,
		cacheEnabled: opts.CacheEnabled && cache != nil,
		cacheTTL:     opts.CacheTTL,
	}
}

// CanExplain reports whether an explainer is configured
func (s *PhishingService) CanExplain() bool {
	return s.explainer != nil
}

// Fingerprint identifies an email by the fields the classifier reads
func Fingerprint(email *Email) string {
	h := sha256.New()
	for _, field := range []string{email.Body, email.Subject, email.URLs, email.From} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Evaluate scores an email for phishing risk
func (s *PhishingService) Evaluate(ctx context.Context, email *Email, opts EvaluateOptions) (*PhishingAnalysisResult, error) {
	start := time.Now()
	processingID := uuid.NewString()
	logger := s.logger.With(zap.String("processing_id", processingID))

	result, err := s.classify(ctx, email, logger)
	if err != nil {
		logger.Error("Failed to evaluate email", zap.Error(err), zap.String("sender", email.From))
		return nil, err
	}
	result.ProcessingID = processingID

	if opts.Explain {
		s.explain(ctx, email, result, logger)
	}

	source := opts.Source
	if source == "" {
		source = "unknown"
	}
	s.metrics.ObservePrediction(string(result.Label), source, time.Since(start))

	logger.Info("Evaluated email",
		zap.String("sender", email.From),
		zap.String("label", string(result.Label)),
		zap.Float64("score", result.Score()),
		zap.String("model", result.ModelUsed),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

func (s *PhishingService) explain(ctx context.Context, email *Email, result *PhishingAnalysisResult, logger *zap.Logger) {
	if result.ModelUsed == modelWhitelist {
		result.Explanation = "Sender domain is trusted"
		return
	}
	if s.explainer == nil {
		return
	}

	explanation, err := s.explainer.Explain(ctx, email, result)
	if err != nil {
		// The verdict stands on its own; the explanation is best effort
		logger.Warn("Failed to explain verdict", zap.Error(err))
		return
	}
	result.Explanation = explanation
}

func (s *PhishingService) classify(ctx context.Context, email *Email, logger *zap.Logger) (*PhishingAnalysisResult, error) {
	if s.whitelist.IsWhitelisted(email.From) {
		logger.Info("Skipping phishing check for trusted domain",
			zap.String("sender", email.From),
			zap.String("action", "whitelist_bypass"))

		return &PhishingAnalysisResult{
			Label:         LabelLegitimate,
			Probabilities: []float64{1, 0},
			AnalyzedAt:    time.Now(),
			ModelUsed:     modelWhitelist,
		}, nil
	}

	var fingerprint string
	if s.cacheEnabled {
		fingerprint = Fingerprint(email)
		entry, err := s.cache.Get(ctx, fingerprint)
		s.metrics.CacheLookup(err == nil)
		if err == nil {
			logger.Debug("Cache hit for email", zap.String("fingerprint", fingerprint))
			return &PhishingAnalysisResult{
				Label:         entry.Label,
				Probabilities: []float64{1 - entry.Score, entry.Score},
				AnalyzedAt:    time.Now(),
				ModelUsed:     modelCache,
			}, nil
		}
	}

	prediction, err := s.classifier.Evaluate(email.Body, email.Subject, email.URLs, email.From)
	if err != nil {
		return nil, err
	}

	result := &PhishingAnalysisResult{
		Label:         prediction.Label,
		Probabilities: prediction.Probabilities,
		AnalyzedAt:    time.Now(),
		ModelUsed:     modelClassifier,
	}

	if s.cacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			Fingerprint: fingerprint,
			Label:       prediction.Label,
			Score:       prediction.PhishingScore(),
			LastSeen:    now,
			ExpiresAt:   now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return result, nil
}
