package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/gmail"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/metrics"
)

// GmailFactory creates mailbox clients
type GmailFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *metrics.Recorder
}

// NewGmailFactory creates a new Gmail factory
func NewGmailFactory(cfg *config.Config, logger *zap.Logger, recorder *metrics.Recorder) *GmailFactory {
	return &GmailFactory{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
	}
}

// CreateClient creates a Gmail client from configuration
func (f *GmailFactory) CreateClient() (*gmail.Client, error) {
	gmailCfg, err := f.cfg.GetGmail()
	if err != nil {
		return nil, err
	}

	opts := []gmail.Option{
		gmail.WithTimeout(gmailCfg.RequestTimeout),
		gmail.WithMetrics(f.recorder),
	}
	if gmailCfg.Endpoint != "" {
		opts = append(opts, gmail.WithEndpoint(gmailCfg.Endpoint))
	}

	return gmail.NewClient(f.logger, opts...), nil
}
