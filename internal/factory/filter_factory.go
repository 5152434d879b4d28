package factory

import (
	"io"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/filter"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/ports"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service ports.PhishingEvaluator
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service ports.PhishingEvaluator) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreatePostfixFilter creates the SMTP content filter, or nil when it is disabled
func (f *FilterFactory) CreatePostfixFilter() *filter.PostfixFilter {
	smtpCfg := f.cfg.GetSMTP()
	if !smtpCfg.Enabled {
		return nil
	}

	return filter.NewPostfixFilter(f.service, f.logger, filter.PostfixOptions{
		ListenAddress:  smtpCfg.ListenAddress,
		BlockPhishing:  smtpCfg.BlockPhishing,
		Explain:        smtpCfg.Explain,
		StatusHeader:   smtpCfg.StatusHeader,
		ScoreHeader:    smtpCfg.ScoreHeader,
		ModelHeader:    smtpCfg.ModelHeader,
		PostfixAddress: smtpCfg.PostfixAddress,
		PostfixPort:    smtpCfg.PostfixPort,
		PostfixEnabled: smtpCfg.PostfixEnabled,
		SubjectPrefix:  smtpCfg.SubjectPrefix,
		ModifySubject:  smtpCfg.ModifySubject,
	})
}

// CreateCliFilter creates the command-line reporter writing to out
func (f *FilterFactory) CreateCliFilter(out io.Writer, jsonOutput, explain bool) *filter.CliFilter {
	return filter.NewCliFilter(f.service, f.logger, out, filter.CliOptions{
		Verbose: f.cfg.GetBool("cli.verbose"),
		JSON:    jsonOutput,
		Explain: explain,
	})
}
