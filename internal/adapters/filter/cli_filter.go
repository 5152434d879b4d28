package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/ports"
)

const previewLength = 500

// CliOptions configures the command-line reporter
type CliOptions struct {
	Verbose bool
	JSON    bool
	Explain bool
}

// CliFilter scores a single email and reports the verdict to a writer
type CliFilter struct {
	service ports.PhishingEvaluator
	logger  *zap.Logger
	out     io.Writer
	opts    CliOptions
}

type cliReport struct {
	From         string     `json:"from"`
	Subject      string     `json:"subject"`
	Prediction   core.Label `json:"prediction"`
	Probability  []float64  `json:"probability"`
	Explanation  string     `json:"explanation,omitempty"`
	Model        string     `json:"model"`
	ProcessingID string     `json:"processing_id,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service ports.PhishingEvaluator, logger *zap.Logger, out io.Writer, opts CliOptions) *CliFilter {
	return &CliFilter{
		service: service,
		logger:  logger,
		out:     out,
		opts:    opts,
	}
}

// ProcessEmail processes an email and displays the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.PhishingAnalysisResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	start := time.Now()
	result, err := f.service.Evaluate(ctx, email, core.EvaluateOptions{
		Explain: f.opts.Explain,
		Source:  "cli",
	})
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}
	duration := time.Since(start)

	if f.opts.JSON {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		err = enc.Encode(cliReport{
			From:         email.From,
			Subject:      email.Subject,
			Prediction:   result.Label,
			Probability:  result.Probabilities,
			Explanation:  result.Explanation,
			Model:        result.ModelUsed,
			ProcessingID: result.ProcessingID,
			DurationMS:   duration.Milliseconds(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
		return result, nil
	}

	f.printText(email, result, duration)
	return result, nil
}

func (f *CliFilter) printText(email *core.Email, result *core.PhishingAnalysisResult, duration time.Duration) {
	fmt.Fprintf(f.out, "=== Email Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))
	if email.URLs != "" {
		fmt.Fprintf(f.out, "URLs: %s\n", email.URLs)
	}

	if f.opts.Verbose {
		preview := []rune(email.Body)
		if len(preview) > previewLength {
			preview = append(preview[:previewLength], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", string(preview))
	}

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Prediction: %s\n", result.Label)
	fmt.Fprintf(f.out, "Phishing score: %.4f\n", result.Score())
	if result.Explanation != "" {
		fmt.Fprintf(f.out, "Explanation: %s\n", result.Explanation)
	}
	fmt.Fprintf(f.out, "Model used: %s\n", result.ModelUsed)
	fmt.Fprintf(f.out, "Processing time: %v\n", duration)
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
