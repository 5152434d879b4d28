package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/filter"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/di"
	"github.com/mikey/phishing-detector/internal/mimeparse"
)

func main() {
	flags, err := di.ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *di.CLIFlags, reporter *filter.CliFilter, explainer core.Explainer, logger *zap.Logger) error {
	defer logger.Sync()

	if flags.Explain && explainer == nil {
		logger.Warn("Explanation requested but no LLM provider is configured")
	}

	email, err := readEmail(flags, logger)
	if err != nil {
		return err
	}

	_, err = reporter.ProcessEmail(context.Background(), email)

	if closer, ok := explainer.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			logger.Error("Failed to close LLM client", zap.Error(cerr))
		}
	}

	return err
}

// readEmail builds the email from the field flags, or parses a message from
// the input file or stdin
func readEmail(flags *di.CLIFlags, logger *zap.Logger) (*core.Email, error) {
	if flags.HasFields() {
		return &core.Email{
			From:    flags.Sender,
			Subject: flags.Subject,
			Body:    flags.Body,
			URLs:    flags.URLs,
		}, nil
	}

	var r io.Reader = os.Stdin
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		r = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		logger.Info("Reading email from stdin")
	}

	msg, err := mimeparse.Parse(r)
	if err != nil {
		return nil, err
	}

	email := msg.Email()
	if flags.URLs != "" {
		email.URLs = flags.URLs
	}
	return email, nil
}
