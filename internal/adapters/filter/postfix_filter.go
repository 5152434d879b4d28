package filter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/mimeparse"
	"github.com/mikey/phishing-detector/internal/ports"
)

const defaultSubjectPrefix = "[**PHISHING**] "

// PostfixOptions configures the content filter
type PostfixOptions struct {
	ListenAddress  string
	BlockPhishing  bool
	Explain        bool
	StatusHeader   string
	ScoreHeader    string
	ModelHeader    string
	PostfixAddress string
	PostfixPort    int
	PostfixEnabled bool
	SubjectPrefix  string
	ModifySubject  bool
}

// PostfixFilter implements a Postfix content filter
type PostfixFilter struct {
	service ports.PhishingEvaluator
	logger  *zap.Logger
	opts    PostfixOptions

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(service ports.PhishingEvaluator, logger *zap.Logger, opts PostfixOptions) *PostfixFilter {
	// If subject prefix is not set but modify subject is enabled, use default prefix
	if opts.SubjectPrefix == "" && opts.ModifySubject {
		opts.SubjectPrefix = defaultSubjectPrefix
	}
	if opts.StatusHeader == "" {
		opts.StatusHeader = "X-Phishing-Status"
	}
	if opts.ScoreHeader == "" {
		opts.ScoreHeader = "X-Phishing-Score"
	}
	if opts.ModelHeader == "" {
		opts.ModelHeader = "X-Phishing-Model"
	}

	return &PostfixFilter{
		service: service,
		logger:  logger,
		opts:    opts,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ln, err := net.Listen("tcp", f.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddress, err)
	}

	server := smtp.NewServer(&smtpBackend{filter: f})
	server.Addr = ln.Addr().String()
	server.Domain = "localhost"
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	server.MaxRecipients = 50

	f.server = server
	f.listener = ln

	f.logger.Info("Postfix filter starting", zap.String("address", server.Addr))

	go func() {
		if err := server.Serve(ln); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound listen address once started
func (f *PostfixFilter) Addr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return ""
	}
	return f.listener.Addr().String()
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail scores an email without going through SMTP
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.PhishingAnalysisResult, error) {
	return f.service.Evaluate(ctx, email, core.EvaluateOptions{
		Explain: f.opts.Explain,
		Source:  "smtp",
	})
}

// rejection is returned to the SMTP client when phishing is blocked
func rejection(score float64) *smtp.SMTPError {
	return &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 7, 1},
		Message:      fmt.Sprintf("Rejected as phishing (score: %.2f)", score),
	}
}

// process scores a raw message and returns it with verdict headers added.
// A non-nil *smtp.SMTPError means the message must be refused.
func (f *PostfixFilter) process(ctx context.Context, sender string, raw []byte) ([]byte, error) {
	parsed, err := mimeparse.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	email := parsed.Email()
	if email.From == "" {
		email.From = sender
	}

	result, analysisErr := f.ProcessEmail(ctx, email)
	if analysisErr != nil {
		f.logger.Error("Failed to analyze email",
			zap.Error(analysisErr),
			zap.String("sender", email.From))

		// Deliver unmodified verdict-wise, but flag the failure
		result = &core.PhishingAnalysisResult{
			Label:         core.LabelLegitimate,
			Probabilities: []float64{1, 0},
			ModelUsed:     "error",
			AnalyzedAt:    time.Now(),
		}
	}

	if result.IsPhishing() && f.opts.BlockPhishing {
		f.logger.Info("Rejecting phishing email",
			zap.String("from", email.From),
			zap.Float64("score", result.Score()),
			zap.String("model", result.ModelUsed))
		return nil, rejection(result.Score())
	}

	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	header := mail.Header{Header: message.Header{Header: h}}

	if result.IsPhishing() && f.opts.ModifySubject && f.opts.SubjectPrefix != "" {
		subject, err := header.Subject()
		if err != nil {
			subject = header.Get("Subject")
		}
		if !strings.HasPrefix(subject, f.opts.SubjectPrefix) {
			header.SetSubject(f.opts.SubjectPrefix + subject)
		}
	}

	// Drop any verdict headers the sender forged, then prepend ours.
	// Add prepends, so the headers are added in reverse display order.
	for _, key := range []string{f.opts.StatusHeader, f.opts.ScoreHeader, f.opts.ModelHeader, "X-Phishing-Analysis-Error"} {
		header.Del(key)
	}
	if analysisErr != nil {
		header.Add("X-Phishing-Analysis-Error", analysisErr.Error())
	}
	header.Add(f.opts.ModelHeader, result.ModelUsed)
	header.Add(f.opts.ScoreHeader, fmt.Sprintf("%.4f", result.Score()))
	header.Add(f.opts.StatusHeader, string(result.Label))

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, header.Header.Header); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	out.Write(body)

	f.logger.Info("Processed email",
		zap.String("from", email.From),
		zap.String("label", string(result.Label)),
		zap.Float64("score", result.Score()),
		zap.String("model", result.ModelUsed))

	return out.Bytes(), nil
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.opts.PostfixAddress, fmt.Sprintf("%d", f.opts.PostfixPort))

	// Get hostname for EHLO
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			// Continue with other recipients even if one fails
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message is already accepted at this point
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data scores the message and reinjects it
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	processed, err := s.filter.process(ctx, s.sender, raw)
	if err != nil {
		if _, ok := err.(*smtp.SMTPError); !ok {
			s.filter.logger.Error("Failed to process email", zap.Error(err), zap.String("sender", s.sender))
		}
		return err
	}

	if !s.filter.opts.PostfixEnabled {
		s.filter.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
		return nil
	}

	if err := s.filter.sendToPostfix(s.sender, s.recipients, processed); err != nil {
		s.filter.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
