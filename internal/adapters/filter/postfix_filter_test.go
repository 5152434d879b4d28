package filter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

const rawMessage = "From: Support <support@paypa1.example>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: Verify your account\r\n" +
	"X-Phishing-Status: Legitimate\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Click https://paypa1.example/login now\r\n"

type stubEvaluator struct {
	mu     sync.Mutex
	label  core.Label
	score  float64
	err    error
	emails []*core.Email
	opts   []core.EvaluateOptions
}

func (s *stubEvaluator) Evaluate(ctx context.Context, email *core.Email, opts core.EvaluateOptions) (*core.PhishingAnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, email)
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return nil, s.err
	}
	return &core.PhishingAnalysisResult{
		Label:         s.label,
		Probabilities: []float64{1 - s.score, s.score},
		ModelUsed:     "classifier",
		AnalyzedAt:    time.Now(),
	}, nil
}

func (s *stubEvaluator) last() *core.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.emails) == 0 {
		return nil
	}
	return s.emails[len(s.emails)-1]
}

func TestProcessAddsVerdictHeaders(t *testing.T) {
	eval := &stubEvaluator{label: core.LabelPhishing, score: 0.91}
	f := NewPostfixFilter(eval, zap.NewNop(), PostfixOptions{})

	out, err := f.process(context.Background(), "bounce@paypa1.example", []byte(rawMessage))
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "X-Phishing-Status: Phishing\r\n"), text)
	assert.Contains(t, text, "X-Phishing-Score: 0.9100\r\n")
	assert.Contains(t, text, "X-Phishing-Model: classifier\r\n")
	assert.Equal(t, 1, strings.Count(text, "X-Phishing-Status:"), "forged verdict header must be replaced")
	assert.Contains(t, text, "Subject: Verify your account\r\n")
	assert.True(t, strings.HasSuffix(text, "Click https://paypa1.example/login now\r\n"))

	email := eval.last()
	require.NotNil(t, email)
	assert.Equal(t, "support@paypa1.example", email.From)
	assert.Equal(t, "Verify your account", email.Subject)
	assert.Equal(t, "https://paypa1.example/login", email.URLs)
	assert.Equal(t, "smtp", eval.opts[0].Source)
}

func TestProcessModifiesSubject(t *testing.T) {
	eval := &stubEvaluator{label: core.LabelPhishing, score: 0.8}
	f := NewPostfixFilter(eval, zap.NewNop(), PostfixOptions{ModifySubject: true})

	out, err := f.process(context.Background(), "", []byte(rawMessage))
	require.NoError(t, err)
	assert.Contains(t, string(out), "Subject: [**PHISHING**] Verify your account\r\n")

	// Already tagged messages keep a single prefix
	again, err := f.process(context.Background(), "", out)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(again), "[**PHISHING**]"))
}

func TestProcessLeavesLegitimateSubject(t *testing.T) {
	eval := &stubEvaluator{label: core.LabelLegitimate, score: 0.1}
	f := NewPostfixFilter(eval, zap.NewNop(), PostfixOptions{ModifySubject: true, BlockPhishing: true})

	out, err := f.process(context.Background(), "", []byte(rawMessage))
	require.NoError(t, err)
	assert.Contains(t, string(out), "Subject: Verify your account\r\n")
	assert.Contains(t, string(out), "X-Phishing-Status: Legitimate\r\n")
}

func TestProcessBlocksPhishing(t *testing.T) {
	eval := &stubEvaluator{label: core.LabelPhishing, score: 0.97}
	f := NewPostfixFilter(eval, zap.NewNop(), PostfixOptions{BlockPhishing: true})

	out, err := f.process(context.Background(), "", []byte(rawMessage))
	assert.Nil(t, out)

	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr))
	assert.Equal(t, 550, smtpErr.Code)
	assert.Equal(t, "Rejected as phishing (score: 0.97)", smtpErr.Message)
}

func TestProcessAnalysisFailure(t *testing.T) {
	eval := &stubEvaluator{err: errors.New("model offline")}
	f := NewPostfixFilter(eval, zap.NewNop(), PostfixOptions{BlockPhishing: true})

	out, err := f.process(context.Background(), "", []byte(rawMessage))
	require.NoError(t, err)
	assert.Contains(t, string(out), "X-Phishing-Status: Legitimate\r\n")
	assert.Contains(t, string(out), "X-Phishing-Model: error\r\n")
	assert.Contains(t, string(out), "X-Phishing-Analysis-Error: model offline\r\n")
}

func TestProcessEnvelopeSenderFallback(t *testing.T) {
	eval := &stubEvaluator{label: core.LabelLegitimate}
	f := NewPostfixFilter(eval, zap.NewNop(), PostfixOptions{})

	raw := "Subject: hi\r\n\r\nhello\r\n"
	_, err := f.process(context.Background(), "envelope@example.com", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "envelope@example.com", eval.last().From)
}

// captureBackend is a downstream MTA that records what it receives
type captureBackend struct {
	mu       sync.Mutex
	received [][]byte
	rcpts    []string
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

func (b *captureBackend) messages() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.received...)
}

type captureSession struct {
	backend *captureBackend
}

func (s *captureSession) Reset()        {}
func (s *captureSession) Logout() error { return nil }

func (s *captureSession) Mail(string, *smtp.MailOptions) error { return nil }

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.rcpts = append(s.backend.rcpts, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.received = append(s.backend.received, data)
	return nil
}

func startDownstream(t *testing.T) (*captureBackend, string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	backend := &captureBackend{}
	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return backend, host, port
}

func startFilter(t *testing.T, eval *stubEvaluator, opts PostfixOptions) string {
	t.Helper()

	opts.ListenAddress = "127.0.0.1:0"
	f := NewPostfixFilter(eval, zap.NewNop(), opts)
	require.NoError(t, f.Start())
	t.Cleanup(func() { _ = f.Stop() })

	addr := f.Addr()
	require.NotEmpty(t, addr)
	return addr
}

// sendRaw delivers a message over a plain SMTP session
func sendRaw(t *testing.T, addr, from string, to []string, raw string) error {
	t.Helper()

	c, err := smtp.Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	if err := c.SendMail(from, to, strings.NewReader(raw)); err != nil {
		return err
	}
	return c.Quit()
}

func TestFilterReinjectsScoredMessage(t *testing.T) {
	downstream, host, port := startDownstream(t)
	eval := &stubEvaluator{label: core.LabelPhishing, score: 0.75}
	addr := startFilter(t, eval, PostfixOptions{
		PostfixEnabled: true,
		PostfixAddress: host,
		PostfixPort:    port,
		ModifySubject:  true,
	})

	err := sendRaw(t, addr, "support@paypa1.example", []string{"victim@example.com"}, rawMessage)
	require.NoError(t, err)

	got := downstream.messages()
	require.Len(t, got, 1)
	assert.True(t, bytes.HasPrefix(got[0], []byte("X-Phishing-Status: Phishing\r\n")))
	assert.Contains(t, string(got[0]), "Subject: [**PHISHING**] Verify your account")

	downstream.mu.Lock()
	assert.Equal(t, []string{"victim@example.com"}, downstream.rcpts)
	downstream.mu.Unlock()
}

func TestFilterRejectsBlockedMessage(t *testing.T) {
	downstream, host, port := startDownstream(t)
	eval := &stubEvaluator{label: core.LabelPhishing, score: 0.99}
	addr := startFilter(t, eval, PostfixOptions{
		PostfixEnabled: true,
		PostfixAddress: host,
		PostfixPort:    port,
		BlockPhishing:  true,
	})

	err := sendRaw(t, addr, "support@paypa1.example", []string{"victim@example.com"}, rawMessage)

	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)
	assert.Contains(t, smtpErr.Message, "Rejected as phishing (score: 0.99)")
	assert.Empty(t, downstream.messages())
}
