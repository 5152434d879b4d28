package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/metrics"
)

// Client reads a mailbox through the Gmail REST API using the caller's bearer token
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	metrics    *metrics.Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithEndpoint overrides the Gmail API base URL
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithTimeout bounds every API call; zero disables the bound
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithHTTPClient sets the base transport the bearer token is layered on
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithMetrics records fetch counts and failures
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = recorder }
}

// NewClient creates a new Gmail client
func NewClient(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMessages returns one page of message summaries for userID
func (c *Client) ListMessages(ctx context.Context, cred *core.Credential, userID string, opts core.ListOptions) (*core.MessageList, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, c.fail("list", err)
	}

	call := svc.Users.Messages.List(userID).Context(ctx)
	if opts.MaxResults > 0 {
		call = call.MaxResults(opts.MaxResults)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}
	if len(opts.LabelIDs) > 0 {
		call = call.LabelIds(opts.LabelIDs...)
	}
	if opts.IncludeSpamTrash != nil {
		call = call.IncludeSpamTrash(*opts.IncludeSpamTrash)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, c.fail("list", err)
	}

	list := &core.MessageList{
		Messages:           make([]core.MessageSummary, 0, len(resp.Messages)),
		NextPageToken:      resp.NextPageToken,
		ResultSizeEstimate: resp.ResultSizeEstimate,
	}
	for _, m := range resp.Messages {
		if m == nil {
			continue
		}
		list.Messages = append(list.Messages, core.MessageSummary{ID: m.Id, ThreadID: m.ThreadId})
	}

	c.logger.Debug("Listed mailbox messages",
		zap.String("user_id", userID),
		zap.Int("count", len(list.Messages)),
		zap.Int64("result_size_estimate", list.ResultSizeEstimate))

	return list, nil
}

// FetchMessages retrieves each message in full format and decodes it.
// The first failure aborts the whole batch.
func (c *Client) FetchMessages(ctx context.Context, cred *core.Credential, userID string, ids []string) ([]core.MessageRecord, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, c.fail("get", err)
	}

	records := make([]core.MessageRecord, 0, len(ids))
	for _, id := range ids {
		msg, err := svc.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, c.fail("get", err)
		}

		record, err := ParseMessage(id, msg)
		if err != nil {
			return nil, c.fail("get", err)
		}
		records = append(records, *record)
	}

	c.metrics.MessagesFetched(len(records))
	c.logger.Debug("Fetched mailbox messages",
		zap.String("user_id", userID),
		zap.Int("count", len(records)))

	return records, nil
}

func (c *Client) service(ctx context.Context, cred *core.Credential) (*gmailapi.Service, error) {
	if !cred.Valid(c.now()) {
		return nil, core.ErrInvalidCredential
	}

	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
	})

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, source))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// fail maps err onto the client-facing MailError taxonomy
func (c *Client) fail(operation string, err error) error {
	c.metrics.MailError(operation)

	if errors.Is(err, core.ErrInvalidCredential) {
		return core.NewMailError(err, "%s", core.InvalidCredentialMessage)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		c.logger.Error("Gmail API call failed",
			zap.String("operation", operation),
			zap.Int("code", apiErr.Code),
			zap.Error(err))
		return core.NewMailError(err, "Gmail API error: %s", apiErr.Error())
	}

	c.logger.Error("Mail retrieval failed", zap.String("operation", operation), zap.Error(err))
	return core.NewMailError(err, "An error occurred : %s", err.Error())
}
