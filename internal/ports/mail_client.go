package ports

import (
	"context"

	"github.com/mikey/phishing-detector/internal/core"
)

// MailClient reads messages from a user's mailbox on behalf of a bearer credential
type MailClient interface {
	// ListMessages returns one page of message summaries
	ListMessages(ctx context.Context, cred *core.Credential, userID string, opts core.ListOptions) (*core.MessageList, error)

	// FetchMessages retrieves and decodes each message in ids, in order.
	// The first failure aborts the batch.
	FetchMessages(ctx context.Context, cred *core.Credential, userID string, ids []string) ([]core.MessageRecord, error)
}
