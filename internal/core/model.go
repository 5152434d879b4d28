package core

import (
	"time"
)

// Label is the classifier verdict for a message
type Label string

const (
	LabelPhishing   Label = "Phishing"
	LabelLegitimate Label = "Legitimate"
)

// Email represents an email message submitted for phishing analysis
type Email struct {
	From    string
	Subject string
	Body    string
	// URLs is the comma-separated list of links found in the message
	URLs    string
}

// Prediction is the raw output of the classifier
type Prediction struct {
	Label Label
	// Probabilities holds [P(legitimate), P(phishing)]
	Probabilities []float64
}

// PhishingScore returns the probability of the phishing class
func (p *Prediction) PhishingScore() float64 {
	if len(p.Probabilities) < 2 {
		return 0
	}
	return p.Probabilities[1]
}

// PhishingAnalysisResult represents the result of phishing analysis
type PhishingAnalysisResult struct {
	Label         Label
	Probabilities []float64
	Explanation   string
	AnalyzedAt    time.Time
	ModelUsed     string
	ProcessingID  string
}

// IsPhishing reports whether the verdict is phishing
func (r *PhishingAnalysisResult) IsPhishing() bool {
	return r.Label == LabelPhishing
}

// Score returns the phishing probability
func (r *PhishingAnalysisResult) Score() float64 {
	if len(r.Probabilities) < 2 {
		return 0
	}
	return r.Probabilities[1]
}

// CacheEntry is a cached verdict keyed by message fingerprint
type CacheEntry struct {
	Fingerprint string
	Label       Label
	Score       float64
	LastSeen    time.Time
	ExpiresAt   time.Time
}

// Credential is the OAuth2 bearer credential supplied by the caller
type Credential struct {
	AccessToken  string
	TokenType    string
	ClientID     string
	ClientSecret string
	// Expiry is zero when the caller did not supply one
	Expiry time.Time
}

// Valid reports whether the credential carries a token that has not expired
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.Expiry.IsZero() || now.Before(c.Expiry)
}

// ListOptions are the optional filters for listing mailbox messages
type ListOptions struct {
	MaxResults       int64
	PageToken        string
	Query            string
	LabelIDs         []string
	IncludeSpamTrash *bool
}

// MessageSummary identifies a message in a listing
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// MessageList is one page of a mailbox listing
type MessageList struct {
	Messages           []MessageSummary `json:"messages"`
	NextPageToken      string           `json:"nextPageToken,omitempty"`
	ResultSizeEstimate int64            `json:"resultSizeEstimate"`
}

// IDs returns the message ids of the listing in order
func (l *MessageList) IDs() []string {
	ids := make([]string, 0, len(l.Messages))
	for _, m := range l.Messages {
		ids = append(ids, m.ID)
	}
	return ids
}

// MessageRecord is a fetched message reduced to the fields the classifier uses
type MessageRecord struct {
	ID          string   `json:"id"`
	Subject     string   `json:"subject"`
	SenderName  string   `json:"sender_name"`
	SenderEmail string   `json:"sender_email"`
	Body        string   `json:"body"`
	URLs        []string `json:"urls"`
}
