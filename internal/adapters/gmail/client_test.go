package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

type fakeGmail struct {
	t        *testing.T
	messages map[string]map[string]interface{}
	listed   []map[string]string
	queries  []string
	gets     int
	failGet  string
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer good-token" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]interface{}{"code": 401, "message": "Invalid Credentials"},
		})
		return
	}

	const prefix = "/gmail/v1/users/me/messages"
	switch {
	case r.URL.Path == prefix:
		f.queries = append(f.queries, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"messages":           f.listed,
			"nextPageToken":      "page-2",
			"resultSizeEstimate": len(f.listed),
		})
	case strings.HasPrefix(r.URL.Path, prefix+"/"):
		f.gets++
		id := strings.TrimPrefix(r.URL.Path, prefix+"/")
		assert.Equal(f.t, "full", r.URL.Query().Get("format"))
		if id == f.failGet {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"error": map[string]interface{}{"code": 404, "message": "Requested entity was not found."},
			})
			return
		}
		msg, ok := f.messages[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newFakeGmail(t *testing.T) (*fakeGmail, *Client) {
	fake := &fakeGmail{
		t: t,
		listed: []map[string]string{
			{"id": "m1", "threadId": "t1"},
			{"id": "m2", "threadId": "t2"},
		},
		messages: map[string]map[string]interface{}{
			"m1": {
				"id": "m1",
				"payload": map[string]interface{}{
					"mimeType": "multipart/alternative",
					"headers": []map[string]string{
						{"name": "Subject", "value": "Verify your account"},
						{"name": "From", "value": `"Security Team" <alert@bank-secure.com>`},
					},
					"parts": []map[string]interface{}{
						{"mimeType": "text/plain", "body": map[string]string{"data": b64("Click https://evil.example/login now")}},
						{"mimeType": "text/html", "body": map[string]string{"data": b64("<p>ignored</p>")}},
					},
				},
			},
			"m2": {
				"id": "m2",
				"payload": map[string]interface{}{
					"mimeType": "text/plain",
					"headers": []map[string]string{
						{"name": "subject", "value": "Lunch"},
						{"name": "from", "value": "bob@company.com"},
					},
					"body": map[string]string{"data": b64("See you at noon")},
				},
			},
		},
	}

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := NewClient(zap.NewNop(), WithEndpoint(srv.URL+"/"), WithHTTPClient(srv.Client()))
	return fake, client
}

func goodCredential() *core.Credential {
	return &core.Credential{AccessToken: "good-token", TokenType: "Bearer"}
}

func TestListMessages(t *testing.T) {
	fake, client := newFakeGmail(t)

	include := true
	list, err := client.ListMessages(context.Background(), goodCredential(), "me", core.ListOptions{
		MaxResults:       5,
		Query:            "is:unread",
		LabelIDs:         []string{"INBOX"},
		IncludeSpamTrash: &include,
	})
	require.NoError(t, err)

	assert.Equal(t, []core.MessageSummary{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t2"}}, list.Messages)
	assert.Equal(t, "page-2", list.NextPageToken)
	assert.EqualValues(t, 2, list.ResultSizeEstimate)
	assert.Equal(t, []string{"m1", "m2"}, list.IDs())

	require.Len(t, fake.queries, 1)
	assert.Contains(t, fake.queries[0], "maxResults=5")
	assert.Contains(t, fake.queries[0], "q=is%3Aunread")
	assert.Contains(t, fake.queries[0], "labelIds=INBOX")
	assert.Contains(t, fake.queries[0], "includeSpamTrash=true")
}

func TestListMessages_Empty(t *testing.T) {
	fake, client := newFakeGmail(t)
	fake.listed = nil

	list, err := client.ListMessages(context.Background(), goodCredential(), "me", core.ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, list.Messages)
	assert.Empty(t, list.Messages)
}

func TestFetchMessages(t *testing.T) {
	_, client := newFakeGmail(t)

	records, err := client.FetchMessages(context.Background(), goodCredential(), "me", []string{"m1", "m2"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, core.MessageRecord{
		ID:          "m1",
		Subject:     "Verify your account",
		SenderName:  "Security Team",
		SenderEmail: "alert@bank-secure.com",
		Body:        "Click https://evil.example/login now",
		URLs:        []string{"https://evil.example/login"},
	}, records[0])

	assert.Equal(t, "Lunch", records[1].Subject)
	assert.Equal(t, "", records[1].SenderName)
	assert.Equal(t, "bob@company.com", records[1].SenderEmail)
	assert.Equal(t, "See you at noon", records[1].Body)
	assert.Empty(t, records[1].URLs)
}

func TestFetchMessages_AbortsOnFirstFailure(t *testing.T) {
	fake, client := newFakeGmail(t)
	fake.failGet = "m1"

	records, err := client.FetchMessages(context.Background(), goodCredential(), "me", []string{"m1", "m2"})
	assert.Nil(t, records)
	require.Error(t, err)

	var mailErr *core.MailError
	require.True(t, errors.As(err, &mailErr))
	assert.True(t, strings.HasPrefix(mailErr.Message, "Gmail API error: "), mailErr.Message)
	assert.Equal(t, 1, fake.gets)
}

func TestInvalidCredential(t *testing.T) {
	fake, client := newFakeGmail(t)

	for name, cred := range map[string]*core.Credential{
		"empty token": {TokenType: "Bearer"},
		"expired":     {AccessToken: "good-token", TokenType: "Bearer", Expiry: time.Now().Add(-time.Hour)},
		"nil":         nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := client.ListMessages(context.Background(), cred, "me", core.ListOptions{})
			var mailErr *core.MailError
			require.True(t, errors.As(err, &mailErr))
			assert.Equal(t, core.InvalidCredentialMessage, mailErr.Message)
			assert.ErrorIs(t, err, core.ErrInvalidCredential)
		})
	}
	assert.Empty(t, fake.queries)
}

func TestProviderRejection(t *testing.T) {
	_, client := newFakeGmail(t)

	_, err := client.ListMessages(context.Background(), &core.Credential{AccessToken: "revoked", TokenType: "Bearer"}, "me", core.ListOptions{})
	var mailErr *core.MailError
	require.True(t, errors.As(err, &mailErr))
	assert.True(t, strings.HasPrefix(mailErr.Message, "Gmail API error: "), mailErr.Message)
	assert.Contains(t, mailErr.Message, "Invalid Credentials")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/"
	srv.Close()

	client := NewClient(zap.NewNop(), WithEndpoint(endpoint))
	_, err := client.ListMessages(context.Background(), goodCredential(), "me", core.ListOptions{})

	var mailErr *core.MailError
	require.True(t, errors.As(err, &mailErr))
	assert.True(t, strings.HasPrefix(mailErr.Message, "An error occurred : "), mailErr.Message)
}
