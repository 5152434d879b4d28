package httpapi

import (
	"context"
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
	"github.com/mikey/phishing-detector/internal/inference"
	"github.com/mikey/phishing-detector/internal/metrics"
	"github.com/mikey/phishing-detector/internal/ports"
)

type fakeMail struct {
	list      *core.MessageList
	records   []core.MessageRecord
	listErr   error
	fetchErr  error
	listCalls int
	gotCred   *core.Credential
	gotUser   string
	gotOpts   core.ListOptions
	gotIDs    []string
}

func (f *fakeMail) ListMessages(ctx context.Context, cred *core.Credential, userID string, opts core.ListOptions) (*core.MessageList, error) {
	f.listCalls++
	f.gotCred, f.gotUser, f.gotOpts = cred, userID, opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeMail) FetchMessages(ctx context.Context, cred *core.Credential, userID string, ids []string) ([]core.MessageRecord, error) {
	f.gotIDs = ids
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.records, nil
}

type fakeEvaluator struct {
	result *core.PhishingAnalysisResult
	err    error
	panic  bool
	got    *core.Email
	opts   core.EvaluateOptions
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, email *core.Email, opts core.EvaluateOptions) (*core.PhishingAnalysisResult, error) {
	if f.panic {
		panic("boom")
	}
	f.got, f.opts = email, opts
	return f.result, f.err
}

func newTestRouter(eval ports.PhishingEvaluator, mail *fakeMail) http.Handler {
	return NewRouter(NewHandler(eval, mail, zap.NewNop()), metrics.NewRecorder(), zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	mail := &fakeMail{}
	eval := &fakeEvaluator{}
	rec, out := do(t, newTestRouter(eval, mail), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"status": "healthy", "service": "Gmail Messages API"}, out)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 0, mail.listCalls)
	assert.Nil(t, eval.got)
}

func TestCheckEmail_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body field", `{"body":"","subject":"x","sender":"y"}`, "Body, subject, and sender are required"},
		{"missing sender", `{"body":"b","subject":"x"}`, "Body, subject, and sender are required"},
		{"malformed json", `{"body":`, "Invalid input data"},
		{"empty object", `{}`, "Invalid input data"},
		{"array", `["body"]`, "Invalid input data"},
		{"no body", ``, "Invalid input data"},
		{"non-string field", `{"body":5,"subject":"x","sender":"y"}`, "Invalid input data"},
	}

	for _, path := range []string{"/check_emails", "/check-phishing"} {
		for _, tt := range tests {
			t.Run(path+" "+tt.name, func(t *testing.T) {
				eval := &fakeEvaluator{}
				rec, out := do(t, newTestRouter(eval, &fakeMail{}), http.MethodPost, path, tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, tt.want, out["error"])
				assert.Nil(t, eval.got)
			})
		}
	}
}

func TestCheckEmail_Success(t *testing.T) {
	eval := &fakeEvaluator{result: &core.PhishingAnalysisResult{
		Label:         core.LabelPhishing,
		Probabilities: []float64{0.1, 0.9},
		ProcessingID:  "pid",
	}}
	rec, out := do(t, newTestRouter(eval, &fakeMail{}), http.MethodPost, "/check_emails",
		`{"body":"verify now","subject":"Urgent","sender":"x@evil.com","urls":["http://a","http://b"],"explain":true}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Phishing", out["prediction"])
	assert.Equal(t, []interface{}{0.1, 0.9}, out["probability"])
	assert.Equal(t, "pid", out["processing_id"])
	assert.NotContains(t, out, "explanation")

	require.NotNil(t, eval.got)
	assert.Equal(t, "http://a,http://b", eval.got.URLs)
	assert.Equal(t, "x@evil.com", eval.got.From)
	assert.True(t, eval.opts.Explain)
	assert.Equal(t, "http", eval.opts.Source)
}

func TestCheckEmail_URLsAsString(t *testing.T) {
	eval := &fakeEvaluator{result: &core.PhishingAnalysisResult{Label: core.LabelLegitimate, Probabilities: []float64{1, 0}}}
	rec, _ := do(t, newTestRouter(eval, &fakeMail{}), http.MethodPost, "/check-phishing",
		`{"body":"b","subject":"s","sender":"a@b.com","urls":"http://a,http://b"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://a,http://b", eval.got.URLs)
}

func TestCheckEmail_ServerError(t *testing.T) {
	eval := &fakeEvaluator{err: errors.New("feature shape mismatch")}
	rec, out := do(t, newTestRouter(eval, &fakeMail{}), http.MethodPost, "/check_emails",
		`{"body":"b","subject":"s","sender":"a@b.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server error: feature shape mismatch", out["error"])
}

func TestCheckEmail_PanicRecovered(t *testing.T) {
	eval := &fakeEvaluator{panic: true}
	rec, out := do(t, newTestRouter(eval, &fakeMail{}), http.MethodPost, "/check_emails",
		`{"body":"b","subject":"s","sender":"a@b.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server error: boom", out["error"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckEmail_EndToEnd(t *testing.T) {
	pipeline, err := inference.LoadPipeline(inference.ModelFiles{
		Dir:               "../../inference/testdata",
		Classifier:        "phishing_model.json",
		BodyVectorizer:    "body_vectorizer.json",
		SubjectVectorizer: "subject_vectorizer.json",
		SenderEncoder:     "sender_encoder.json",
	})
	require.NoError(t, err)
	service := core.NewPhishingService(pipeline, nil, nil, nil, zap.NewNop(), core.ServiceOptions{})

	rec, out := do(t, newTestRouter(service, &fakeMail{}), http.MethodPost, "/check_emails", `{
		"body": "Dear user, your account has been suspended. Please click here to verify.",
		"subject": "Account Suspended Urgently",
		"urls": "http://malicious-site.com/verify,https://phishing.com/login",
		"sender": "unknown@malicious.com"
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Phishing", out["prediction"])
	probs, ok := out["probability"].([]interface{})
	require.True(t, ok)
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, probs[0].(float64)+probs[1].(float64), 1e-9)
}

func TestGetMessages_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no body", ``, "No JSON data provided"},
		{"malformed", `{"token":`, "No JSON data provided"},
		{"empty object", `{}`, "No JSON data provided"},
		{"no token", `{"q":"x"}`, "Token is required"},
		{"empty token", `{"token":{}}`, "Token is required"},
		{"string token", `{"token":"abc"}`, "Token must be a JSON object"},
		{"missing access_token", `{"token":{"token_type":"Bearer"}}`, "Missing required token fields: access_token"},
		{"missing both nested", `{"token":{"token":{"client_id":"c"}}}`, "Missing required token fields: access_token, token_type"},
		{"bad maxResults", `{"token":{"access_token":"a","token_type":"Bearer"},"maxResults":"ten"}`, "Invalid value for maxResults"},
		{"bad expiry", `{"token":{"access_token":"a","token_type":"Bearer","expiry":"soon"}}`, "Invalid value for expiry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail := &fakeMail{}
			rec, out := do(t, newTestRouter(&fakeEvaluator{}, mail), http.MethodPost, "/get-messages/", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, out["error"])
			assert.Equal(t, 0, mail.listCalls)
		})
	}
}

func TestGetMessages_Success(t *testing.T) {
	mail := &fakeMail{
		list: &core.MessageList{
			Messages:           []core.MessageSummary{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t2"}},
			NextPageToken:      "next",
			ResultSizeEstimate: 2,
		},
		records: []core.MessageRecord{
			{ID: "m1", Subject: "Hi", SenderEmail: "a@b.com", Body: "hello", URLs: []string{}},
			{ID: "m2", Subject: "Yo", SenderEmail: "c@d.com", Body: "see https://x.io", URLs: []string{"https://x.io"}},
		},
	}

	rec, out := do(t, newTestRouter(&fakeEvaluator{}, mail), http.MethodPost, "/get-messages/", `{
		"token": {"token": {"access_token": "tok", "token_type": "Bearer", "client_id": "cid", "userId": "user@example.com"}},
		"maxresults": 2,
		"labelIds": "INBOX",
		"q": "is:unread",
		"includeSpamTrash": false
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	messages, ok := out["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
	assert.Equal(t, "next", out["nextPageToken"])
	assert.EqualValues(t, 2, out["resultSizeEstimate"])

	first := messages[0].(map[string]interface{})
	assert.Equal(t, "m1", first["id"])
	assert.Equal(t, "a@b.com", first["sender_email"])
	assert.Equal(t, []interface{}{}, first["urls"])

	assert.Equal(t, "tok", mail.gotCred.AccessToken)
	assert.Equal(t, "cid", mail.gotCred.ClientID)
	assert.Equal(t, "user@example.com", mail.gotUser)
	assert.EqualValues(t, 2, mail.gotOpts.MaxResults)
	assert.Equal(t, []string{"INBOX"}, mail.gotOpts.LabelIDs)
	assert.Equal(t, "is:unread", mail.gotOpts.Query)
	require.NotNil(t, mail.gotOpts.IncludeSpamTrash)
	assert.False(t, *mail.gotOpts.IncludeSpamTrash)
	assert.Equal(t, []string{"m1", "m2"}, mail.gotIDs)
}

func TestGetMessages_EmptyListing(t *testing.T) {
	mail := &fakeMail{list: &core.MessageList{Messages: []core.MessageSummary{}}}

	rec, out := do(t, newTestRouter(&fakeEvaluator{}, mail), http.MethodPost, "/get-messages",
		`{"token":{"access_token":"tok","token_type":"Bearer"},"userId":"body-user"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, out["messages"])
	assert.Equal(t, "body-user", mail.gotUser)
	assert.Nil(t, mail.gotIDs)
}

func TestGetMessages_MailErrors(t *testing.T) {
	expired := core.NewMailError(core.ErrInvalidCredential, "%s", core.InvalidCredentialMessage)

	t.Run("list", func(t *testing.T) {
		mail := &fakeMail{listErr: expired}
		rec, out := do(t, newTestRouter(&fakeEvaluator{}, mail), http.MethodPost, "/get-messages/",
			`{"token":{"access_token":"","token_type":"Bearer"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, core.InvalidCredentialMessage, out["error"])
		assert.Equal(t, "me", mail.gotUser)
	})

	t.Run("fetch", func(t *testing.T) {
		mail := &fakeMail{
			list:     &core.MessageList{Messages: []core.MessageSummary{{ID: "m1"}}},
			fetchErr: core.NewMailError(errors.New("404"), "Gmail API error: %s", "not found"),
		}
		rec, out := do(t, newTestRouter(&fakeEvaluator{}, mail), http.MethodPost, "/get-messages/",
			`{"token":{"access_token":"tok","token_type":"Bearer"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Gmail API error: not found", out["error"])
	})

	t.Run("unexpected", func(t *testing.T) {
		mail := &fakeMail{listErr: errors.New("kaboom")}
		rec, out := do(t, newTestRouter(&fakeEvaluator{}, mail), http.MethodPost, "/get-messages/",
			`{"token":{"access_token":"tok","token_type":"Bearer"}}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Server error: kaboom", out["error"])
	})
}

func TestCredentialExpiry(t *testing.T) {
	cred, err := credentialFromToken(map[string]interface{}{
		"access_token": "a",
		"token_type":   "Bearer",
		"expiry":       "2030-01-02T03:04:05Z",
	})
	require.NoError(t, err)
	assert.True(t, cred.Expiry.Equal(time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)))

	cred, err = credentialFromToken(map[string]interface{}{
		"access_token": "a",
		"token_type":   "Bearer",
		"expires_at":   json.Number("1700000000"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), cred.Expiry.Unix())
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(&fakeEvaluator{}, &fakeMail{})

	req := httptest.NewRequest(http.MethodOptions, "/check_emails", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(&fakeEvaluator{}, &fakeMail{})
	do(t, h, http.MethodGet, "/health", "")

	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `phishing_detector_http_responses_total{code="200",route="/health"} 1`)
}
