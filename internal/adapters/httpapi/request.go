package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/phishing-detector/internal/core"
)

const maxRequestBytes = 10 << 20

var requiredTokenFields = []string{"access_token", "token_type"}

// errBadInput marks a request the client must fix
type errBadInput struct {
	msg string
}

func (e *errBadInput) Error() string { return e.msg }

func badInput(format string, args ...interface{}) error {
	return &errBadInput{msg: fmt.Sprintf(format, args...)}
}

// decodeObject reads the request body as a JSON object. ok is false when the
// body is empty, malformed or not an object.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]interface{})
	return obj, ok
}

// lookup returns data[key], falling back to its lower-cased spelling
func lookup(data map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := data[key]; ok && v != nil {
		return v, true
	}
	if v, ok := data[strings.ToLower(key)]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// truthy follows JSON-ish truthiness: null, false, 0, "" and empty
// containers are false
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	}
	return true
}

// tokenFromRequest extracts the credential object, flattening one level of
// nesting under "token"
func tokenFromRequest(data map[string]interface{}) (map[string]interface{}, error) {
	raw := data["token"]
	if !truthy(raw) {
		return nil, badInput("Token is required")
	}

	if obj, ok := raw.(map[string]interface{}); ok {
		if nested, ok := obj["token"].(map[string]interface{}); ok {
			raw = nested
		}
	}

	token, ok := raw.(map[string]interface{})
	if !ok {
		return nil, badInput("Token must be a JSON object")
	}

	var missing []string
	for _, field := range requiredTokenFields {
		if _, ok := token[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, badInput("Missing required token fields: %s", strings.Join(missing, ", "))
	}

	return token, nil
}

// credentialFromToken maps the token object onto a Credential. Expiry is read
// from "expiry" (RFC 3339) or "expires_at" (RFC 3339 or unix seconds).
func credentialFromToken(token map[string]interface{}) (*core.Credential, error) {
	cred := &core.Credential{
		AccessToken:  stringValue(token["access_token"]),
		TokenType:    stringValue(token["token_type"]),
		ClientID:     stringValue(token["client_id"]),
		ClientSecret: stringValue(token["client_secret"]),
	}

	for _, key := range []string{"expiry", "expires_at"} {
		v, ok := token[key]
		if !ok || v == nil {
			continue
		}
		expiry, err := parseExpiry(v)
		if err != nil {
			return nil, badInput("Invalid value for %s", key)
		}
		cred.Expiry = expiry
		break
	}

	return cred, nil
}

func parseExpiry(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, nil
		}
		// Python's datetime.isoformat() omits the zone
		if ts, err := time.Parse("2006-01-02T15:04:05.999999", t); err == nil {
			return ts, nil
		}
		secs, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return time.Time{}, err
		}
		return unixFloat(secs), nil
	case json.Number:
		secs, err := t.Float64()
		if err != nil {
			return time.Time{}, err
		}
		return unixFloat(secs), nil
	}
	return time.Time{}, errors.New("unsupported expiry type")
}

func unixFloat(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9))
}

// listOptionsFromRequest collects the optional listing filters
func listOptionsFromRequest(data map[string]interface{}) (core.ListOptions, error) {
	var opts core.ListOptions

	if v, ok := lookup(data, "maxResults"); ok {
		n, err := intValue(v)
		if err != nil || n < 0 {
			return opts, badInput("Invalid value for maxResults")
		}
		opts.MaxResults = n
	}

	if v, ok := lookup(data, "pageToken"); ok {
		s, isString := v.(string)
		if !isString {
			return opts, badInput("Invalid value for pageToken")
		}
		opts.PageToken = s
	}

	if v, ok := lookup(data, "q"); ok {
		s, isString := v.(string)
		if !isString {
			return opts, badInput("Invalid value for q")
		}
		opts.Query = s
	}

	if v, ok := lookup(data, "labelIds"); ok {
		labels, err := stringList(v)
		if err != nil {
			return opts, badInput("Invalid value for labelIds")
		}
		opts.LabelIDs = labels
	}

	if v, ok := lookup(data, "includeSpamTrash"); ok {
		b, err := boolValue(v)
		if err != nil {
			return opts, badInput("Invalid value for includeSpamTrash")
		}
		opts.IncludeSpamTrash = &b
	}

	return opts, nil
}

// userIDFromRequest prefers the request body, then the token object
func userIDFromRequest(data, token map[string]interface{}) string {
	for _, src := range []map[string]interface{}{data, token} {
		if s, ok := src["userId"].(string); ok && s != "" {
			return s
		}
	}
	return "me"
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return ""
}

func intValue(v interface{}) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return 0, errors.New("not an integer")
}

func boolValue(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	}
	return false, errors.New("not a boolean")
}

// stringList accepts a single string or a list of strings
func stringList(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New("list item is not a string")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errors.New("not a string or list")
}

// evaluationRequest is the validated body of a phishing check
type evaluationRequest struct {
	Body    string
	Subject string
	Sender  string
	URLs    string
	Explain bool
}

func evaluationFromRequest(data map[string]interface{}) (*evaluationRequest, error) {
	if len(data) == 0 {
		return nil, badInput("Invalid input data")
	}

	req := &evaluationRequest{}
	fields := []struct {
		key string
		dst *string
	}{
		{"body", &req.Body},
		{"subject", &req.Subject},
		{"sender", &req.Sender},
	}
	for _, f := range fields {
		v := data[f.key]
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, badInput("Invalid input data")
		}
		*f.dst = s
	}

	if req.Body == "" || req.Subject == "" || req.Sender == "" {
		return nil, badInput("Body, subject, and sender are required")
	}

	if v := data["urls"]; v != nil {
		urls, err := stringList(v)
		if err != nil {
			return nil, badInput("Invalid input data")
		}
		req.URLs = strings.Join(urls, ",")
	}

	if v := data["explain"]; v != nil {
		b, err := boolValue(v)
		if err != nil {
			return nil, badInput("Invalid input data")
		}
		req.Explain = b
	}

	return req, nil
}
