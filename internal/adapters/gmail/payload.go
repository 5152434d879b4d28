package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/features"
	"github.com/mikey/phishing-detector/internal/utils"
)

// ParseMessage reduces a message fetched with format=full to the fields the
// classifier reads.
func ParseMessage(id string, msg *gmailapi.Message) (*core.MessageRecord, error) {
	record := &core.MessageRecord{ID: id, URLs: []string{}}
	if msg == nil || msg.Payload == nil {
		return record, nil
	}
	payload := msg.Payload

	for _, header := range payload.Headers {
		if header == nil {
			continue
		}
		switch strings.ToLower(header.Name) {
		case "subject":
			record.Subject = header.Value
		case "from":
			record.SenderName, record.SenderEmail = ParseSender(header.Value)
		}
	}

	var raw string
	if len(payload.Parts) > 0 {
		raw = findBodyData(payload.Parts)
	} else if payload.Body != nil {
		raw = payload.Body.Data
	}

	if raw != "" {
		decoded, err := DecodeBody(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode body of message %s: %w", id, err)
		}
		record.Body = utils.ReplaceInvalidUTF8(string(decoded))
	}

	record.URLs = features.ExtractURLs(record.Body)
	return record, nil
}

// findBodyData returns the data of the first text/plain or text/html part
// carrying inline data, searching depth-first in document order.
func findBodyData(parts []*gmailapi.MessagePart) string {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.MimeType == "text/plain" || part.MimeType == "text/html" {
			if part.Body != nil && part.Body.Data != "" {
				return part.Body.Data
			}
		}
		if len(part.Parts) > 0 {
			if data := findBodyData(part.Parts); data != "" {
				return data
			}
		}
	}
	return ""
}

// ParseSender splits a From header value into display name and address.
// `"Name" <addr>` yields both; anything else is taken as a bare address.
func ParseSender(value string) (name, email string) {
	open := strings.Index(value, "<")
	if open >= 0 && strings.Contains(value, ">") {
		name = strings.Trim(strings.TrimSpace(value[:open]), `"`)
		rest := value[open+1:]
		if end := strings.Index(rest, ">"); end >= 0 {
			rest = rest[:end]
		}
		return name, strings.TrimSpace(rest)
	}
	return "", strings.TrimSpace(value)
}

// DecodeBody decodes Gmail's URL-safe base64 body data. Padding, line breaks
// and the standard alphabet are tolerated.
func DecodeBody(data string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\t', ' ', '=':
			return -1
		case '+':
			return '-'
		case '/':
			return '_'
		}
		return r
	}, data)

	return base64.RawURLEncoding.DecodeString(cleaned)
}
