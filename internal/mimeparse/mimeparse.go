// Package mimeparse reduces raw RFC 5322 messages to the fields the phishing
// classifier reads.
package mimeparse

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/features"
	"github.com/mikey/phishing-detector/internal/utils"
)

// Message is a parsed email
type Message struct {
	Subject     string
	SenderName  string
	SenderEmail string
	Body        string
	URLs        []string
}

// Parse reads a raw message. The first inline text/plain or text/html part
// with content, in depth-first order, becomes the body.
func Parse(r io.Reader) (*Message, error) {
	// An unknown charset or transfer encoding still yields a readable
	// entity whose body is left undecoded.
	entity, err := message.Read(r)
	if entity == nil || (err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err)) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	mr := mail.NewReader(entity)
	defer mr.Close()

	msg := &Message{}

	msg.Subject, err = mr.Header.Subject()
	if err != nil {
		msg.Subject = mr.Header.Get("Subject")
	}

	msg.SenderName, msg.SenderEmail = parseFrom(mr.Header)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			contentType = "text/plain"
		}
		if contentType != "text/plain" && contentType != "text/html" {
			continue
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s part: %w", contentType, err)
		}
		if len(content) > 0 {
			msg.Body = utils.ReplaceInvalidUTF8(string(content))
			break
		}
	}

	msg.URLs = features.ExtractURLs(msg.Body)
	return msg, nil
}

func parseFrom(h mail.Header) (name, email string) {
	addrs, err := h.AddressList("From")
	if err == nil && len(addrs) > 0 {
		return addrs[0].Name, addrs[0].Address
	}
	return "", strings.TrimSpace(h.Get("From"))
}

// Email converts the message into the classifier's input record
func (m *Message) Email() *core.Email {
	return &core.Email{
		From:    m.SenderEmail,
		Subject: m.Subject,
		Body:    m.Body,
		URLs:    strings.Join(m.URLs, ","),
	}
}
