// Package features derives the hand-crafted signals the classifier was trained on.
package features

import (
	"net"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownDomain is reported when no registrable domain can be found in a sender
const UnknownDomain = "unknown"

// SuspiciousKeywords is the fixed list of phrases that flag a body as suspicious
var SuspiciousKeywords = []string{
	"urgent",
	"verify",
	"click",
	"account",
	"login",
	"password",
	"bank",
	"suspend",
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// URLCount counts the comma separated tokens in urls.
// An empty string still yields one token, matching how the model was trained.
func URLCount(urls string) int {
	return len(strings.Split(urls, ","))
}

// SenderDomain returns the registrable domain (eTLD+1) of a sender string such as
// `"Jane" <jane@mail.example.co.uk>` or `jane@example.com`.
func SenderDomain(sender string) string {
	host := sender
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	host = strings.TrimSpace(host)
	if i := strings.IndexAny(host, "/?#> \t"); i >= 0 {
		host = host[:i]
	}
	host = strings.Trim(host, `<>"'.`)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return UnknownDomain
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || domain == "" {
		return UnknownDomain
	}
	return domain
}

// HasSuspiciousKeywords returns 1 when body contains any suspicious keyword, ignoring case
func HasSuspiciousKeywords(body string) int {
	text := cases.Lower(language.Und).String(body)
	for _, keyword := range SuspiciousKeywords {
		if strings.Contains(text, keyword) {
			return 1
		}
	}
	return 0
}

// ExtractURLs returns every scheme-prefixed, whitespace-delimited link in text
func ExtractURLs(text string) []string {
	urls := urlPattern.FindAllString(text, -1)
	if urls == nil {
		return []string{}
	}
	return urls
}
