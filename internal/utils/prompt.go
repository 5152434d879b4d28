package utils

import (
	"fmt"
	"strings"

	"github.com/mikey/phishing-detector/internal/core"
)

// SystemPrompt is sent as the system role by providers that support one
const SystemPrompt = "You are an email security analyst. Respond only with JSON."

const explanationPromptFormat = `You are an email security analyst. A phishing classifier labelled the following email as %s with a phishing probability of %.2f.
Explain in two or three sentences which signals in the email support or contradict this verdict.
Respond with a JSON object containing:
- explanation: string (the explanation for the verdict)
- indicators: array of strings (short names of the signals you relied on, such as "mismatched sender domain")

Email:
From: %s
Subject: %s
URLs: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// ExplanationResponse is the structured reply expected from an LLM explainer
type ExplanationResponse struct {
	Explanation string   `json:"explanation"`
	Indicators  []string `json:"indicators"`
}

// ExplanationPrompt renders the prompt asking an LLM to justify a verdict.
// The body is truncated to maxBodySize bytes.
func (tp *TextProcessor) ExplanationPrompt(email *core.Email, result *core.PhishingAnalysisResult, maxBodySize int) string {
	urls := email.URLs
	if urls == "" {
		urls = "(none)"
	}
	return fmt.Sprintf(explanationPromptFormat,
		result.Label,
		result.Score(),
		email.From,
		email.Subject,
		urls,
		tp.ProcessText(email.Body, maxBodySize),
	)
}

// ParseExplanation extracts the explanation text from an LLM reply
func ParseExplanation(responseText string) (string, error) {
	var resp ExplanationResponse
	if err := ParseJSONResponse(responseText, &resp); err != nil {
		return "", err
	}

	explanation := strings.TrimSpace(resp.Explanation)
	if explanation == "" {
		return "", fmt.Errorf("LLM response has no explanation")
	}
	if len(resp.Indicators) > 0 {
		explanation += " Indicators: " + strings.Join(resp.Indicators, ", ") + "."
	}
	return explanation, nil
}
