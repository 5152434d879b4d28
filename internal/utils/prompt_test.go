package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

func TestExplanationPrompt(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	email := &core.Email{From: "x@evil.example", Subject: "Reset", Body: strings.Repeat("a", 100)}
	result := &core.PhishingAnalysisResult{Label: core.LabelPhishing, Probabilities: []float64{0.2, 0.8}}

	prompt := tp.ExplanationPrompt(email, result, 10)
	assert.Contains(t, prompt, "labelled the following email as Phishing with a phishing probability of 0.80")
	assert.Contains(t, prompt, "From: x@evil.example\nSubject: Reset\nURLs: (none)\n")
	assert.Contains(t, prompt, "aaaaaaaaaa\n[... Content truncated due to size limits ...]")
}

func TestParseExplanation(t *testing.T) {
	got, err := ParseExplanation(`Sure! {"explanation": "The link points at a lookalike domain.", "indicators": ["lookalike domain", "urgency"]}`)
	require.NoError(t, err)
	assert.Equal(t, "The link points at a lookalike domain. Indicators: lookalike domain, urgency.", got)

	got, err = ParseExplanation(`{"explanation": "Looks routine."}`)
	require.NoError(t, err)
	assert.Equal(t, "Looks routine.", got)

	_, err = ParseExplanation(`{"explanation": "  "}`)
	assert.Error(t, err)

	_, err = ParseExplanation("no json here")
	assert.Error(t, err)
}
