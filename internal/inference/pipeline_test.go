package inference

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/phishing-detector/internal/core"
)

func testFiles() ModelFiles {
	return ModelFiles{
		Dir:               "testdata",
		Classifier:        "phishing_model.json",
		BodyVectorizer:    "body_vectorizer.json",
		SubjectVectorizer: "subject_vectorizer.json",
		SenderEncoder:     "sender_encoder.json",
	}
}

func loadTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := LoadPipeline(testFiles())
	require.NoError(t, err)
	return p
}

func TestLoadPipeline(t *testing.T) {
	p := loadTestPipeline(t)
	assert.Equal(t, 13, p.Width())
	assert.Equal(t, 13, p.classifier.NumFeature())
}

func TestEvaluate_PhishingStyleInput(t *testing.T) {
	p := loadTestPipeline(t)

	pred, err := p.Evaluate(
		"Dear user, your account has been suspended. Please click here to verify.",
		"Account Suspended Urgently",
		"http://malicious-site.com/verify,https://phishing.com/login",
		"unknown@malicious.com",
	)
	require.NoError(t, err)

	assert.Equal(t, core.LabelPhishing, pred.Label)
	require.Len(t, pred.Probabilities, 2)
	assert.InDelta(t, 1.0, pred.Probabilities[0]+pred.Probabilities[1], 1e-9)
	// margin = 0 (base score 0.5) + 1.0 + 1.2
	assert.InDelta(t, 1/(1+math.Exp(-2.2)), pred.PhishingScore(), 1e-6)
}

func TestEvaluate_LegitimateInput(t *testing.T) {
	p := loadTestPipeline(t)

	pred, err := p.Evaluate(
		"Are we still on for lunch after the meeting?",
		"Team lunch",
		"",
		"Alice <alice@company.com>",
	)
	require.NoError(t, err)

	assert.Equal(t, core.LabelLegitimate, pred.Label)
	assert.InDelta(t, 1.0, pred.Probabilities[0]+pred.Probabilities[1], 1e-9)
	assert.InDelta(t, 1/(1+math.Exp(1.5)), pred.PhishingScore(), 1e-6)
}

func TestEvaluate_MissingFields(t *testing.T) {
	p := loadTestPipeline(t)

	cases := []struct {
		name                  string
		body, subject, sender string
	}{
		{"body", "", "subject", "a@b.com"},
		{"subject", "body", "", "a@b.com"},
		{"sender", "body", "subject", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Evaluate(tc.body, tc.subject, "", tc.sender)
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestFeatures_ColumnOrder(t *testing.T) {
	p := loadTestPipeline(t)

	x, err := p.Features("verify your account", "urgent", "a,b,c", "x@malicious.com")
	require.NoError(t, err)
	assert.Equal(t, 13, x.Dim)

	// body tf-idf occupies 0..4, subject 5..7, sender 8..10, misc 11..12
	_, ok := x.At(0)
	assert.True(t, ok, "body 'account'")
	_, ok = x.At(2)
	assert.True(t, ok, "body 'verify'")
	subj, ok := x.At(5)
	assert.True(t, ok, "subject 'urgent'")
	assert.InDelta(t, 1.0, subj, 1e-9)
	sender, ok := x.At(9)
	assert.True(t, ok)
	assert.Equal(t, 1.0, sender)
	urls, _ := x.At(11)
	assert.Equal(t, 3.0, urls)
	flag, _ := x.At(12)
	assert.Equal(t, 1.0, flag)
}

func TestFeatures_UnknownSenderDomainIsAllZero(t *testing.T) {
	p := loadTestPipeline(t)

	x, err := p.Features("hello there", "hi", "", "someone@elsewhere.org")
	require.NoError(t, err)
	for col := 8; col <= 10; col++ {
		_, ok := x.At(col)
		assert.False(t, ok, "column %d", col)
	}
	// keyword flag of 0 is not stored, so the ensemble sees it as missing
	_, ok := x.At(12)
	assert.False(t, ok)
}

func TestNewPipeline_WidthMismatch(t *testing.T) {
	p := loadTestPipeline(t)

	enc, err := NewOneHotEncoder(&OneHotConfig{Categories: []string{"only.com"}})
	require.NoError(t, err)

	_, err = NewPipeline(p.classifier, p.bodyVectorizer, p.subjectVectorizer, enc)
	assert.Error(t, err)
}

func TestLoadPipeline_MissingArtifact(t *testing.T) {
	files := testFiles()
	files.SenderEncoder = "does_not_exist.json"
	_, err := LoadPipeline(files)
	assert.Error(t, err)
}

func TestLoadPipeline_AbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"phishing_model.json", "body_vectorizer.json", "subject_vectorizer.json", "sender_encoder.json"} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}

	files := testFiles()
	files.Dir = "ignored"
	files.Classifier = filepath.Join(dir, "phishing_model.json")
	files.BodyVectorizer = filepath.Join(dir, "body_vectorizer.json")
	files.SubjectVectorizer = filepath.Join(dir, "subject_vectorizer.json")
	files.SenderEncoder = filepath.Join(dir, "sender_encoder.json")

	_, err := LoadPipeline(files)
	assert.NoError(t, err)
}
