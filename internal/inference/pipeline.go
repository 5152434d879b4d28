// Package inference loads the fitted phishing model artifacts and evaluates emails against them.
//
// The feature row is the column-wise concatenation, in this order, of:
// body TF-IDF, subject TF-IDF, one-hot sender domain, then [url_count, suspicious_keyword_flag].
// The order must match the order used when the transforms were fitted.
package inference

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/features"
)

// ErrMissingField is returned when one of the evaluation inputs is empty
var ErrMissingField = errors.New("body, subject and sender are required")

// miscFeatures is the number of trailing hand-crafted columns
const miscFeatures = 2

// ModelFiles names the four artifacts inside a model directory
type ModelFiles struct {
	Dir               string
	Classifier        string
	BodyVectorizer    string
	SubjectVectorizer string
	SenderEncoder     string
}

// Pipeline is the loaded, immutable inference pipeline. It is safe for concurrent use.
type Pipeline struct {
	classifier        *Booster
	bodyVectorizer    *TfidfVectorizer
	subjectVectorizer *TfidfVectorizer
	senderEncoder     *OneHotEncoder
}

// NewPipeline assembles a pipeline and checks the transforms add up to the classifier width
func NewPipeline(
	classifier *Booster,
	bodyVectorizer *TfidfVectorizer,
	subjectVectorizer *TfidfVectorizer,
	senderEncoder *OneHotEncoder,
) (*Pipeline, error) {
	p := &Pipeline{
		classifier:        classifier,
		bodyVectorizer:    bodyVectorizer,
		subjectVectorizer: subjectVectorizer,
		senderEncoder:     senderEncoder,
	}
	if nf := classifier.NumFeature(); nf > 0 && nf != p.Width() {
		return nil, fmt.Errorf("classifier expects %d features but transforms produce %d", nf, p.Width())
	}
	return p, nil
}

// LoadPipeline reads all four artifacts from disk
func LoadPipeline(files ModelFiles) (*Pipeline, error) {
	path := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(files.Dir, name)
	}

	classifier, err := LoadBooster(path(files.Classifier))
	if err != nil {
		return nil, err
	}
	bodyVectorizer, err := LoadTfidfVectorizer(path(files.BodyVectorizer))
	if err != nil {
		return nil, err
	}
	subjectVectorizer, err := LoadTfidfVectorizer(path(files.SubjectVectorizer))
	if err != nil {
		return nil, err
	}
	senderEncoder, err := LoadOneHotEncoder(path(files.SenderEncoder))
	if err != nil {
		return nil, err
	}

	return NewPipeline(classifier, bodyVectorizer, subjectVectorizer, senderEncoder)
}

// Width is the total number of feature columns
func (p *Pipeline) Width() int {
	return p.bodyVectorizer.Width() + p.subjectVectorizer.Width() + p.senderEncoder.Width() + miscFeatures
}

// Features builds the feature row for one email
func (p *Pipeline) Features(body, subject, urls, sender string) (*SparseVector, error) {
	xBody, err := p.bodyVectorizer.Transform(body)
	if err != nil {
		return nil, fmt.Errorf("failed to transform body: %w", err)
	}
	xSubject, err := p.subjectVectorizer.Transform(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to transform subject: %w", err)
	}
	xSender := p.senderEncoder.Transform(features.SenderDomain(sender))
	xMisc := Dense(
		float64(features.URLCount(urls)),
		float64(features.HasSuspiciousKeywords(body)),
	)

	return Hstack(xBody, xSubject, xSender, xMisc), nil
}

// Evaluate scores raw email fields. body, subject and sender must be non-empty;
// urls may be empty.
func (p *Pipeline) Evaluate(body, subject, urls, sender string) (*core.Prediction, error) {
	if body == "" || subject == "" || sender == "" {
		return nil, ErrMissingField
	}

	x, err := p.Features(body, subject, urls, sender)
	if err != nil {
		return nil, err
	}

	class, proba, err := p.classifier.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("failed to run classifier: %w", err)
	}

	label := core.LabelLegitimate
	if class == 1 {
		label = core.LabelPhishing
	}

	return &core.Prediction{
		Label:         label,
		Probabilities: proba,
	}, nil
}
