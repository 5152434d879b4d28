package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/inference"
)

// ModelFactory loads the classifier pipeline from the configured model directory
type ModelFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewModelFactory creates a new model factory
func NewModelFactory(cfg *config.Config, logger *zap.Logger) *ModelFactory {
	return &ModelFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreatePipeline loads every model artifact. Any missing or malformed
// artifact is fatal.
func (f *ModelFactory) CreatePipeline() (*inference.Pipeline, error) {
	modelCfg := f.cfg.GetModel()

	pipeline, err := inference.LoadPipeline(inference.ModelFiles{
		Dir:               modelCfg.Dir,
		Classifier:        modelCfg.ClassifierFile,
		BodyVectorizer:    modelCfg.BodyVectorizerFile,
		SubjectVectorizer: modelCfg.SubjectVectorizerFile,
		SenderEncoder:     modelCfg.SenderEncoderFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model from %s: %w", modelCfg.Dir, err)
	}

	f.logger.Info("Loaded phishing model",
		zap.String("dir", modelCfg.Dir),
		zap.Int("features", pipeline.Width()))

	return pipeline, nil
}
