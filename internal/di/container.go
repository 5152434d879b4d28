package di

import (
	"net/http"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/filter"
	"github.com/mikey/phishing-detector/internal/adapters/httpapi"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/mikey/phishing-detector/internal/inference"
	"github.com/mikey/phishing-detector/internal/logging"
	"github.com/mikey/phishing-detector/internal/metrics"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/utils"
)

// Application is everything the server binary needs to run
type Application struct {
	dig.In

	Config    *config.Config
	Logger    *zap.Logger
	Server    *httpapi.Server
	Filter    *filter.PostfixFilter
	Cache     ports.CacheStore
	Explainer core.Explainer
}

// BuildContainer creates and configures a dependency injection container.
// An empty configFile searches the default locations.
func BuildContainer(configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		if configFile != "" {
			return config.NewFromFile(configFile)
		}
		return config.New()
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register mailbox client
	if err := container.Provide(factory.NewGmailFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.GmailFactory) (ports.MailClient, error) {
		return f.CreateClient()
	}); err != nil {
		return nil, err
	}

	// Register HTTP API
	if err := container.Provide(httpapi.NewHandler); err != nil {
		return nil, err
	}
	if err := container.Provide(func(h *httpapi.Handler, recorder *metrics.Recorder, logger *zap.Logger) http.Handler {
		return httpapi.NewRouter(h, recorder, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, handler http.Handler, logger *zap.Logger) (*httpapi.Server, error) {
		serverCfg, err := cfg.GetServer()
		if err != nil {
			return nil, err
		}
		return httpapi.NewServer(handler, httpapi.ServerOptions{
			ListenAddress: serverCfg.ListenAddress,
			ReadTimeout:   serverCfg.ReadTimeout,
			WriteTimeout:  serverCfg.WriteTimeout,
		}, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register SMTP content filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) *filter.PostfixFilter {
		return f.CreatePostfixFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers the classifier, cache, explainer and phishing service.
// It expects *config.Config and *zap.Logger to be provided already.
func provideCore(container *dig.Container) error {
	providers := []interface{}{
		metrics.NewRecorder,
		utils.NewTextProcessor,
		factory.NewModelFactory,
		func(f *factory.ModelFactory) (*inference.Pipeline, error) {
			return f.CreatePipeline()
		},
		factory.NewCacheFactory,
		func(f *factory.CacheFactory) (ports.CacheStore, error) {
			return f.CreateCacheRepository()
		},
		func(f *factory.CacheFactory) (core.ServiceOptions, error) {
			return f.ServiceOptions()
		},
		factory.NewLLMFactory,
		func(f *factory.LLMFactory) (core.Explainer, error) {
			return f.CreateExplainer()
		},
		newPhishingService,
		func(s *core.PhishingService) ports.PhishingEvaluator {
			return s
		},
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

func newPhishingService(
	pipeline *inference.Pipeline,
	store ports.CacheStore,
	explainer core.Explainer,
	recorder *metrics.Recorder,
	logger *zap.Logger,
	opts core.ServiceOptions,
) *core.PhishingService {
	var repo core.CacheRepository
	if store != nil {
		repo = store
	}
	return core.NewPhishingService(pipeline, repo, explainer, recorder, logger, opts)
}
