package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/cache"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/ports"
)

const redisConnectTimeout = 5 * time.Second

// CacheFactory creates cache repositories based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCacheRepository creates a cache repository based on the configuration.
// It returns nil when caching is disabled.
func (f *CacheFactory) CreateCacheRepository() (ports.CacheStore, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}

	if !cacheCfg.Enabled {
		f.logger.Info("Verdict cache disabled")
		return nil, nil
	}

	f.logger.Info("Creating verdict cache", zap.String("type", cacheCfg.Type))

	switch cacheCfg.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		c, err := cache.NewSQLiteCache(cacheCfg.SQLitePath, f.logger, cacheCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "mysql":
		c, err := cache.NewMySQLCache(cacheCfg.MySQLDSN, f.logger, cacheCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		c, err := cache.NewRedisCache(ctx, cacheCfg.RedisAddr, cacheCfg.RedisPassword, cacheCfg.RedisDB, f.logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}

// ServiceOptions returns the phishing service tuning derived from configuration
func (f *CacheFactory) ServiceOptions() (core.ServiceOptions, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return core.ServiceOptions{}, err
	}

	domains := f.cfg.GetTrustedDomains()
	if len(domains) > 0 {
		f.logger.Info("Loaded trusted domains", zap.Strings("domains", domains))
	}

	return core.ServiceOptions{
		CacheEnabled:   cacheCfg.Enabled,
		CacheTTL:       cacheCfg.TTL,
		TrustedDomains: domains,
	}, nil
}
