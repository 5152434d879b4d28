package ports

import (
	"github.com/mikey/phishing-detector/internal/core"
)

// CacheStore is a verdict cache that owns background resources
type CacheStore interface {
	core.CacheRepository

	// Stop releases the cache's goroutines and connections
	Stop()
}
