package whitelist

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/features"
)

// Checker decides whether a sender belongs to a trusted domain
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make(map[string]struct{}, len(domains))
	names := make([]string, 0, len(domains))
	for _, domain := range domains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d == "" {
			continue
		}
		normalized[d] = struct{}{}
		names = append(names, d)
	}

	if len(names) > 0 && logger != nil {
		logger.Info("Initialized trusted domain checker", zap.Strings("domains", names))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// Len returns the number of trusted domains
func (c *Checker) Len() int {
	return len(c.domains)
}

// IsWhitelisted checks whether the sender's host or registrable domain is trusted
func (c *Checker) IsWhitelisted(sender string) bool {
	if len(c.domains) == 0 {
		return false
	}

	candidates := []string{features.SenderDomain(sender)}
	if i := strings.LastIndex(sender, "@"); i >= 0 {
		host := strings.ToLower(strings.Trim(strings.TrimSpace(sender[i+1:]), `<>"' `))
		candidates = append(candidates, host)
	}

	for _, domain := range candidates {
		if domain == features.UnknownDomain || domain == "" {
			continue
		}
		if _, ok := c.domains[domain]; ok {
			if c.logger != nil {
				c.logger.Debug("Domain is whitelisted",
					zap.String("domain", domain),
					zap.String("sender", sender))
			}
			return true
		}
	}

	return false
}
