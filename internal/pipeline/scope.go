package pipeline

import (
	"fmt"
	"strings"

	"github.com/hakim/reconsweep/internal/models"
)

// ScopeConfig restricts which targets a run may touch. Exclusions win over
// the allow-list; an empty allow-list admits anything not excluded.
//
// Pattern forms (case-insensitive):
//
//	example.com    the apex only
//	*.example.com  any subdomain, at any depth, but not the apex
//	.example.com   the apex and every subdomain
type ScopeConfig struct {
	AllowedDomains  []string
	ExcludedDomains []string
}

// ValidateTarget returns an error naming the rule that rejects target
func (s *ScopeConfig) ValidateTarget(target models.Target) error {
	if s == nil {
		return nil
	}
	domain := target.String()

	for _, pattern := range s.ExcludedDomains {
		if domainMatches(domain, pattern) {
			return fmt.Errorf("target %q is excluded from scope by %q", domain, pattern)
		}
	}

	if len(s.AllowedDomains) == 0 {
		return nil
	}
	for _, pattern := range s.AllowedDomains {
		if domainMatches(domain, pattern) {
			return nil
		}
	}
	return fmt.Errorf("target %q is outside allowed scope (domains: %s)",
		domain, strings.Join(s.AllowedDomains, ", "))
}

func domainMatches(domain, pattern string) bool {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	pattern = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(pattern)), ".")
	if pattern == "" {
		return false
	}

	switch {
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(domain, pattern[1:])
	case strings.HasPrefix(pattern, "."):
		return domain == pattern[1:] || strings.HasSuffix(domain, pattern)
	default:
		return domain == pattern
	}
}
