package discovery

import (
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/hakim/reconsweep/internal/models"
)

// SubdomainSet is a sorted, de-duplicated list of lower-case hosts, all
// covered by the run's target.
type SubdomainSet []string

// Contains reports whether host is a member of the set
func (s SubdomainSet) Contains(host string) bool {
	_, found := slices.BinarySearch(s, host)
	return found
}

// Merge normalises every candidate from every source, drops anything outside
// target and returns the sorted union. Merging an already merged set yields
// the same set.
func Merge(target models.Target, candidates ...[]string) SubdomainSet {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, list := range candidates {
		for _, raw := range list {
			host := normalizeSubdomain(raw)
			if host == "" || !target.Covers(host) {
				continue
			}
			set.Add(host)
		}
	}

	merged := set.ToSlice()
	slices.Sort(merged)
	return SubdomainSet(merged)
}

// normalizeSubdomain normalizes a subdomain for deduplication.
// It converts to lowercase, strips trailing dots and whitespace.
// Returns empty string for invalid entries (wildcards, empty labels,
// characters outside [a-z0-9_-]).
func normalizeSubdomain(subdomain string) string {
	s := strings.TrimSpace(subdomain)

	if strings.HasPrefix(s, "*") {
		return ""
	}

	s = strings.ToLower(s)
	s = strings.TrimSuffix(s, ".")

	if s == "" || models.CheckHostname(s) != nil {
		return ""
	}

	return s
}
