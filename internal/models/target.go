package models

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Target is the validated domain a run is pointed at. The zero value is not
// usable; construct one with ParseTarget.
type Target struct {
	domain string
}

// ParseTarget normalises raw into a Target. It lower-cases, trims whitespace
// and a trailing dot, and rejects values that are not a registrable domain
// (bare public suffixes, URLs, paths, wildcards).
func ParseTarget(raw string) (Target, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimSuffix(d, ".")

	if d == "" {
		return Target{}, errors.New("target domain is empty")
	}
	if strings.ContainsAny(d, "/:*@") {
		return Target{}, fmt.Errorf("target %q must be a bare domain name", raw)
	}
	if err := CheckHostname(d); err != nil {
		return Target{}, fmt.Errorf("target %q: %w", raw, err)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(d); err != nil {
		return Target{}, fmt.Errorf("target %q is not a registrable domain: %w", raw, err)
	}

	return Target{domain: d}, nil
}

// CheckHostname verifies that name, already lower-cased and without a
// trailing dot, is a sequence of non-empty labels of at most 63 characters
// drawn from [a-z0-9_-] that neither start nor end with a hyphen.
func CheckHostname(name string) error {
	if len(name) > 253 {
		return fmt.Errorf("hostname is %d characters, longer than 253", len(name))
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return errors.New("hostname has an empty label")
		}
		if len(label) > 63 {
			return fmt.Errorf("label %q is longer than 63 characters", label)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("label %q starts or ends with a hyphen", label)
		}
		for _, c := range label {
			if !isLabelChar(c) {
				return fmt.Errorf("label %q contains %q", label, c)
			}
		}
	}
	return nil
}

func isLabelChar(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

// String returns the normalised domain
func (t Target) String() string {
	return t.domain
}

// Covers reports whether host is the target itself or one of its subdomains.
// host must already be normalised (lower-case, no trailing dot).
func (t Target) Covers(host string) bool {
	if t.domain == "" || host == "" {
		return false
	}
	return host == t.domain || strings.HasSuffix(host, "."+t.domain)
}
