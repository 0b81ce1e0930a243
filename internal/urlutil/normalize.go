// Package urlutil provides URL normalization and domain-scope checks.
package urlutil

import (
	"net/url"
	"strings"
)

// NormalizeStart canonicalizes the seed URLs supplied on the command line.
// Empty inputs are dropped, a missing scheme defaults to https, and fragments
// are removed. Input order is preserved and duplicates are kept.
func NormalizeStart(urls []string) []string {
	normalized := make([]string, 0, len(urls))
	for _, raw := range urls {
		if raw == "" {
			continue
		}
		u := raw
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" {
			u = "https://" + u
		}
		normalized = append(normalized, defrag(u))
	}
	return normalized
}

// NormalizeLink resolves href against base and canonicalizes the result.
// It returns false for anchors, non-HTTP schemes, and unparseable inputs.
func NormalizeLink(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	for _, prefix := range []string{"mailto:", "javascript:", "tel:", "#"} {
		if strings.HasPrefix(href, prefix) {
			return "", false
		}
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := baseURL.ResolveReference(ref)
	resolved.Fragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

// IsAllowedDomain reports whether the URL's host falls within the allowed
// domain list. An empty list allows everything. A host matches a domain when
// it equals it or is a subdomain of it.
func IsAllowedDomain(rawURL string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host := Host(rawURL)
	for _, domain := range allowed {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// CleanDomains lowercases configured domains and strips leading dots.
func CleanDomains(domains []string) []string {
	cleaned := make([]string, 0, len(domains))
	for _, d := range domains {
		cleaned = append(cleaned, strings.TrimLeft(strings.ToLower(d), "."))
	}
	return cleaned
}

// Host extracts the lowercased host (including any port) from a URL.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func defrag(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	return u.String()
}
