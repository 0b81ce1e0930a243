package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStart(t *testing.T) {
	got := NormalizeStart([]string{"example.com", "", "https://a.org/page#frag", "http://b.net"})
	assert.Equal(t, []string{
		"https://example.com",
		"https://a.org/page",
		"http://b.net",
	}, got)
}

func TestNormalizeStartKeepsDuplicatesAndOrder(t *testing.T) {
	got := NormalizeStart([]string{"https://x.com", "https://x.com"})
	assert.Equal(t, []string{"https://x.com", "https://x.com"}, got)
}

func TestNormalizeLinkRejects(t *testing.T) {
	base := "https://example.com/a/b"
	for _, href := range []string{"mailto:x@y.z", "javascript:void(0)", "tel:+123", "#frag", "", "   "} {
		_, ok := NormalizeLink(base, href)
		assert.False(t, ok, "href %q should be rejected", href)
	}
}

func TestNormalizeLinkResolvesRelative(t *testing.T) {
	got, ok := NormalizeLink("https://example.com/a/b", "/c")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/c", got)

	got, ok = NormalizeLink("https://example.com/a/b", "c")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a/c", got)
}

func TestNormalizeLinkStripsFragment(t *testing.T) {
	got, ok := NormalizeLink("https://example.com/", "https://example.com/page#section")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/page", got)
}

func TestNormalizeLinkRejectsNonHTTPSchemes(t *testing.T) {
	_, ok := NormalizeLink("https://example.com/", "ftp://files.example.com/x")
	assert.False(t, ok)
}

func TestNormalizeLinkIdempotent(t *testing.T) {
	first, ok := NormalizeLink("https://example.com/a/", "../b?q=1#frag")
	require.True(t, ok)
	second, ok := NormalizeLink(first, first)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestIsAllowedDomain(t *testing.T) {
	allowed := []string{"example.com"}
	assert.True(t, IsAllowedDomain("https://example.com/x", allowed))
	assert.True(t, IsAllowedDomain("https://sub.example.com/x", allowed))
	assert.False(t, IsAllowedDomain("https://evil.com", allowed))
	assert.False(t, IsAllowedDomain("https://notexample.com", allowed))
	assert.True(t, IsAllowedDomain("https://anything.io", nil), "empty list allows all")
}

func TestCleanDomains(t *testing.T) {
	got := CleanDomains([]string{".Example.COM", "..a.org", "b.net"})
	assert.Equal(t, []string{"example.com", "a.org", "b.net"}, got)
}

func TestHost(t *testing.T) {
	assert.Equal(t, "example.com:8080", Host("https://EXAMPLE.com:8080/path"))
	assert.Equal(t, "", Host("://bad"))
}
