package linkfilter

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Normalize strips the fragment and trailing slash from rawURL and lowercases
// its scheme and host. A bare root path normalizes to no path, so
// "http://a.com/" and "http://a.com" are the same key.
// Input that does not parse is returned with only the fragment removed.
func Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '#'); i >= 0 {
			rawURL = rawURL[:i]
		}
		return strings.TrimRight(rawURL, "/")
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	if u.RawQuery == "" {
		u.ForceQuery = false
	}
	return u.String()
}

// PathDepth counts the slashes in the path of rawURL after the trailing
// slash is removed. "/a/b/c" has depth 3 and the site root has depth 0.
// rawURL may be a full URL or just a path.
func PathDepth(rawURL string) int {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	return strings.Count(p, "/")
}

// Host returns the lowercased hostname of rawURL without its port.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// RegistrableDomain returns the effective TLD plus one label of rawURL's host,
// for example "example.co.uk" for "https://news.example.co.uk/a".
// IP addresses and hosts without a public suffix are returned as-is.
func RegistrableDomain(rawURL string) string {
	host := Host(rawURL)
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.TrimSuffix(host, "."))
	if err != nil {
		return host
	}
	return domain
}

// SameDomain reports whether rawURL belongs to the registrable domain home.
func SameDomain(rawURL, home string) bool {
	if home == "" {
		return false
	}
	return RegistrableDomain(rawURL) == strings.ToLower(home)
}

// IsLink reports whether rawURL is an absolute http or https URL with a host.
func IsLink(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}
