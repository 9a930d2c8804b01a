package fetcher

import "math/rand/v2"

// DefaultUserAgents are desktop browser User-Agent strings rotated across
// requests when no list is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// pickUserAgent returns a random entry of uas, or of DefaultUserAgents when
// uas is empty.
func pickUserAgent(uas []string) string {
	if len(uas) == 0 {
		uas = DefaultUserAgents
	}
	return uas[rand.IntN(len(uas))] //nolint:gosec // not security sensitive
}
