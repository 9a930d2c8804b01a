package linkfilter

import "context"

// Filter turns raw hrefs into crawl candidates.
type Filter struct {
	classifier LinkClassifier
}

// NewFilter creates a Filter that consults classifier for downloads and
// login pages. A nil classifier uses NewClassifier with probing disabled.
func NewFilter(classifier LinkClassifier) *Filter {
	if classifier == nil {
		classifier = NewClassifier(WithProbe(false))
	}
	return &Filter{classifier: classifier}
}

// Passes reports whether link is well formed, not a download and not a
// login page. link should already be normalized.
func (f *Filter) Passes(ctx context.Context, link string) bool {
	if !IsLink(link) {
		return false
	}
	c := f.classifier.Classify(ctx, link)
	return !c.IsDownload && !c.IsLoginPage
}

// Candidates normalizes hrefs and keeps the ones that pass every check and
// belong to homeDomain. Order of first discovery is kept and duplicates are
// dropped. The domain check runs before classification so off-site links
// are never probed. Candidates stops early when ctx is done.
func (f *Filter) Candidates(ctx context.Context, hrefs []string, homeDomain string) []string {
	seen := make(map[string]struct{}, len(hrefs))
	out := make([]string, 0, len(hrefs))

	for _, href := range hrefs {
		if ctx.Err() != nil {
			break
		}

		link := Normalize(href)
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		if !IsLink(link) || !SameDomain(link, homeDomain) {
			continue
		}
		c := f.classifier.Classify(ctx, link)
		if c.IsDownload || c.IsLoginPage {
			continue
		}
		out = append(out, link)
	}
	return out
}
