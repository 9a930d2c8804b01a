// Package language decides whether a site is written in English.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// English is the ISO 639-1 code the crawler looks for.
const English = "en"

// DefaultMinConfidence is the detector confidence below which a sample is
// treated as undetermined.
const DefaultMinConfidence = 0.5

// minSampleRunes is the shortest sample worth running detection on.
const minSampleRunes = 20

// Oracle returns the ISO 639-1 code of the language a sample is written in.
type Oracle interface {
	Detect(sample string) string
}

// Detector is the default Oracle. Samples that are too short or that the
// model is unsure about are reported as English, so a crawl is never
// skipped on a weak signal.
type Detector struct {
	minConfidence float64
}

// NewDetector creates a Detector. A non-positive confidence uses
// DefaultMinConfidence.
func NewDetector(minConfidence float64) *Detector {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Detector{minConfidence: minConfidence}
}

// Detect implements Oracle.
func (d *Detector) Detect(sample string) string {
	if len([]rune(strings.TrimSpace(sample))) < minSampleRunes {
		return English
	}
	info := whatlanggo.Detect(sample)
	if info.Confidence < d.minConfidence {
		return English
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return English
	}
	return code
}

// BaseOf returns the ISO 639-1 base language of a BCP 47 tag such as
// "en-GB", and false when tag is empty or cannot be parsed.
func BaseOf(tag string) (string, bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", false
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", false
	}
	base, confidence := t.Base()
	if confidence == language.No {
		return "", false
	}
	return base.String(), true
}

// IsEnglish decides a page's language from its declared tag when present,
// and from oracle otherwise.
func IsEnglish(oracle Oracle, tag, sample string) bool {
	if base, ok := BaseOf(tag); ok {
		return base == English
	}
	return oracle.Detect(sample) == English
}
