package config

import "time"

// SiteConfig overrides crawl limits for one domain. Zero fields keep the
// run-wide value.
type SiteConfig struct {
	// MaxLinks overrides the page ceiling.
	MaxLinks int `yaml:"maxLinks,omitempty"`

	// Workers overrides the number of workers.
	Workers int `yaml:"workers,omitempty"`

	// SiteTimeBudget overrides the site time budget, e.g. "10m".
	SiteTimeBudget time.Duration `yaml:"siteTimeBudget,omitempty"`

	// UserAgent pins a single User-Agent for the site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// RequestsPerSecond overrides the request rate.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
}

// File represents the structure of the .sitecrawler configuration file.
type File struct {
	// Sites maps registrable domains (e.g. "example.com") to overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless a site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for domain, merging the
// site-specific entry over the defaults.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults

	siteConfig, ok := cf.Sites[canonicalDomain(domain)]
	if !ok {
		return result
	}
	if siteConfig.MaxLinks != 0 {
		result.MaxLinks = siteConfig.MaxLinks
	}
	if siteConfig.Workers != 0 {
		result.Workers = siteConfig.Workers
	}
	if siteConfig.SiteTimeBudget != 0 {
		result.SiteTimeBudget = siteConfig.SiteTimeBudget
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.RequestsPerSecond != 0 {
		result.RequestsPerSecond = siteConfig.RequestsPerSecond
	}
	return result
}
