package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the name looked up in the working and home
// directories.
const DefaultConfigFile = ".sitecrawler"

// xdgConfigFile is the name looked up in the XDG config directory.
const xdgConfigFile = "config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidSiteConfig is returned when a site entry holds a negative limit.
	ErrInvalidSiteConfig = errors.New("invalid site configuration: limits must not be negative")
)

// LoadConfigFile reads the YAML file at path. Site keys are canonicalized
// so that "WWW.Example.com" and "example.com" name the same site.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := checkSite("defaults", file.Defaults); err != nil {
		return nil, err
	}
	sites := make(map[string]SiteConfig, len(file.Sites))
	for domain, site := range file.Sites {
		if err := checkSite(domain, site); err != nil {
			return nil, err
		}
		sites[canonicalDomain(domain)] = site
	}
	file.Sites = sites
	return &file, nil
}

// FindConfigFile returns the configuration file to load, or "" when there
// is none. An explicit path is returned only if it exists. Otherwise the
// working directory, the XDG config directory and the home directory are
// tried in that order.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		if fileExists(explicit) {
			return explicit
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), xdgConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func checkSite(name string, s SiteConfig) error {
	if s.MaxLinks < 0 || s.Workers < 0 || s.SiteTimeBudget < 0 || s.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSiteConfig, name)
	}
	return nil
}

// canonicalDomain lowercases domain and drops a leading "www.".
func canonicalDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(domain, "www.")
}
