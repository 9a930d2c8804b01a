// Package config holds the run configuration of sitecrawler: crawl limits,
// transport and storage settings, report options and the optional
// .sitecrawler YAML file with per-site overrides.
package config
