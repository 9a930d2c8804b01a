package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoRoot is returned when no root URL, list file or Redis source is given.
	ErrNoRoot = errors.New("no root specified: provide a URL, --list or --redis")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxLinks is returned when the page ceiling is not positive.
	ErrInvalidMaxLinks = errors.New("invalid max links: must be positive")

	// ErrInvalidLinkCap is returned when the per-page link cap is negative.
	ErrInvalidLinkCap = errors.New("invalid per-page link cap: must be non-negative")

	// ErrInvalidMaxWords is returned when the per-page word limit is not positive.
	ErrInvalidMaxWords = errors.New("invalid max words per page: must be positive")

	// ErrInvalidTimeout is returned when a time budget or fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidGracePeriod is returned when the grace period is negative.
	ErrInvalidGracePeriod = errors.New("invalid grace period: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxRoots is returned when the root limit is negative.
	ErrInvalidMaxRoots = errors.New("invalid max roots: must be non-negative")

	// ErrInvalidRate is returned when the request rate is negative.
	ErrInvalidRate = errors.New("invalid requests per second: must be non-negative")

	// ErrUnknownRenderer is returned for a renderer other than http or chrome.
	ErrUnknownRenderer = errors.New("unknown renderer: must be http or chrome")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidThresholds is returned when the fail-word threshold is
	// negative or above the low-count threshold.
	ErrInvalidThresholds = errors.New("invalid thresholds: fail words must be between 0 and the low count threshold")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when both --proxy and --tor are set.
	ErrConflictingProxy = errors.New("conflicting proxies: --proxy and --tor cannot be used together")
)
