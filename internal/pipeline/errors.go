package pipeline

import "errors"

var (
	// ErrNotClassified is returned by steps that need a status when no
	// ClassifyStep ran before them.
	ErrNotClassified = errors.New("crawl result has not been classified")

	// ErrNilResult is returned when a report carries no crawl result.
	ErrNilResult = errors.New("report has no crawl result")
)
