package source

import "errors"

// ErrEmptyKey is returned when a Redis source is created without a list key.
var ErrEmptyKey = errors.New("redis list key must not be empty")
