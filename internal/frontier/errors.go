package frontier

import "errors"

// ErrEmptyQueue is returned by RemoveMin when no task is queued.
var ErrEmptyQueue = errors.New("link queue is empty")
