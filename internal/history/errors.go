package history

import "errors"

// ErrNotFound is returned when a history entry does not exist.
var ErrNotFound = errors.New("history: entry not found")
