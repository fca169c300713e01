package memory

import "errors"

var (
	// ErrNodeNotFound is returned when an edge endpoint does not reference an
	// existing node at creation time.
	ErrNodeNotFound = errors.New("node not found")
)
