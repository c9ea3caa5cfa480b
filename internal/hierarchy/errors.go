package hierarchy

import "errors"

var (
	// ErrItemNotFound is returned when no item wraps a dataset.
	ErrItemNotFound = errors.New("hierarchy item not found")

	// ErrAlreadyAttached is returned when attaching a dataset twice.
	ErrAlreadyAttached = errors.New("dataset already has a hierarchy item")

	// ErrItemRemoved is returned for operations on removed items.
	ErrItemRemoved = errors.New("hierarchy item was removed")

	// ErrCycle describes a reparent that would make an item its own
	// ancestor. Such reparents are ignored, not returned.
	ErrCycle = errors.New("reparent would create a cycle")
)
