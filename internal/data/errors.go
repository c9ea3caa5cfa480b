package data

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHandle is returned when a dataset handle is zero or stale.
	ErrInvalidHandle = errors.New("invalid dataset handle")

	// ErrNotFound matches NotFoundError.
	ErrNotFound = errors.New("dataset not found")

	// ErrUnknownKind matches UnknownKindError.
	ErrUnknownKind = errors.New("unknown data kind")

	// ErrNoDatasets is returned when an operation needs at least one dataset.
	ErrNoDatasets = errors.New("no datasets given")

	// ErrMixedKinds is returned when grouping datasets of different kinds.
	ErrMixedKinds = errors.New("datasets do not share a data kind")

	// ErrIndexOutOfRange is returned for subset or selection indices
	// outside the raw data.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNoProducer is returned when the registry has no storage producer.
	ErrNoProducer = errors.New("no raw data producer configured")

	// ErrSelectionDataset is returned when a hidden selection dataset is
	// removed directly. It lives as long as its raw data.
	ErrSelectionDataset = errors.New("selection datasets are removed with their raw data")

	// ErrDuplicateGUID is returned when a restored GUID was already issued.
	ErrDuplicateGUID = errors.New("dataset GUID already issued")
)

// NotFoundError is returned by RequestData for unknown or removed GUIDs.
type NotFoundError struct {
	GUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dataset %s not found", e.GUID)
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UnknownKindError is returned when no data-type plugin provides Kind.
type UnknownKindError struct {
	Kind string

	// Suggestion is the closest registered kind, if any is close enough.
	Suggestion string
}

func (e *UnknownKindError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown data kind %q (did you mean %q?)", e.Kind, e.Suggestion)
	}
	return fmt.Sprintf("unknown data kind %q", e.Kind)
}

// Is makes errors.Is(err, ErrUnknownKind) true.
func (e *UnknownKindError) Is(target error) bool {
	return target == ErrUnknownKind
}
