package action

import "errors"

var (
	// ErrActionNotFound is returned when no registered action has an ID.
	ErrActionNotFound = errors.New("action not found")

	// ErrAlreadyRegistered is returned when adding an action twice.
	ErrAlreadyRegistered = errors.New("action already registered")

	// ErrNotSettable is returned when setting the value of a trigger or
	// group.
	ErrNotSettable = errors.New("action kind has no settable value")

	// ErrWrongValueType is returned when a value does not fit the kind.
	ErrWrongValueType = errors.New("value does not fit the action kind")

	// ErrUnknownOption is returned when an option action is set to a
	// value outside its options.
	ErrUnknownOption = errors.New("unknown option")

	// ErrUnknownValueKind is returned when parsing an unknown kind name.
	ErrUnknownValueKind = errors.New("unknown action value kind")

	// ErrAlreadyPublished is returned when publishing a connected action.
	ErrAlreadyPublished = errors.New("action already published")

	// ErrNotPrivate is returned when publishing a public action.
	ErrNotPrivate = errors.New("action is not private")

	// ErrDuplicateName is returned when a public action with the requested
	// name exists and duplicates were not allowed.
	ErrDuplicateName = errors.New("public action name already taken")

	// ErrPublishNotAllowed is returned when permissions forbid publishing.
	ErrPublishNotAllowed = errors.New("action may not be published")
)
