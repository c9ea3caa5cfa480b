// Package action holds parameter actions and the registry that links them.
//
// An action is a named, typed parameter. Its ValueKind tag selects the
// value type and the capabilities the action has; there is one Action type
// for every kind. Actions start private. Publishing a private action
// creates a public copy and connects the private action to it; other
// private actions of the same kind may connect to that public action too.
// Setting the value of a public action sets every connected private action
// in the same call. Values never flow from a private action upward.
//
// Actions and the registry belong to the main loop and are not safe for
// concurrent use.
package action
