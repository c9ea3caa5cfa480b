// Package event is the notification bus of the data core.
//
// Registries publish a typed Event for every mutation: a before/after pair
// for destructive operations (dataset.removing, dataset.removed) and a
// single event for non-destructive ones (dataset.renamed). Observers
// subscribe explicitly and hold the returned Subscription until they
// Cancel it; nothing is connected implicitly.
//
// # Topics
//
// Topics are dot separated and subscriptions may use wildcards:
//
//	dataset.*        dataset.added, dataset.removed
//	hierarchy.**     every hierarchy event
//	**.changed       dataset.changed, action.value.changed
//
// # Delivery
//
// Synchronous subscriptions run on the publisher's goroutine, in priority
// order, before Publish returns. Handlers may publish again from inside a
// handler; the bus does not guard against re-entrant chains and each
// handler is responsible for not looping forever.
//
// Asynchronous subscriptions run on a worker and are meant for read-only
// observers such as the websocket feed and metrics. They only see the
// event payload, which is a value snapshot.
package event
