// Package hierarchy is the data hierarchy: a forest of items, one per
// dataset, that positions datasets for navigation and carries their UI
// state (selection, visibility, locks, analysis progress, group colors).
//
// The hierarchy implements data.Tree. The dataset registry drives
// attaching and removal; the hierarchy never removes a dataset on its own.
// Like the registry it belongs to the main loop and is not safe for
// concurrent use.
package hierarchy
