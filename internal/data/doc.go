// Package data is the dataset registry. It owns raw data backing stores and
// the datasets that view them, assigns every dataset a GUID that is never
// reused, and hands out generational handles so a holder of a removed
// dataset gets ErrInvalidHandle instead of stale state.
//
// The registry is not safe for concurrent use. It belongs to the main loop;
// workers post mutations through dispatch.Queue.
package data
