// Package events defines the topics and payloads published by the data
// core. Payloads are plain values so asynchronous observers can keep them.
package events
