// Package sinks holds the progress consumers: a structured log sink and an
// in-memory window of recent events for the ops API.
package sinks
