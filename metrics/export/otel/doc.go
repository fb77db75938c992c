// Package otel bridges engine metrics into an OpenTelemetry meter using
// observable instruments, so snapshots are pulled on collection instead of
// pushed per event.
package otel
