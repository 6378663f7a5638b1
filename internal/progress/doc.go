// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces used to report analysis-run milestones. Events are
// batched on a background goroutine and fanned out to pluggable sinks such
// as Prometheus metrics or the run tracker.
package progress
