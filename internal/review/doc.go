// Package review defines the core domain types shared across subsystems: the
// product/review/analysis data model, the error taxonomy surfaced to users,
// and the interfaces implemented by the store, collector, and analyzer.
package review
