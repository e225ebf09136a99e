// Package metric provides the core domain types for finbench.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import metric; metric imports nothing internal. This
// ensures the data model remains the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - KPI values are nullable float64 (Value): null means "insufficient
//     source data" and is NEVER conflated with a computed zero.
//   - Line items are immutable once loaded; a generation's inputs never
//     change underneath a computation.
//   - All string identity (entity ids, scope dimension values) is NFC
//     normalized before hashing or key construction.
//   - Benchmark stats with a zero sample count do not exist; absence of a
//     row is meaningful and is represented by omission, never by zeros.
package metric
