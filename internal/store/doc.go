// Package store provides SQLite-backed storage for finbench inputs and
// precomputed results.
//
// The raw side holds the line-item store and entity registry, replaced
// wholesale by an external refresh. The derived side holds the result
// tables written by the build pipeline:
//
//   - kpi_values: (entity_id, period, kpi_key) -> nullable value, per generation
//   - benchmark_stats: (kpi_key, scope, scope_key, period) -> percentile stats,
//     per generation
//   - generations: one row per completed build
//   - published: single-row marker naming the currently served generation
//
// Result tables are append-only per generation and never mutated in place.
// The ONLY transactional boundary in the system is Publish, which records
// the generation and flips the marker in one transaction; readers observe
// the previous generation until that commit and never a partial build.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
