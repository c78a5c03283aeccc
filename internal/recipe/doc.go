// Package recipe provides the typed modification recipe used throughout strata.
//
// A Recipe is a three-level map: archetype → component → field → Value. It is
// always a delta: a field absent from the map, or present with a Keep value,
// leaves the current table value untouched. Recipes combine by deep merge
// where later recipes overwrite earlier leaves.
//
// This package imports nothing internal except errs. Every other package
// that reads, writes or compares recipes goes through these types, so the
// canonical encoding and signature are defined exactly once.
//
// Key constraints:
//   - Numbers are float64 and compare with an absolute tolerance of 1e-9
//   - Keep never overwrites a set value during merge
//   - Iteration helpers visit keys in sorted order for deterministic output
package recipe
