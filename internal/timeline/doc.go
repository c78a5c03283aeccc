// Package timeline is the entry point for editing a district timeline.
//
// A Timeline handle ties together the event log, the state-year
// materializer, the reconciliation engine, the integrity checker, the
// atomic change store and the transaction journal of one named timeline.
//
// Every mutating operation runs as one transaction through a fixed
// sequence of stages:
//
//	IDLE → SNAPSHOTTING → MATERIALIZING_YEAR → APPLYING_DELTA →
//	PROPAGATING_FORWARD → SYNCING_DERIVED_PROPERTIES → PERSISTING_LOG →
//	VERIFYING → COMMITTED
//
// Any failure moves to ROLLING_BACK, restores every captured file byte for
// byte, and ends in FAILED with the original error returned to the caller.
// Validation and not-found errors are raised before SNAPSHOTTING so they
// never touch the filesystem.
//
// Operations are synchronous and not safe for concurrent use on the same
// timeline; callers serialize them.
package timeline
