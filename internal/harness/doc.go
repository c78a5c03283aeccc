// Package harness runs timeline scenarios written in YAML against a
// scenario folder and snapshots the outcome for golden comparison.
//
// # Scenario Format
//
//	name: propagate_forward
//	description: "2030 follows an edit made to 2025 after it was created"
//	changes:
//	  insulate_walls:
//	    description: thicker wall insulation
//	    modifications:
//	      STANDARD1: { wall: { thickness_1_m: 0.1 } }
//	steps:
//	  - op: apply
//	    year: 2020
//	    recipe:
//	      STANDARD1: { wall: { thickness_1_m: 0.1 } }
//	  - op: create-year
//	    year: 2030
//	  - op: apply-changes
//	    year: 2025
//	    changes: [insulate_walls]
//	    expect:
//	      outcome: committed
//	      reconciled: [2030]
//	snapshot:
//	  - year: 2030
//	    paths: [STANDARD1.construction_type.type_wall]
//	assertions:
//	  - type: value
//	    year: 2030
//	    path: STANDARD1.wall.thickness_1_m
//	    expect: "0.1"
//	  - type: consistent
//
// # Operations
//
// apply, apply-changes, create-year, remove-year, reconcile, ensure and
// bake map one to one onto the timeline operations of the same name.
//
// # Assertion Types
//
//   - value: the cell a state year holds for a recipe path
//   - years: the state years on disk
//   - logged: the years of the event log
//   - reconciliations: the number of reconciliation records of a year
//   - consistent: a comprehensive integrity check passes
//
// # Deterministic Testing
//
// Every run uses testutil.DeterministicClock and sequential transaction
// ids, so the rendered snapshot is byte-identical across runs.
package harness
