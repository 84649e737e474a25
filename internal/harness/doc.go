// Package harness runs merge point scenarios as executable contract tests.
//
// A scenario declares merge points, seeds their origin tables, runs a flow of
// insert, delete and purge steps against a fresh in-memory database and then
// checks assertions against the stored records and the union view.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: tracking_lifecycle
//	description: "What this scenario validates"
//	merge_points:
//	  - name: PositionOutput
//	    sources:
//	      - name: TrackingV1
//	        table: tracking_v1
//	        key: [nwb_file_name, interval, params_name]
//	        attributes: [n_frames]
//	setup:
//	  - source: TrackingV1
//	    rows:
//	      - {nwb_file_name: m1.nwb, interval: epoch 1, params_name: default, n_frames: 1200}
//	flow:
//	  - insert:
//	      - {nwb_file_name: m1.nwb, interval: epoch 1, params_name: default}
//	    expect:
//	      inserted: 1
//	  - delete:
//	      source: TrackingV1
//	      key: {nwb_file_name: m1.nwb, interval: epoch 1, params_name: default}
//	assertions:
//	  - type: dangling
//	    count: 1
//
// # Steps
//
//   - insert: admits one batch of candidate keys
//   - delete: removes an origin row, as an upstream deletion would
//   - purge: purges the records of the given full origin keys
//
// A step's expect clause names the outcome: inserted or deleted counts, or
// the error codes the step must fail with. A step without expect must
// succeed.
//
// # Assertion Types
//
//   - record_count: number of stored merge records
//   - bound_to: the record of a full origin key is bound to an origin
//   - not_merged: no record exists for a full origin key
//   - dangling: number of records whose origin row is gone
//   - union_row: exactly one union row matches where, with expected values
//   - union_origins: origin of every union row, in order
//
// # Deterministic Testing
//
// Batch ids come from testutil.SequentialBatchIDs and every scenario runs in
// an isolated in-memory SQLite database, so snapshots are reproducible and
// can be compared against golden files.
package harness
