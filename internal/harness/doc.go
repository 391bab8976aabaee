// Package harness provides conformance testing for graphq queries.
//
// The harness compiles a schema, loads records into a fresh store, runs a
// sequence of query definitions through the executor and checks each result.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: |
//	  types: User: keys: {name: {}, age: kind: "int"}
//	backend: sqlite            # or memory
//	geocoder:
//	  Berlin: {lat: 52.52, lon: 13.405}
//	records:
//	  - id: u1
//	    type: User
//	    props: {name: Ada, age: 30}
//	steps:
//	  - name: adults
//	    query:
//	      type: User
//	      where:
//	        - compare: {key: age, op: ge, value: 18}
//	    expect:
//	      ids: [u1]
//	      skipped: 0
//	      route: index
//
// A scenario may reference a CUE file with schema_file instead of an inline
// schema; the path is relative to the scenario file.
//
// # Expectations
//
// Every expectation field is optional and only the ones set are checked:
//
//   - ids: the page, in order (or in any order with unordered: true)
//   - empty: no results
//   - skipped: matches before the page
//   - found: the answer of a ping query
//   - route: index or sources
//   - error: the error kind of a failed execution
//   - warnings: the number of value conversion warnings
//
// # Deterministic Testing
//
// Every execution reports the scenario's fixed execution ID and a sequence
// number from a fresh clock, whose first step is 1. Each scenario runs in its
// own in-memory store, so the same scenario always produces the same
// snapshot.
// RunWithGolden compares that snapshot with testdata/golden/<name>.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/users.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
