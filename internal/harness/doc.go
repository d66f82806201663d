// Package harness runs conformance scenarios against compiled models.
//
// A scenario names a model file, binds parameter and variable values, and
// states what compilation and canonicalization must produce.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: lasso_small
//	description: "norm1 objective lowers to two aux blocks"
//	model: ../models/lasso.cue     # relative to the scenario file
//	model_name: lasso              # required when the file declares several
//	parameters: { gamma: 2 }
//	variables: { x: [1, 0, -1] }
//	expect:
//	  dcp: true
//	  constraints: 6
//	  aux_variables: 2
//	  objective_value: 8
//	assertions:
//	  - type: curvature
//	    expr: fit
//	    expect: convex
//
// Expect fields are optional; only the ones present are checked. A scenario
// that expects an error sets error_code to the code reported by
// compiler.ErrorCode (E1xx, DCP_VIOLATION, VALIDATION, ...).
//
// # Assertion Types
//
//   - curvature: the expression's curvature (constant, affine, convex, concave, unknown)
//   - sign: the expression's sign (positive, negative, zero, unknown)
//   - shape: the expression's [rows, cols]
//   - value: the expression's numeric value under the bound values
//
// # Deterministic Testing
//
// Every scenario compiles its model with a private id allocator and
// canonicalizes through a fresh in-memory store, so the flattened graph is
// identical across runs and can be compared with a golden file.
package harness
