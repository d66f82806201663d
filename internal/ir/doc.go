// Package ir provides the intermediate representation shared by the
// expression layer and the canonicalization engine.
//
// This package contains the foundational value types: shapes, signs,
// curvature and monotonicity lattices, dense matrices, the closed
// linear-operation vocabulary, generated constraints and the flattened
// graph form, plus canonical JSON and content hashes over them.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - The lin-op vocabulary is closed; ValidLinOpKinds lists every kind
//   - Matrices are stored column-major, matching how affine maps vectorize
//   - Canonical JSON never carries raw floats; numbers become decimal strings
//   - All JSON tags use snake_case
package ir
