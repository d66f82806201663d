// Package linop builds, checks, flattens and evaluates the primitive
// linear-operation graph produced by canonicalization.
//
// The lin-op graph is the abstraction boundary between the DCP expression
// layer and the solver-interface layer that assembles standard-form
// matrices:
//
//	[expression tree] → canonicalize → [lin-op DAG + constraints] → Flatten → [ir.Graph]
//	                                                              → Eval / Coefficients
//
// VOCABULARY:
//
// The set of node kinds is closed (ir.LinOpKind). Every builder in this
// package enforces the kind's shape contract and returns an error wrapping
// ErrShape on violation:
//   - Variable, Parameter, Constant - leaf references and constant data
//   - Sum - equally shaped operands
//   - Neg, Transpose, Reshape, SumEntries, Promote, Index - unary reshaping
//   - Mul, RMul - multiplication by a variable-free coefficient
//   - HStack, VStack - concatenation
//
// SHARING:
//
// Nodes are immutable. A sub-result used twice is the same *ir.LinOp on both
// paths. Flatten keys on pointer identity, so a shared node appears once in
// the node table and is referenced by index from every consumer.
//
// EVALUATION:
//
// Eval computes a node's value from an Env of leaf values. Coefficients
// recovers the Jacobian of an affine node with respect to each variable by
// unit perturbation; it exists for verification, not for matrix assembly.
package linop
