package ir

// LinOpKind names a primitive linear operation. The set is closed.
type LinOpKind string

const (
	LinVariable    LinOpKind = "variable"     // reference to a variable leaf (or aux variable)
	LinParameter   LinOpKind = "parameter"    // reference to a parameter leaf
	LinScalarConst LinOpKind = "scalar_const" // 1x1 constant data
	LinDenseConst  LinOpKind = "dense_const"  // matrix constant data
	LinSum         LinOpKind = "sum"          // sum of equally shaped args
	LinNeg         LinOpKind = "neg"          // -arg
	LinMul         LinOpKind = "mul"          // Coeff * arg, Coeff constant
	LinRMul        LinOpKind = "rmul"         // arg * Coeff, Coeff constant
	LinPromote     LinOpKind = "promote"      // broadcast a 1x1 arg to Shape
	LinIndex       LinOpKind = "index"        // arg[Key]
	LinTranspose   LinOpKind = "transpose"    // arg^T
	LinReshape     LinOpKind = "reshape"      // column-major reshape
	LinSumEntries  LinOpKind = "sum_entries"  // 1x1 sum of all entries
	LinHStack      LinOpKind = "hstack"       // horizontal concatenation
	LinVStack      LinOpKind = "vstack"       // vertical concatenation
)

// ValidLinOpKinds lists every primitive kind.
var ValidLinOpKinds = map[LinOpKind]bool{
	LinVariable:    true,
	LinParameter:   true,
	LinScalarConst: true,
	LinDenseConst:  true,
	LinSum:         true,
	LinNeg:         true,
	LinMul:         true,
	LinRMul:        true,
	LinPromote:     true,
	LinIndex:       true,
	LinTranspose:   true,
	LinReshape:     true,
	LinSumEntries:  true,
	LinHStack:      true,
	LinVStack:      true,
}

// IsLeafKind reports whether the kind references a leaf or constant data.
func (k LinOpKind) IsLeafKind() bool {
	switch k {
	case LinVariable, LinParameter, LinScalarConst, LinDenseConst:
		return true
	}
	return false
}

// LinOp is a node of the linear-operation graph.
//
// Nodes are immutable once built. A node reachable along several paths is
// the same pointer on every path; the graph is a DAG.
type LinOp struct {
	Kind  LinOpKind `json:"kind"`
	Shape Shape     `json:"shape"`
	Args  []*LinOp  `json:"args,omitempty"`
	Leaf  LeafID    `json:"leaf,omitempty"`  // variable, parameter
	Value *Matrix   `json:"value,omitempty"` // scalar_const, dense_const
	Coeff *LinOp    `json:"coeff,omitempty"` // mul, rmul
	Key   *Key      `json:"key,omitempty"`   // index
}

// ConstraintKind is the relation of a generated constraint to zero.
type ConstraintKind string

const (
	// ConstraintEq means Expr == 0 entry-wise.
	ConstraintEq ConstraintKind = "eq"
	// ConstraintLeq means Expr <= 0 entry-wise.
	ConstraintLeq ConstraintKind = "leq"
)

// LinConstraint is a constraint over a lin-op expression.
type LinConstraint struct {
	ID   int64          `json:"id"`
	Kind ConstraintKind `json:"kind"`
	Expr *LinOp         `json:"expr"`
}

// CanonicalForm is the output of canonicalization: an affine representative
// and the ordered constraints that make it equivalent to the source tree.
type CanonicalForm struct {
	Root        *LinOp          `json:"root"`
	Constraints []LinConstraint `json:"constraints"`
}

// LeafKind classifies leaves in a leaf table.
type LeafKind string

const (
	LeafVariable  LeafKind = "variable"
	LeafParameter LeafKind = "parameter"
	LeafConstant  LeafKind = "constant"
	LeafAuxiliary LeafKind = "auxiliary"
)

// LeafInfo describes a leaf referenced by a canonical program.
type LeafInfo struct {
	ID    LeafID   `json:"id"`
	Kind  LeafKind `json:"kind"`
	Name  string   `json:"name"`
	Shape Shape    `json:"shape"`
	Sign  string   `json:"sign"`
}

// Sense is the optimization direction of an objective.
type Sense string

const (
	SenseMinimize Sense = "minimize"
	SenseMaximize Sense = "maximize"
)

// CanonicalProgram is a canonicalized objective plus constraints, with the
// table of leaves the solver interface must bind.
type CanonicalProgram struct {
	Sense       Sense           `json:"sense"`
	Objective   *LinOp          `json:"objective"`
	Constraints []LinConstraint `json:"constraints"`
	Leaves      []LeafInfo      `json:"leaves"`
}

// Form returns the program's objective and constraints as a CanonicalForm.
func (p *CanonicalProgram) Form() CanonicalForm {
	return CanonicalForm{Root: p.Objective, Constraints: p.Constraints}
}
