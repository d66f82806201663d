package ir

// Curvature classifies an expression for DCP analysis.
//
// The lattice is constant < affine < {convex, concave} < unknown.
// Unknown marks a composition the DCP rules cannot certify.
type Curvature int

const (
	CurvatureConstant Curvature = iota
	CurvatureAffine
	CurvatureConvex
	CurvatureConcave
	CurvatureUnknown
)

func (c Curvature) String() string {
	switch c {
	case CurvatureConstant:
		return "constant"
	case CurvatureAffine:
		return "affine"
	case CurvatureConvex:
		return "convex"
	case CurvatureConcave:
		return "concave"
	default:
		return "unknown"
	}
}

// IsConstant reports whether the expression does not depend on any variable.
func (c Curvature) IsConstant() bool { return c == CurvatureConstant }

// IsAffine reports constant or affine.
func (c Curvature) IsAffine() bool { return c == CurvatureConstant || c == CurvatureAffine }

// IsConvex reports constant, affine or convex.
func (c Curvature) IsConvex() bool { return c.IsAffine() || c == CurvatureConvex }

// IsConcave reports constant, affine or concave.
func (c Curvature) IsConcave() bool { return c.IsAffine() || c == CurvatureConcave }

// IsDCP reports whether the curvature is certified.
func (c Curvature) IsDCP() bool { return c != CurvatureUnknown }

// Neg returns the curvature of -x.
func (c Curvature) Neg() Curvature {
	switch c {
	case CurvatureConvex:
		return CurvatureConcave
	case CurvatureConcave:
		return CurvatureConvex
	}
	return c
}

// CurvatureAdd returns the curvature of a sum.
func CurvatureAdd(a, b Curvature) Curvature {
	switch {
	case a == CurvatureUnknown || b == CurvatureUnknown:
		return CurvatureUnknown
	case a == CurvatureConstant:
		return b
	case b == CurvatureConstant:
		return a
	case a == CurvatureAffine:
		return b
	case b == CurvatureAffine:
		return a
	case a == b:
		return a
	}
	return CurvatureUnknown
}

// Monotonicity of an atom in one of its arguments.
type Monotonicity int

const (
	Increasing Monotonicity = iota
	Decreasing
	Nonmonotone
)

func (m Monotonicity) String() string {
	switch m {
	case Increasing:
		return "increasing"
	case Decreasing:
		return "decreasing"
	default:
		return "nonmonotone"
	}
}

// Compose returns the curvature an argument contributes once passed through
// a function with the given monotonicity in that argument.
func Compose(m Monotonicity, arg Curvature) Curvature {
	if arg == CurvatureConstant {
		return CurvatureConstant
	}
	switch m {
	case Increasing:
		return arg
	case Decreasing:
		return arg.Neg()
	}
	if arg == CurvatureAffine {
		return CurvatureAffine
	}
	return CurvatureUnknown
}

// DCPCurvature applies the DCP composition rule: the function's own
// curvature summed with each argument's composed contribution. An atom whose
// arguments are all constant is constant.
func DCPCurvature(fn Curvature, mono []Monotonicity, args []Curvature) Curvature {
	allConstant := true
	for _, a := range args {
		if a != CurvatureConstant {
			allConstant = false
			break
		}
	}
	if allConstant {
		return CurvatureConstant
	}

	result := fn
	for i, a := range args {
		result = CurvatureAdd(result, Compose(mono[i], a))
	}
	return result
}
