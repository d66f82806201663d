package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ir"
)

// Expression sources use CUE expression syntax, parsed with the CUE parser:
//
//	transpose(mu) * x - gamma * norm1(x)
//	max(x, y)[1]
//	sum(x) == 1
//
// Identifiers name declared leaves or named expressions. Calls name atom
// functions. Numeric literals and list literals become constants.

// function describes one callable atom: exprs expression arguments (-1 for
// one or more) followed by ints integer literal arguments.
type function struct {
	exprs int
	ints  int
	build func(xs []*expr.Expr, ns []int) (*expr.Expr, error)
}

func unary(f func(*expr.Expr) (*expr.Expr, error)) function {
	return function{exprs: 1, build: func(xs []*expr.Expr, _ []int) (*expr.Expr, error) { return f(xs[0]) }}
}

func variadic(f func(...*expr.Expr) (*expr.Expr, error)) function {
	return function{exprs: -1, build: func(xs []*expr.Expr, _ []int) (*expr.Expr, error) { return f(xs...) }}
}

// functions maps call names to atom constructors.
var functions = map[string]function{
	"abs":         unary(expr.Abs),
	"pos":         unary(expr.Pos),
	"neg_part":    unary(expr.NegPart),
	"neg":         unary(expr.Neg),
	"transpose":   unary(expr.Transpose),
	"sum":         unary(expr.SumEntries),
	"sum_entries": unary(expr.SumEntries),
	"max_entries": unary(expr.MaxEntries),
	"min_entries": unary(expr.MinEntries),
	"norm1":       unary(expr.Norm1),
	"norm_inf":    unary(expr.NormInf),
	"max":         variadic(expr.MaxElemwise),
	"min":         variadic(expr.MinElemwise),
	"hstack":      variadic(expr.HStack),
	"vstack":      variadic(expr.VStack),
	"reshape": {exprs: 1, ints: 2, build: func(xs []*expr.Expr, ns []int) (*expr.Expr, error) {
		return expr.Reshape(xs[0], ns[0], ns[1])
	}},
	"at": {exprs: 1, ints: 2, build: func(xs []*expr.Expr, ns []int) (*expr.Expr, error) {
		return expr.At(xs[0], ns[0], ns[1])
	}},
	// index(x, row_start, row_stop, col_start, col_stop)
	"index": {exprs: 1, ints: 4, build: func(xs []*expr.Expr, ns []int) (*expr.Expr, error) {
		return expr.Index(xs[0],
			ir.Slice{Start: ns[0], Stop: ns[1], Step: 1},
			ir.Slice{Start: ns[2], Stop: ns[3], Step: 1})
	}},
}

// Functions returns the callable names in sorted order.
func Functions() []string {
	return sortedKeys(functions)
}

// exprError is a problem at a column of an expression source.
type exprError struct {
	Col     int
	Message string
}

func (e *exprError) Error() string {
	if e.Col > 0 {
		return fmt.Sprintf("column %d: %s", e.Col, e.Message)
	}
	return e.Message
}

func errAt(n ast.Node, format string, args ...any) error {
	col := 0
	if p := n.Pos(); p.IsValid() {
		col = p.Column()
	}
	return &exprError{Col: col, Message: fmt.Sprintf(format, args...)}
}

func parseSource(src string) (ast.Expr, error) {
	n, err := parser.ParseExpr("expr", src)
	if err != nil {
		return nil, &exprError{Message: fmt.Sprintf("syntax error: %v", err)}
	}
	return n, nil
}

// referencedNames returns the sorted, unique identifiers a source refers to,
// excluding function names.
func referencedNames(src string) ([]string, error) {
	n, err := parseSource(src)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	collectNames(n, set)
	return sortedKeys(set), nil
}

func collectNames(n ast.Expr, set map[string]bool) {
	switch n := n.(type) {
	case *ast.Ident:
		set[n.Name] = true
	case *ast.ParenExpr:
		collectNames(n.X, set)
	case *ast.UnaryExpr:
		collectNames(n.X, set)
	case *ast.BinaryExpr:
		collectNames(n.X, set)
		collectNames(n.Y, set)
	case *ast.CallExpr:
		for _, a := range n.Args {
			collectNames(a, set)
		}
	case *ast.IndexExpr:
		collectNames(n.X, set)
	case *ast.SelectorExpr:
		collectNames(n.X, set)
	}
}

// scope resolves identifiers while building expressions.
type scope struct {
	arena *expr.Arena
	names map[string]*expr.Expr
}

// parseExpr builds the expression tree for src.
func (s *scope) parseExpr(src string) (*expr.Expr, error) {
	n, err := parseSource(src)
	if err != nil {
		return nil, err
	}
	if b, ok := n.(*ast.BinaryExpr); ok && isComparison(b.Op) {
		return nil, errAt(b, "comparison %s is only allowed in constraints", b.Op)
	}
	return s.build(n)
}

// parseConstraint builds lhs <= rhs, lhs >= rhs or lhs == rhs.
func (s *scope) parseConstraint(src string) (*expr.Constraint, error) {
	n, err := parseSource(src)
	if err != nil {
		return nil, err
	}
	b, ok := n.(*ast.BinaryExpr)
	if !ok || !isComparison(b.Op) {
		return nil, errAt(n, "constraint must compare two expressions with <=, >= or ==")
	}
	lhs, err := s.build(b.X)
	if err != nil {
		return nil, err
	}
	rhs, err := s.build(b.Y)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case token.LEQ:
		return expr.Leq(lhs, rhs)
	case token.GEQ:
		return expr.Geq(lhs, rhs)
	case token.EQL:
		return expr.Eq(lhs, rhs)
	}
	return nil, errAt(b, "strict comparison %s is not supported, use %s=", b.Op, b.Op)
}

func isComparison(op token.Token) bool {
	switch op {
	case token.LEQ, token.GEQ, token.EQL, token.LSS, token.GTR:
		return true
	}
	return false
}

func (s *scope) build(n ast.Expr) (*expr.Expr, error) {
	if v, ok := literalNumber(n); ok {
		return s.arena.Constant(v)
	}

	switch n := n.(type) {
	case *ast.ParenExpr:
		return s.build(n.X)

	case *ast.Ident:
		e, ok := s.names[n.Name]
		if !ok {
			return nil, errAt(n, "undefined name %q", n.Name)
		}
		return e, nil

	case *ast.ListLit:
		v, err := literalList(n)
		if err != nil {
			return nil, err
		}
		return s.arena.Constant(v)

	case *ast.UnaryExpr:
		x, err := s.build(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.SUB:
			return expr.Neg(x)
		case token.ADD:
			return x, nil
		}
		return nil, errAt(n, "unsupported unary operator %s", n.Op)

	case *ast.BinaryExpr:
		return s.binary(n)

	case *ast.CallExpr:
		return s.call(n)

	case *ast.IndexExpr:
		return s.index(n)

	case *ast.SelectorExpr:
		if sel, ok := n.Sel.(*ast.Ident); ok && sel.Name == "T" {
			x, err := s.build(n.X)
			if err != nil {
				return nil, err
			}
			return expr.Transpose(x)
		}
		return nil, errAt(n, "only the .T selector is supported")
	}
	return nil, errAt(n, "unsupported syntax %T", n)
}

func (s *scope) binary(n *ast.BinaryExpr) (*expr.Expr, error) {
	switch n.Op {
	case token.ADD:
		// a + b + c is one variadic add
		var terms []*expr.Expr
		for _, t := range flattenAdd(n) {
			e, err := s.build(t)
			if err != nil {
				return nil, err
			}
			terms = append(terms, e)
		}
		return expr.Add(terms...)
	case token.QUO:
		d, ok := literalNumber(n.Y)
		if !ok {
			return nil, errAt(n.Y, "division is only defined by a numeric literal")
		}
		if d == 0 {
			return nil, errAt(n.Y, "division by zero")
		}
		x, err := s.build(n.X)
		if err != nil {
			return nil, err
		}
		c, err := s.arena.Constant(1 / d)
		if err != nil {
			return nil, err
		}
		return expr.Mul(x, c)
	}

	x, err := s.build(n.X)
	if err != nil {
		return nil, err
	}
	y, err := s.build(n.Y)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.SUB:
		return expr.Sub(x, y)
	case token.MUL:
		return expr.Mul(x, y)
	}
	if isComparison(n.Op) {
		return nil, errAt(n, "comparison %s is only allowed at the top of a constraint", n.Op)
	}
	return nil, errAt(n, "unsupported operator %s", n.Op)
}

func flattenAdd(n ast.Expr) []ast.Expr {
	if b, ok := n.(*ast.BinaryExpr); ok && b.Op == token.ADD {
		return append(flattenAdd(b.X), b.Y)
	}
	return []ast.Expr{n}
}

func (s *scope) call(n *ast.CallExpr) (*expr.Expr, error) {
	id, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, errAt(n, "call target must be a function name")
	}
	fn, ok := functions[id.Name]
	if !ok {
		return nil, errAt(id, "unknown function %q (known: %s)", id.Name, strings.Join(Functions(), ", "))
	}

	nexprs := fn.exprs
	if nexprs < 0 {
		nexprs = len(n.Args) - fn.ints
		if nexprs < 1 {
			return nil, errAt(n, "%s needs at least one argument", id.Name)
		}
	}
	if len(n.Args) != nexprs+fn.ints {
		return nil, errAt(n, "%s takes %d arguments, got %d", id.Name, nexprs+fn.ints, len(n.Args))
	}

	xs := make([]*expr.Expr, nexprs)
	for i := range xs {
		x, err := s.build(n.Args[i])
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	ns := make([]int, fn.ints)
	for i := range ns {
		a := n.Args[nexprs+i]
		v, ok := literalInt(a)
		if !ok {
			return nil, errAt(a, "%s argument %d must be an integer literal", id.Name, nexprs+i+1)
		}
		ns[i] = v
	}
	e, err := fn.build(xs, ns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id.Name, err)
	}
	return e, nil
}

// index handles x[i] on a column and x[i][j] on a matrix.
func (s *scope) index(n *ast.IndexExpr) (*expr.Expr, error) {
	j, ok := literalInt(n.Index)
	if !ok {
		return nil, errAt(n.Index, "index must be an integer literal")
	}
	if inner, ok := n.X.(*ast.IndexExpr); ok {
		i, ok := literalInt(inner.Index)
		if !ok {
			return nil, errAt(inner.Index, "index must be an integer literal")
		}
		x, err := s.build(inner.X)
		if err != nil {
			return nil, err
		}
		return expr.At(x, i, j)
	}
	x, err := s.build(n.X)
	if err != nil {
		return nil, err
	}
	return expr.At(x, j, 0)
}

// literalNumber folds a numeric literal with optional sign and parentheses.
func literalNumber(n ast.Expr) (float64, bool) {
	switch n := n.(type) {
	case *ast.BasicLit:
		s := strings.ReplaceAll(n.Value, "_", "")
		switch n.Kind {
		case token.INT:
			v, err := strconv.ParseInt(s, 0, 64)
			return float64(v), err == nil
		case token.FLOAT:
			v, err := strconv.ParseFloat(s, 64)
			return v, err == nil
		}
	case *ast.UnaryExpr:
		v, ok := literalNumber(n.X)
		switch {
		case !ok:
		case n.Op == token.SUB:
			return -v, true
		case n.Op == token.ADD:
			return v, true
		}
	case *ast.ParenExpr:
		return literalNumber(n.X)
	}
	return 0, false
}

func literalInt(n ast.Expr) (int, bool) {
	b, ok := n.(*ast.BasicLit)
	if !ok || b.Kind != token.INT {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.ReplaceAll(b.Value, "_", ""), 0, 64)
	return int(v), err == nil
}

// literalList reads [1, 2] as a column and [[1, 2], [3, 4]] as rows.
func literalList(n *ast.ListLit) (ir.Matrix, error) {
	if len(n.Elts) == 0 {
		return ir.Matrix{}, errAt(n, "empty list literal")
	}
	if _, nested := n.Elts[0].(*ast.ListLit); !nested {
		col, err := literalRow(n)
		if err != nil {
			return ir.Matrix{}, err
		}
		return ir.ColumnVector(col)
	}
	rows := make([][]float64, len(n.Elts))
	for i, e := range n.Elts {
		r, ok := e.(*ast.ListLit)
		if !ok {
			return ir.Matrix{}, errAt(e, "row %d is not a list", i)
		}
		row, err := literalRow(r)
		if err != nil {
			return ir.Matrix{}, err
		}
		rows[i] = row
	}
	m, err := ir.MatrixFromRows(rows)
	if err != nil {
		return ir.Matrix{}, errAt(n, "%v", err)
	}
	return m, nil
}

func literalRow(n *ast.ListLit) ([]float64, error) {
	out := make([]float64, len(n.Elts))
	for i, e := range n.Elts {
		v, ok := literalNumber(e)
		if !ok {
			return nil, errAt(e, "list entries must be numeric literals")
		}
		out[i] = v
	}
	return out, nil
}
