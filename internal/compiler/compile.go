package compiler

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ident"
	"github.com/roach88/cvxir/internal/ir"
)

// Model is a compiled model: its leaves, named expressions, objective and
// constraints, all built in one arena.
type Model struct {
	Name        string
	Description string
	Def         *ModelDef
	Arena       *expr.Arena
	Variables   map[string]*expr.Expr
	Parameters  map[string]*expr.Expr
	Expressions map[string]*expr.Expr
	Objective   *expr.Objective
	Constraints []*expr.Constraint

	// Feasibility is set when the definition has no objective; Objective
	// then minimizes the constant 0.
	Feasibility bool
}

// Option configures compilation.
type Option func(*options)

type options struct {
	arena    *expr.Arena
	newArena func() *expr.Arena
}

// WithArena builds the model's leaves in a. Use an arena with a private
// allocator for deterministic ids.
func WithArena(a *expr.Arena) Option {
	return func(o *options) { o.arena = a }
}

// DeterministicIDs gives every compiled model its own arena and allocator,
// so equal models get equal leaf ids. WithArena takes precedence.
func DeterministicIDs() Option {
	return func(o *options) {
		o.newArena = func() *expr.Arena {
			return expr.NewArena(expr.WithAllocator(ident.New()))
		}
	}
}

// CompileModel parses a CUE value into a Model.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: lasso: { ... }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.lasso")))
func CompileModel(v cue.Value, opts ...Option) (*Model, error) {
	def, err := DecodeCUE(v)
	if err != nil {
		return nil, err
	}
	return compile(def, cuePositioner(v), opts)
}

// DecodeCUE decodes a CUE model value into a ModelDef. The name defaults to
// the value's label.
func DecodeCUE(v cue.Value) (*ModelDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	var def ModelDef
	if err := v.Decode(&def); err != nil {
		return nil, formatCUEError(err)
	}
	if def.Name == "" {
		labels := v.Path().Selectors()
		if len(labels) > 0 {
			def.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
		}
	}
	return &def, nil
}

// DecodeYAML decodes a YAML model document. Unknown fields are rejected.
func DecodeYAML(r io.Reader) (*ModelDef, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var def ModelDef
	if err := dec.Decode(&def); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error(), Err: err}
	}
	return &def, nil
}

// CompileYAML decodes and compiles a YAML model document.
func CompileYAML(r io.Reader, opts ...Option) (*Model, error) {
	def, err := DecodeYAML(r)
	if err != nil {
		return nil, err
	}
	return Compile(def, opts...)
}

// Compile validates def and builds its expression trees.
func Compile(def *ModelDef, opts ...Option) (*Model, error) {
	return compile(def, nil, opts)
}

// positioner maps a field path such as "constraints[0]" to a source position.
type positioner func(field string) token.Pos

func cuePositioner(v cue.Value) positioner {
	return func(field string) token.Pos {
		return v.LookupPath(cue.ParsePath(field)).Pos()
	}
}

func compile(def *ModelDef, pos positioner, opts []Option) (*Model, error) {
	if errs := Validate(def); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.arena != nil:
	case o.newArena != nil:
		o.arena = o.newArena()
	default:
		o.arena = expr.NewArena()
	}

	c := &compilation{def: def, pos: pos}
	m := &Model{
		Name:        def.Name,
		Description: def.Description,
		Def:         def,
		Arena:       o.arena,
		Variables:   make(map[string]*expr.Expr, len(def.Variables)),
		Parameters:  make(map[string]*expr.Expr, len(def.Parameters)),
		Expressions: make(map[string]*expr.Expr, len(def.Expressions)),
	}
	s := &scope{arena: o.arena, names: make(map[string]*expr.Expr)}

	// Leaves in sorted order, variables first, so ids are reproducible.
	for _, name := range sortedKeys(def.Variables) {
		e, err := c.leaf(o.arena.Variable, "variables."+name, name, def.Variables[name])
		if err != nil {
			return nil, err
		}
		m.Variables[name] = e
		s.names[name] = e
	}
	for _, name := range sortedKeys(def.Parameters) {
		e, err := c.leaf(o.arena.Parameter, "parameters."+name, name, def.Parameters[name])
		if err != nil {
			return nil, err
		}
		m.Parameters[name] = e
		s.names[name] = e
	}

	for _, name := range evaluationOrder(def.Expressions) {
		field := "expressions." + name
		e, err := s.parseExpr(def.Expressions[name])
		if err != nil {
			return nil, c.wrap(field, err)
		}
		m.Expressions[name] = e
		s.names[name] = e
	}

	if def.Objective != nil {
		e, err := s.parseExpr(def.Objective.Expr)
		if err != nil {
			return nil, c.wrap("objective.expr", err)
		}
		if def.Objective.Sense == string(ir.SenseMaximize) {
			m.Objective, err = expr.Maximize(e)
		} else {
			m.Objective, err = expr.Minimize(e)
		}
		if err != nil {
			return nil, c.wrap("objective.expr", err)
		}
	} else {
		zero, err := o.arena.Constant(0.0)
		if err != nil {
			return nil, c.wrap("objective", err)
		}
		if m.Objective, err = expr.Minimize(zero); err != nil {
			return nil, c.wrap("objective", err)
		}
		m.Feasibility = true
	}

	for i, src := range def.Constraints {
		field := fmt.Sprintf("constraints[%d]", i)
		con, err := s.parseConstraint(src)
		if err != nil {
			return nil, c.wrap(field, err)
		}
		m.Constraints = append(m.Constraints, con)
	}
	return m, nil
}

type compilation struct {
	def *ModelDef
	pos positioner
}

func (c *compilation) leaf(
	mk func(rows, cols int, opts ...expr.LeafOption) (*expr.Expr, error),
	field, name string,
	d LeafDef,
) (*expr.Expr, error) {
	rows, cols := d.Dims()
	opts := []expr.LeafOption{expr.WithName(name)}
	if d.Sign != "" {
		opts = append(opts, expr.WithSign(d.Sign))
	}
	if d.Value != nil {
		opts = append(opts, expr.WithValue(d.Value))
	}
	e, err := mk(rows, cols, opts...)
	if err != nil {
		return nil, c.wrap(field, err)
	}
	return e, nil
}

func (c *compilation) wrap(field string, err error) error {
	ce := &CompileError{Field: field, Message: err.Error(), Err: err}
	if c.pos != nil {
		ce.Pos = c.pos(field)
	}
	return ce
}

// Canonicalize lowers the model's objective and constraints.
func (m *Model) Canonicalize(c *expr.Canonicalizer) (*ir.CanonicalProgram, error) {
	if c == nil {
		c = expr.NewCanonicalizer()
	}
	return c.CanonicalizeProgram(m.Objective, m.Constraints...)
}

// Parse builds src in the model's scope. Declared leaves and named
// expressions may be referenced.
func (m *Model) Parse(src string) (*expr.Expr, error) {
	s := &scope{arena: m.Arena, names: make(map[string]*expr.Expr)}
	for _, group := range []map[string]*expr.Expr{m.Variables, m.Parameters, m.Expressions} {
		for name, e := range group {
			s.names[name] = e
		}
	}
	return s.parseExpr(src)
}

// Leaf returns the declared variable or parameter with the given name.
func (m *Model) Leaf(name string) (*expr.Expr, bool) {
	if e, ok := m.Variables[name]; ok {
		return e, true
	}
	e, ok := m.Parameters[name]
	return e, ok
}

// Bind assigns values to declared parameters and variables by name.
func (m *Model) Bind(values map[string]any) error {
	for _, name := range sortedKeys(values) {
		e, ok := m.Leaf(name)
		if !ok {
			return fmt.Errorf("bind %s: no such parameter or variable", name)
		}
		if err := e.SetValue(values[name]); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}

// ValidationErrors is returned by Compile when the definition fails
// Validate.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(v), strings.Join(msgs, "; "))
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

// IsCompileError reports whether err is a *CompileError or ValidationErrors.
func IsCompileError(err error) bool {
	var ce *CompileError
	var ve ValidationErrors
	return errors.As(err, &ce) || errors.As(err, &ve)
}

// ErrorCode classifies a compile or canonicalization error for reports: the
// first E1xx code of ValidationErrors, the code of an expression error,
// COMPILE for other compile errors and ERROR otherwise. It returns "" for a
// nil error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var verrs ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Code
	}
	if code := expr.CodeOf(err); code != "" {
		return string(code)
	}
	if IsCompileError(err) {
		return "COMPILE"
	}
	return "ERROR"
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
			Err:     err,
		}
	}
	return err
}
