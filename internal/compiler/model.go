package compiler

import (
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/cvxir/internal/ir"
)

// ModelDef is the decoded form of a model file. CUE and YAML sources share
// this schema:
//
//	model: portfolio: {
//		variables: x: shape: [3, 1]
//		parameters: mu: {shape: [3, 1], value: [0.1, 0.2, 0.15]}
//		expressions: ret: "transpose(mu) * x"
//		objective: {sense: "maximize", expr: "ret - norm1(x)"}
//		constraints: ["sum(x) == 1", "x >= 0"]
//	}
type ModelDef struct {
	Name        string             `json:"name,omitempty" yaml:"name" validate:"required,ident"`
	Description string             `json:"description,omitempty" yaml:"description"`
	Variables   map[string]LeafDef `json:"variables,omitempty" yaml:"variables" validate:"dive,keys,ident,endkeys"`
	Parameters  map[string]LeafDef `json:"parameters,omitempty" yaml:"parameters" validate:"dive,keys,ident,endkeys"`
	Expressions map[string]string  `json:"expressions,omitempty" yaml:"expressions" validate:"dive,keys,ident,endkeys,required"`
	Objective   *ObjectiveDef      `json:"objective,omitempty" yaml:"objective"`
	Constraints []string           `json:"constraints,omitempty" yaml:"constraints" validate:"dive,required"`
}

// LeafDef declares a variable or parameter.
//
// Shape is [rows, cols] or [n] for an n x 1 column; it defaults to 1x1.
// Value is a number, a flat list (column vector) or a list of rows.
type LeafDef struct {
	Shape []int  `json:"shape,omitempty" yaml:"shape"`
	Sign  string `json:"sign,omitempty" yaml:"sign"`
	Value any    `json:"value,omitempty" yaml:"value"`
}

// Dims returns the declared rows and cols.
func (d LeafDef) Dims() (rows, cols int) {
	switch len(d.Shape) {
	case 0:
		return 1, 1
	case 1:
		return d.Shape[0], 1
	default:
		return d.Shape[0], d.Shape[1]
	}
}

// ObjectiveDef is the model objective.
type ObjectiveDef struct {
	Sense string `json:"sense" yaml:"sense" validate:"required,oneof=minimize maximize"`
	Expr  string `json:"expr" yaml:"expr" validate:"required"`
}

// StructureHash identifies everything canonicalization depends on: leaf
// names, shapes and signs, expressions, objective and constraints. Parameter
// values, the model name and the description are left out, so rebinding
// parameters keeps the hash.
func (d *ModelDef) StructureHash() (string, error) {
	leaves := func(m map[string]LeafDef) ir.IRObject {
		out := make(ir.IRObject, len(m))
		for name, l := range m {
			rows, cols := l.Dims()
			out[name] = ir.IRObject{
				"rows": ir.IRInt(rows),
				"cols": ir.IRInt(cols),
				"sign": ir.IRString(l.Sign),
			}
		}
		return out
	}
	exprs := make(ir.IRObject, len(d.Expressions))
	for name, src := range d.Expressions {
		exprs[name] = ir.IRString(src)
	}
	cons := make(ir.IRArray, len(d.Constraints))
	for i, src := range d.Constraints {
		cons[i] = ir.IRString(src)
	}
	v := ir.IRObject{
		"variables":   leaves(d.Variables),
		"parameters":  leaves(d.Parameters),
		"expressions": exprs,
		"constraints": cons,
	}
	if d.Objective != nil {
		v["objective"] = ir.IRObject{
			"sense": ir.IRString(d.Objective.Sense),
			"expr":  ir.IRString(d.Objective.Expr),
		}
	}
	return ir.ValueHash(ir.DomainModel, v)
}

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// modelValidate checks ModelDef struct tags. Initialized in init() with the
// custom "ident" rule.
var modelValidate *validator.Validate

func init() {
	modelValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = modelValidate.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
