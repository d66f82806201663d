package ir

// Graph is the flattened, index-addressed form of a canonical form.
// Nodes are listed in post-order (arguments before their consumers) and each
// distinct LinOp appears exactly once, so shared sub-results are referenced
// by index rather than duplicated.
type Graph struct {
	Nodes       []GraphNode       `json:"nodes"`
	Root        int               `json:"root"`
	Constraints []GraphConstraint `json:"constraints"`
}

// GraphNode is one LinOp with its references replaced by node indices.
type GraphNode struct {
	Kind  LinOpKind `json:"kind"`
	Shape Shape     `json:"shape"`
	Args  []int     `json:"args,omitempty"`
	Leaf  LeafID    `json:"leaf,omitempty"`
	Value *Matrix   `json:"value,omitempty"`
	Coeff *int      `json:"coeff,omitempty"`
	Key   *Key      `json:"key,omitempty"`
}

// GraphConstraint references its expression node by index.
type GraphConstraint struct {
	ID   int64          `json:"id"`
	Kind ConstraintKind `json:"kind"`
	Expr int            `json:"expr"`
}

// canonicalValue converts the graph into the canonical value model.
func (g *Graph) canonicalValue() (IRValue, error) {
	nodes := make(IRArray, len(g.Nodes))
	for i, n := range g.Nodes {
		obj := IRObject{
			"kind":  IRString(n.Kind),
			"shape": shapeValue(n.Shape),
		}
		if len(n.Args) > 0 {
			args := make(IRArray, len(n.Args))
			for j, a := range n.Args {
				args[j] = IRInt(a)
			}
			obj["args"] = args
		}
		if n.Leaf != 0 {
			obj["leaf"] = IRInt(n.Leaf)
		}
		if n.Value != nil {
			v, err := matrixValue(*n.Value)
			if err != nil {
				return nil, err
			}
			obj["value"] = v
		}
		if n.Coeff != nil {
			obj["coeff"] = IRInt(*n.Coeff)
		}
		if n.Key != nil {
			obj["key"] = IRObject{
				"rows": sliceValue(n.Key.Rows),
				"cols": sliceValue(n.Key.Cols),
			}
		}
		nodes[i] = obj
	}

	cons := make(IRArray, len(g.Constraints))
	for i, c := range g.Constraints {
		cons[i] = IRObject{
			"id":   IRInt(c.ID),
			"kind": IRString(c.Kind),
			"expr": IRInt(c.Expr),
		}
	}

	return IRObject{
		"nodes":       nodes,
		"root":        IRInt(g.Root),
		"constraints": cons,
	}, nil
}

func shapeValue(s Shape) IRValue {
	return IRObject{"rows": IRInt(s.Rows), "cols": IRInt(s.Cols)}
}

func sliceValue(s Slice) IRValue {
	return IRObject{"start": IRInt(s.Start), "stop": IRInt(s.Stop), "step": IRInt(s.Step)}
}

func matrixValue(m Matrix) (IRValue, error) {
	data := make(IRArray, len(m.Data))
	for i, v := range m.Data {
		n, err := NewIRNumber(v)
		if err != nil {
			return nil, err
		}
		data[i] = n
	}
	return IRObject{
		"rows": IRInt(m.Rows),
		"cols": IRInt(m.Cols),
		"data": data,
	}, nil
}
