package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/cvxir/internal/ir"
)

// marshalJSON encodes v as compact JSON TEXT for storage.
// HTML escaping is disabled so stored text matches what was written.
func marshalJSON(what string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func marshalGraph(g *ir.Graph) (string, error) {
	return marshalJSON("graph", g)
}

func marshalLeaves(leaves []ir.LeafInfo) (string, error) {
	if leaves == nil {
		leaves = []ir.LeafInfo{}
	}
	return marshalJSON("leaves", leaves)
}

func marshalMatrix(m ir.Matrix) (string, error) {
	return marshalJSON("value", m)
}

func unmarshalGraph(data string) (*ir.Graph, error) {
	var g ir.Graph
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return &g, nil
}

func unmarshalLeaves(data string) ([]ir.LeafInfo, error) {
	leaves := []ir.LeafInfo{}
	if data == "" {
		return leaves, nil
	}
	if err := json.Unmarshal([]byte(data), &leaves); err != nil {
		return nil, fmt.Errorf("unmarshal leaves: %w", err)
	}
	return leaves, nil
}

func unmarshalMatrix(data string) (ir.Matrix, error) {
	var m ir.Matrix
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return ir.Matrix{}, fmt.Errorf("unmarshal value: %w", err)
	}
	if m.Rows*m.Cols != len(m.Data) {
		return ir.Matrix{}, fmt.Errorf("unmarshal value: %dx%d matrix with %d entries", m.Rows, m.Cols, len(m.Data))
	}
	return m, nil
}
