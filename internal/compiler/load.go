package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ModelsFromValue compiles every model declared under the "model" field of
// v, in declaration order. Compilation stops at the first failing model.
func ModelsFromValue(v cue.Value, opts ...Option) ([]*Model, error) {
	models := v.LookupPath(cue.ParsePath("model"))
	if !models.Exists() {
		return nil, &CompileError{Field: "model", Message: "no models found"}
	}
	iter, err := models.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []*Model
	for iter.Next() {
		m, err := CompileModel(iter.Value(), opts...)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", iter.Selector(), err)
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, &CompileError{Field: "model", Message: "no models found"}
	}
	return out, nil
}

// LoadFile compiles the models in a single file. A .cue file may declare
// several models under "model"; a .yaml or .yml file holds one model.
func LoadFile(path string, opts ...Option) ([]*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	switch filepath.Ext(path) {
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		return ModelsFromValue(v, opts...)
	case ".yaml", ".yml":
		m, err := CompileYAML(bytes.NewReader(data), opts...)
		if err != nil {
			return nil, err
		}
		return []*Model{m}, nil
	default:
		return nil, fmt.Errorf("unsupported model file %s: want .cue, .yaml or .yml", path)
	}
}
