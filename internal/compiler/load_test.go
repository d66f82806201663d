package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/ir"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_CUE(t *testing.T) {
	path := writeFile(t, "models.cue", lassoCUE+`
model: box: {
	variables: x: shape: [2]
	constraints: ["x <= 1"]
}
`)
	models, err := LoadFile(path, DeterministicIDs())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "lasso", models[0].Name)
	assert.Equal(t, "box", models[1].Name)

	// Each model gets its own allocator.
	assert.Equal(t, ir.LeafID(1), models[0].Variables["x"].ID())
	assert.Equal(t, ir.LeafID(1), models[1].Variables["x"].ID())
	assert.NotSame(t, models[0].Arena, models[1].Arena)
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "lasso.yaml", lassoYAML)
	models, err := LoadFile(path, DeterministicIDs())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "lasso", models[0].Name)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "m.json", "{}"))
	assert.ErrorContains(t, err, "unsupported model file")

	_, err = LoadFile(writeFile(t, "empty.cue", "other: 1\n"))
	assert.ErrorContains(t, err, "no models found")

	_, err = LoadFile(writeFile(t, "bad.cue", "model: {\n"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "invalid.cue", `model: m: variables: x: shape: [0]`))
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestModelsFromValue_Order(t *testing.T) {
	v := cuecontext.New().CompileString(`
		model: zeta: {variables: x: {}, constraints: ["x <= 1"]}
		model: alpha: {variables: x: {}, constraints: ["x >= 0"]}
	`)
	models, err := ModelsFromValue(v)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "zeta", models[0].Name, "declaration order, not sorted")
}

func TestModel_Parse(t *testing.T) {
	m, err := compileCUE(t, lassoCUE, "model.lasso")
	require.NoError(t, err)

	e, err := m.Parse("fit + norm1(x)")
	require.NoError(t, err)
	assert.True(t, e.IsConvex())
	assert.Same(t, m.Arena, e.Arena())

	_, err = m.Parse("nope")
	assert.ErrorContains(t, err, `undefined name "nope"`)
}
