package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindModelFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(""), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "d.yaml"), []byte(""), 0644))

	cueFiles, yamlFiles, err := FindModelFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue")}, cueFiles)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml"), filepath.Join(dir, "c.yml")}, yamlFiles)
}

func TestLoadModels_Directory(t *testing.T) {
	result, errs := LoadModels(filepath.Join("testdata", "models"), LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 3, result.FileCount)

	var names []string
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"lasso", "box", "portfolio", "scalar"}, names)
}

func TestLoadModels_File(t *testing.T) {
	result, errs := LoadModels(filepath.Join("testdata", "models", "scalar.yaml"), LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, result.Models, 1)
	assert.Equal(t, "scalar", result.Models[0].Name)
	assert.Equal(t, 1, result.FileCount)
}

func TestLoadModels_NotFound(t *testing.T) {
	result, errs := LoadModels("/nonexistent", LoadModeCollectAll)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadModels_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	model := []byte("name: twin\nvariables:\n  x: {}\nobjective: {sense: minimize, expr: x}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yaml"), model, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.yaml"), model, 0644))

	result, errs := LoadModels(dir, LoadModeCollectAll)
	require.NotNil(t, result)
	assert.Len(t, result.Models, 1)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeDuplicateName, loadErr.Code)
	assert.Contains(t, loadErr.Message, `"twin"`)
}

func TestLoadModels_FailFastVsCollectAll(t *testing.T) {
	dir := t.TempDir()
	bad := []byte("name: bad\nvariables:\n  x: {shape: [0]}\nconstraints: [x <= 1]\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), bad, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("name: b\nvariabls: {}\n"), 0644))

	_, all := LoadModels(dir, LoadModeCollectAll)
	assert.Len(t, all, 2)

	_, first := LoadModels(dir, LoadModeFailFast)
	require.Len(t, first, 1)
	var loadErr *LoadError
	require.True(t, errors.As(first[0], &loadErr))
	assert.Equal(t, "E102", loadErr.Code)
}

func TestConvertCompileError(t *testing.T) {
	errs := convertCompileError(assert.AnError, "models/x.yaml")
	require.Len(t, errs, 1)
	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeGeneric, loadErr.Code)
	assert.Equal(t, "models/x.yaml", loadErr.Field)
}

func TestLoadError_Error(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no model files"}
	assert.Equal(t, "E003: no model files", err.Error())
}
