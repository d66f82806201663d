package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cvxir/internal/compiler"
)

// LoadMode controls how errors are handled during model loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the models loaded from a file or directory.
type LoadResult struct {
	Models    []*compiler.Model
	FileCount int // Number of model files found
}

// LoadError represents an error that occurred during model loading.
type LoadError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants for load failures. Model errors keep the code
// reported by compiler.ErrorCode (E1xx, CONSTRUCTION, ...).
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No model files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeDuplicateName = "E008" // Two files declare the same model
)

// LoadModels loads and compiles the models in path. A file is compiled on
// its own; a directory contributes its CUE package and every YAML file
// directly inside it. Every model gets its own deterministic id sequence.
// If mode is LoadModeFailFast, returns on first error.
func LoadModels(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("models path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing models path: %v", err)}}
	}

	if !info.IsDir() {
		models, err := compiler.LoadFile(path, compiler.DeterministicIDs())
		if err != nil {
			return &LoadResult{FileCount: 1}, convertCompileError(err, path)
		}
		return &LoadResult{Models: models, FileCount: 1}, nil
	}

	cueFiles, yamlFiles, err := FindModelFiles(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles)+len(yamlFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no model files found in %s", path)}}
	}

	result := &LoadResult{FileCount: len(cueFiles) + len(yamlFiles)}
	var errs []error
	seen := make(map[string]bool)
	add := func(m *compiler.Model) {
		if seen[m.Name] {
			errs = append(errs, &LoadError{Code: ErrCodeDuplicateName, Field: "model", Message: fmt.Sprintf("model %q declared more than once", m.Name)})
			return
		}
		seen[m.Name] = true
		result.Models = append(result.Models, m)
	}

	if len(cueFiles) > 0 {
		value, loadErr := buildCUE(path)
		if loadErr != nil {
			return nil, []error{loadErr}
		}
		modelsVal := value.LookupPath(cue.ParsePath("model"))
		if modelsVal.Exists() {
			iter, iterErr := modelsVal.Fields()
			if iterErr != nil {
				errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating models: %v", iterErr)})
				if mode == LoadModeFailFast {
					return result, errs
				}
			} else {
				for iter.Next() {
					m, compileErr := compiler.CompileModel(iter.Value(), compiler.DeterministicIDs())
					if compileErr != nil {
						errs = append(errs, convertCompileError(compileErr, "model."+iter.Selector().String())...)
						if mode == LoadModeFailFast {
							return result, errs
						}
						continue
					}
					add(m)
				}
			}
		}
	}

	for _, file := range yamlFiles {
		models, compileErr := compiler.LoadFile(file, compiler.DeterministicIDs())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, file)...)
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		for _, m := range models {
			add(m)
		}
	}

	if len(result.Models) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no models found"})
	}
	return result, errs
}

// buildCUE loads the CUE package in dir.
func buildCUE(dir string) (cue.Value, *LoadError) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return value, nil
}

// FindModelFiles returns the .cue and .yaml/.yml files directly inside dir.
// Subdirectories are not searched; cue/load only builds the package in dir.
func FindModelFiles(dir string) (cueFiles, yamlFiles []string, err error) {
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".cue":
			cueFiles = append(cueFiles, path)
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, path)
		}
		return nil
	})
	return cueFiles, yamlFiles, err
}

// convertCompileError converts a compiler error to LoadErrors. Validation
// errors expand to one LoadError each.
func convertCompileError(err error, context string) []error {
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]error, len(verrs))
		for i, v := range verrs {
			out[i] = &LoadError{Code: v.Code, Field: context + ": " + v.Field, Message: v.Message}
		}
		return out
	}

	code := compiler.ErrorCode(err)
	if code == "COMPILE" || code == "ERROR" {
		code = ErrCodeGeneric
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return []error{&LoadError{
			Code:    code,
			Field:   context + ": " + compileErr.Field,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}}
	}
	return []error{&LoadError{
		Code:    code,
		Field:   context,
		Message: fmt.Sprintf("%s: %v", context, err),
	}}
}
