package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/pedro/internal/compiler"
)

// Loader error codes.
const (
	ErrCodeNotFound   = "E001" // manifest file missing
	ErrCodeCompile    = "E002" // CUE did not compile or match the schema
	ErrCodeValidation = "E003" // manifest failed validation
)

// LoadError represents an error that occurred while loading a manifest.
type LoadError struct {
	Code    string
	Message string
	Errors  []compiler.ValidationError
}

func (e *LoadError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Errors[0])
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadManifest compiles and validates a session manifest.
func LoadManifest(path string) (*compiler.Manifest, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing manifest: %v", err)}
	}
	m, err := compiler.LoadManifest(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCompile, Message: err.Error()}
	}
	if verrs := compiler.Validate(m); len(verrs) > 0 {
		return m, &LoadError{Code: ErrCodeValidation, Message: "manifest is invalid", Errors: verrs}
	}
	return m, nil
}
