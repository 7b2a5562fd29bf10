package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ScenarioResult holds the result of a single scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "mismatch", "updated" or "" when absent
	Errors []string `json:"errors,omitempty"`
}

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// SuiteOptions controls RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against the file name without extension.
	Filter string
	// Update rewrites golden files instead of comparing them.
	Update bool
}

// RunSuite runs every .yaml or .yml scenario under dir. Golden files live in
// dir/golden/<file name>.golden; a scenario without one is judged by its
// expectations and assertions alone.
func RunSuite(dir string, opts SuiteOptions) (*SuiteResult, error) {
	files, err := FindScenarios(dir, opts.Filter)
	if err != nil {
		return nil, err
	}
	res := &SuiteResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, f := range files {
		sr := runFile(f, opts.Update)
		if sr.Pass {
			res.Passed++
		} else {
			res.Failed++
		}
		res.Scenarios = append(res.Scenarios, sr)
	}
	return res, nil
}

// FindScenarios lists scenario files under dir in lexical order.
func FindScenarios(dir, filter string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenarios directory not found: %w", err)
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns the golden file path for a scenario file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func runFile(path string, update bool) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(path), File: path}
	scenario, err := LoadScenario(path)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Pass = result.Pass
	sr.Errors = result.Errors

	snap := Snapshot(scenario.Name, result)
	golden := GoldenPath(path)
	if update {
		if err := writeGolden(golden, snap); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, err.Error())
			return sr
		}
		sr.Golden = "updated"
		return sr
	}

	want, err := os.ReadFile(golden)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	case bytes.Equal(want, snap):
		sr.Golden = "match"
	default:
		sr.Golden = "mismatch"
		sr.Pass = false
		sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
	}
	return sr
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
