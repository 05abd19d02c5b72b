// Package suite runs several scenario files in one shared browser session.
package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hairizuan-noorazman/ui-harness/scenario"
)

var (
	// ErrSuiteNotFound is returned when the suite file or the named suite
	// does not exist.
	ErrSuiteNotFound = errors.New("suite not found")

	// ErrInvalidSuite is returned for a malformed suite file.
	ErrInvalidSuite = errors.New("invalid suite")
)

// File is a suite file: a list of named suites.
type File struct {
	Scenarios []Definition `yaml:"scenarios" json:"scenarios"`

	// Dir is the directory scenario files are resolved against.
	Dir string `yaml:"-" json:"-"`
}

// Definition is one named suite.
type Definition struct {
	Name              string   `yaml:"name" json:"name"`
	Description       string   `yaml:"description,omitempty" json:"description,omitempty"`
	ContinueOnFailure bool     `yaml:"continue_on_failure,omitempty" json:"continue_on_failure,omitempty"`
	Files             []string `yaml:"files" json:"files"`
}

// Load reads a suite file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSuiteNotFound, path)
		}
		return nil, fmt.Errorf("failed to read suite %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Dir = filepath.Dir(path)
	return f, nil
}

// Parse decodes and validates a suite document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuite, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names are present and unique and every suite lists files.
func (f *File) Validate() error {
	if len(f.Scenarios) == 0 {
		return fmt.Errorf("%w: no scenarios defined", ErrInvalidSuite)
	}
	seen := map[string]bool{}
	for i, d := range f.Scenarios {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: entry %d has no name", ErrInvalidSuite, i)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidSuite, d.Name)
		}
		seen[d.Name] = true
		if len(d.Files) == 0 {
			return fmt.Errorf("%w: %q lists no files", ErrInvalidSuite, d.Name)
		}
	}
	return nil
}

// Names returns the suite names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Scenarios))
	for i, d := range f.Scenarios {
		names[i] = d.Name
	}
	return names
}

// Find returns the named suite.
func (f *File) Find(name string) (Definition, error) {
	for _, d := range f.Scenarios {
		if d.Name == name {
			return d, nil
		}
	}
	names := f.Names()
	sort.Strings(names)
	return Definition{}, fmt.Errorf("%w: %q (available: %s)", ErrSuiteNotFound, name, strings.Join(names, ", "))
}

// LoadScenarios reads every scenario file of d, relative to the suite file.
func (f *File) LoadScenarios(d Definition) ([]*scenario.Scenario, error) {
	out := make([]*scenario.Scenario, 0, len(d.Files))
	for _, name := range d.Files {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(f.Dir, path)
		}
		sc, err := scenario.Load(path)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}
