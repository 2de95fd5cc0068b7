// Package descriptor defines the normalized unit of discovered work.
package descriptor

import (
	"fmt"
	"path/filepath"
)

// Expectation is the outcome a test is expected to have.
// Manifests may carry custom tokens, which are preserved verbatim.
type Expectation string

const (
	ExpectPass Expectation = "pass"
	ExpectFail Expectation = "fail"
)

// Container records whether a path is itself a container of further tests.
// The zero value is ContainerUnknown, which is distinct from ContainerNo.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerNo
	ContainerYes
)

func (c Container) String() string {
	switch c {
	case ContainerNo:
		return "false"
	case ContainerYes:
		return "true"
	default:
		return "unknown"
	}
}

// Test describes one schedulable test unit. It is read-only once created.
type Test struct {
	Path      string
	Expected  Expectation
	Container Container
	Manifest  string
	Tags      []string
}

// SkippedTest is a manifest entry that was disabled and is never executed.
type SkippedTest struct {
	Path     string
	Expected Expectation
	Manifest string
	Reason   string
}

// New returns a descriptor for path with the default pass expectation.
// The path is resolved to an absolute, cleaned form.
func New(path string) (Test, error) {
	abs, err := Abs(path)
	if err != nil {
		return Test{}, err
	}
	return Test{Path: abs, Expected: ExpectPass}, nil
}

// Abs resolves path to an absolute, cleaned form.
func Abs(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}

// ExpectsFailure reports whether the test is expected to fail.
func (t Test) ExpectsFailure() bool {
	return t.Expected == ExpectFail
}

// Name returns the file name of the test.
func (t Test) Name() string {
	return filepath.Base(t.Path)
}

// HasAnyTag reports whether the test carries at least one of tags.
func (t Test) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, tag := range t.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}
