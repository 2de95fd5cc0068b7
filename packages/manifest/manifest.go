// Package manifest reads declarative test manifests.
//
// A manifest lists test files together with their expected outcome and,
// optionally, a reason they are disabled. Three formats are understood,
// selected by file extension:
//   - INI (.ini): one [path] section per test plus an inherited [DEFAULT]
//   - YAML (.yaml, .yml): a defaults table and a tests list
//   - TOML (.toml): the same layout as YAML
//
// Tests may also be disabled conditionally through skip-if and run-if
// expressions evaluated against the values given with WithValues.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
)

// DefaultExpected is the expectation given to entries that do not set one.
const DefaultExpected = "pass"

// Entry is one test listed by a manifest.
type Entry struct {
	Path     string
	Expected string
	Disabled string
	Tags     []string
}

// Manifest is the capability the harness needs from a manifest reader.
type Manifest interface {
	// Read loads the manifest at path. It fails with a failure.NotFound error
	// when the file is absent.
	Read(path string) error
	// ActiveTests returns every entry read so far, with disabled reasons
	// filled in from the entry itself or from its conditions.
	ActiveTests() ([]Entry, error)
}

// rawTest is a manifest entry as decoded, before defaults and conditions apply.
type rawTest struct {
	Path     string   `yaml:"path" toml:"path"`
	Expected string   `yaml:"expected" toml:"expected"`
	Disabled string   `yaml:"disabled" toml:"disabled"`
	SkipIf   []string `yaml:"skip-if" toml:"skip-if"`
	RunIf    []string `yaml:"run-if" toml:"run-if"`
	Tags     []string `yaml:"tags" toml:"tags"`
}

// document is the decoded form shared by every format.
type document struct {
	Defaults rawTest   `yaml:"defaults" toml:"defaults"`
	Tests    []rawTest `yaml:"tests" toml:"tests"`
}

type decoder func(data []byte) (*document, error)

var decoders = map[string]decoder{
	".ini":  decodeINI,
	".yaml": decodeYAML,
	".yml":  decodeYAML,
	".toml": decodeTOML,
}

// IsManifest reports whether path has a manifest file extension.
func IsManifest(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the recognized manifest extensions.
func Extensions() []string {
	return []string{".ini", ".toml", ".yaml", ".yml"}
}

// File is a Manifest backed by files on disk.
type File struct {
	decode decoder
	values map[string]any
	tests  []rawTest
}

type Option func(*File)

// WithValues sets the values skip-if and run-if conditions are evaluated against.
func WithValues(values map[string]any) Option {
	return func(f *File) {
		f.values = values
	}
}

// Open returns a reader for the manifest format of path.
// It returns false if path does not have a manifest extension.
func Open(path string, opts ...Option) (*File, bool) {
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, false
	}
	f := &File{
		decode: dec,
		values: make(map[string]any),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, true
}

func (f *File) Read(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failure.NotFoundf(path, "manifest")
		}
		return fmt.Errorf("reading manifest: %w", err)
	}

	doc, err := f.decode(data)
	if err != nil {
		return failure.Wrap(failure.FormatError, path, err, "manifest %s is not properly formatted", path)
	}

	dir := filepath.Dir(path)
	for i, t := range doc.Tests {
		if strings.TrimSpace(t.Path) == "" {
			return failure.New(failure.FormatError, path, "manifest %s: entry %d has no path", path, i+1)
		}
		f.tests = append(f.tests, applyDefaults(t, doc.Defaults, dir))
	}
	return nil
}

func (f *File) ActiveTests() ([]Entry, error) {
	entries := make([]Entry, 0, len(f.tests))
	for _, t := range f.tests {
		disabled, err := f.disabledReason(t)
		if err != nil {
			return nil, failure.Wrap(failure.FormatError, t.Path, err, "test %s", t.Path)
		}
		entries = append(entries, Entry{
			Path:     t.Path,
			Expected: t.Expected,
			Disabled: disabled,
			Tags:     t.Tags,
		})
	}
	return entries, nil
}

func (f *File) disabledReason(t rawTest) (string, error) {
	if t.Disabled != "" {
		return t.Disabled, nil
	}
	for _, line := range t.SkipIf {
		if stripComment(line) == "" {
			continue
		}
		cond, err := ParseCondition(line)
		if err != nil {
			return "", err
		}
		if cond.Eval(f.values) {
			return "skip-if: " + strings.TrimSpace(line), nil
		}
	}
	for _, line := range t.RunIf {
		if stripComment(line) == "" {
			continue
		}
		cond, err := ParseCondition(line)
		if err != nil {
			return "", err
		}
		if !cond.Eval(f.values) {
			return "run-if: " + strings.TrimSpace(line), nil
		}
	}
	return "", nil
}

// applyDefaults fills t from the manifest defaults and resolves its path
// relative to the manifest directory. Conditions from both are combined.
func applyDefaults(t, defaults rawTest, dir string) rawTest {
	if !filepath.IsAbs(t.Path) {
		t.Path = filepath.Join(dir, t.Path)
	}
	t.Path = filepath.Clean(t.Path)

	if t.Expected == "" {
		t.Expected = defaults.Expected
	}
	if t.Expected == "" {
		t.Expected = DefaultExpected
	}
	if t.Disabled == "" {
		t.Disabled = defaults.Disabled
	}
	if len(t.Tags) == 0 {
		t.Tags = defaults.Tags
	}
	t.SkipIf = append(append([]string{}, defaults.SkipIf...), t.SkipIf...)
	t.RunIf = append(append([]string{}, defaults.RunIf...), t.RunIf...)
	return t
}
