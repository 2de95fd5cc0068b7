// Package discovery turns paths given on the command line into test descriptors.
//
// A path is classified, in order, as:
//   - a directory, walked recursively for files matching the naming convention
//   - a manifest, whose active tests are read through the manifest capability
//   - a single test file, accepted as-is without checking its name
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/abdul-hamid-achik/drivetest/packages/manifest"
	"github.com/hashicorp/go-hclog"
)

// Conventional test file names, used when no matcher is configured.
var (
	StandardPattern = regexp.MustCompile(`^test_.*\.py$`)
	ScriptPattern   = regexp.MustCompile(`^test.*\.js$`)
)

// DefaultMatcher reports whether name follows one of the conventional test file names.
func DefaultMatcher(name string) bool {
	return StandardPattern.MatchString(name) || ScriptPattern.MatchString(name)
}

// Result holds the tests discovered from one path.
type Result struct {
	Tests   []descriptor.Test
	Skipped []descriptor.SkippedTest
}

// OpenFunc returns the manifest reader for path, or false if path is not a manifest.
type OpenFunc func(path string) (manifest.Manifest, bool)

type Discoverer struct {
	match  func(name string) bool
	open   OpenFunc
	logger hclog.Logger
}

type Option func(*Discoverer)

// WithMatcher sets the file name filter applied during directory walks.
func WithMatcher(match func(name string) bool) Option {
	return func(d *Discoverer) {
		d.match = match
	}
}

// WithManifestOpener sets how manifest readers are created.
func WithManifestOpener(open OpenFunc) Option {
	return func(d *Discoverer) {
		d.open = open
	}
}

// WithManifestValues evaluates manifest conditions against values.
func WithManifestValues(values map[string]any) Option {
	return func(d *Discoverer) {
		d.open = func(path string) (manifest.Manifest, bool) {
			m, ok := manifest.Open(path, manifest.WithValues(values))
			if !ok {
				return nil, false
			}
			return m, true
		}
	}
}

func WithLogger(l hclog.Logger) Option {
	return func(d *Discoverer) {
		d.logger = l
	}
}

func New(opts ...Option) *Discoverer {
	d := &Discoverer{
		match: DefaultMatcher,
		open: func(path string) (manifest.Manifest, bool) {
			m, ok := manifest.Open(path)
			if !ok {
				return nil, false
			}
			return m, true
		},
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover classifies path and expands it into descriptors.
func (d *Discoverer) Discover(path string) (*Result, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return d.walk(path)
	}

	if m, ok := d.open(path); ok {
		return d.readManifest(m, path)
	}

	test, err := descriptor.New(path)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("added test file", "path", test.Path)
	return &Result{Tests: []descriptor.Test{test}}, nil
}

func (d *Discoverer) walk(root string) (*Result, error) {
	result := &Result{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !d.match(entry.Name()) {
			d.logger.Trace("skipping non-test file", "path", path)
			return nil
		}
		test, err := descriptor.New(path)
		if err != nil {
			return err
		}
		result.Tests = append(result.Tests, test)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	d.logger.Debug("walked test directory", "root", root, "tests", len(result.Tests))
	return result, nil
}

func (d *Discoverer) readManifest(m manifest.Manifest, path string) (*Result, error) {
	abs, err := descriptor.Abs(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return nil, failure.NotFoundf(abs, "manifest")
	}
	if err := m.Read(abs); err != nil {
		return nil, err
	}
	entries, err := m.ActiveTests()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, failure.New(failure.FormatError, abs, "no tests found in manifest %s", abs)
	}

	result := &Result{}
	for _, e := range entries {
		testPath, err := descriptor.Abs(e.Path)
		if err != nil {
			return nil, err
		}
		if e.Disabled != "" {
			result.Skipped = append(result.Skipped, descriptor.SkippedTest{
				Path:     testPath,
				Expected: descriptor.Expectation(e.Expected),
				Manifest: abs,
				Reason:   e.Disabled,
			})
			continue
		}
		if _, err := os.Stat(testPath); err != nil {
			if os.IsNotExist(err) {
				return nil, failure.NotFoundf(testPath, "test file")
			}
			return nil, fmt.Errorf("checking %s: %w", testPath, err)
		}
		result.Tests = append(result.Tests, descriptor.Test{
			Path:      testPath,
			Expected:  descriptor.Expectation(e.Expected),
			Container: descriptor.ContainerNo,
			Manifest:  abs,
			Tags:      e.Tags,
		})
	}

	d.logger.Debug("read manifest", "path", abs, "tests", len(result.Tests), "skipped", len(result.Skipped))
	return result, nil
}
