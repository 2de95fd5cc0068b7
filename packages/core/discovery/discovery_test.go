package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/abdul-hamid-achik/drivetest/packages/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeManifest struct {
	entries     []manifest.Entry
	readCalls   int
	activeCalls int
	readPath    string
}

func (m *fakeManifest) Read(path string) error {
	m.readCalls++
	m.readPath = path
	return nil
}

func (m *fakeManifest) ActiveTests() ([]manifest.Entry, error) {
	m.activeCalls++
	return m.entries, nil
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("// test\n"), 0644))
	}
}

func TestDiscover_SingleFiles(t *testing.T) {
	d := New()
	for _, name := range []string{"test_something.py", "testSomething.js", "bad_test.py"} {
		t.Run(name, func(t *testing.T) {
			result, err := d.Discover(name)
			require.NoError(t, err)
			require.Len(t, result.Tests, 1)

			abs, _ := filepath.Abs(name)
			assert.Equal(t, descriptor.Test{
				Path:      abs,
				Expected:  descriptor.ExpectPass,
				Container: descriptor.ContainerUnknown,
			}, result.Tests[0])
			assert.Empty(t, result.Skipped)
		})
	}
}

func TestDiscover_Directory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "path", "to", "tests")
	touch(t,
		filepath.Join(root, "test_a.py"),
		filepath.Join(root, "test_a.js"),
		filepath.Join(root, "bad_test_a.py"),
		filepath.Join(root, "bad_test_a.js"),
		filepath.Join(root, "subdir", "test_b.py"),
		filepath.Join(root, "subdir", "test_b.js"),
		filepath.Join(root, "subdir", "bad_test_a.py"),
		filepath.Join(root, "subdir", "bad_test_b.js"),
		filepath.Join(root, "subdir", "README.md"),
	)

	result, err := New().Discover(root)
	require.NoError(t, err)
	require.Len(t, result.Tests, 4)
	for _, test := range result.Tests {
		assert.Contains(t, test.Path, root)
		assert.True(t, filepath.IsAbs(test.Path))
		assert.Equal(t, descriptor.ExpectPass, test.Expected)
		assert.Equal(t, descriptor.ContainerUnknown, test.Container)
	}
}

func TestDiscover_DirectoryCustomMatcher(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "test_a.py"), filepath.Join(root, "test_b.js"))

	d := New(WithMatcher(func(name string) bool { return strings.HasSuffix(name, ".js") }))
	result, err := d.Discover(root)
	require.NoError(t, err)
	require.Len(t, result.Tests, 1)
	assert.Equal(t, "test_b.js", result.Tests[0].Name())
}

func TestDiscover_Manifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.ini")
	touch(t, manifestPath,
		filepath.Join(dir, "test_expected_pass.py"),
		filepath.Join(dir, "test_expected_fail.py"),
	)

	fake := &fakeManifest{entries: []manifest.Entry{
		{Expected: "pass", Path: filepath.Join(dir, "test_expected_pass.py")},
		{Expected: "fail", Path: filepath.Join(dir, "test_expected_fail.py")},
		{Expected: "pass", Path: filepath.Join(dir, "test_disabled.py"), Disabled: `skip-if: true # "testing disabled test"`},
	}}
	d := New(WithManifestOpener(func(path string) (manifest.Manifest, bool) {
		return fake, manifest.IsManifest(path)
	}))

	result, err := d.Discover(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.readCalls)
	assert.Equal(t, 1, fake.activeCalls)
	assert.Equal(t, manifestPath, fake.readPath)

	require.Len(t, result.Tests, 2)
	require.Len(t, result.Skipped, 1)
	for _, test := range result.Tests {
		if strings.HasSuffix(test.Path, "test_expected_fail.py") {
			assert.Equal(t, descriptor.ExpectFail, test.Expected)
		} else {
			assert.True(t, strings.HasSuffix(test.Path, "test_expected_pass.py"))
			assert.Equal(t, descriptor.ExpectPass, test.Expected)
		}
		assert.Equal(t, manifestPath, test.Manifest)
	}
	assert.Equal(t, `skip-if: true # "testing disabled test"`, result.Skipped[0].Reason)
}

func TestDiscover_ManifestMissing(t *testing.T) {
	fake := &fakeManifest{}
	d := New(WithManifestOpener(func(path string) (manifest.Manifest, bool) {
		return fake, true
	}))

	_, err := d.Discover(filepath.Join(t.TempDir(), "fake", "manifest.ini"))
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.NotFound))
	assert.Contains(t, err.Error(), "does not exist")
	assert.Equal(t, 0, fake.readCalls)
}

func TestDiscover_ManifestMissingTestFile(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.ini")
	require.NoError(t, os.WriteFile(manifestPath, []byte("[test_gone.py]\n"), 0644))

	_, err := New().Discover(manifestPath)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.NotFound))
	assert.Contains(t, err.Error(), "test_gone.py does not exist")
}

func TestDiscover_ManifestEmpty(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte("tests: []\n"), 0644))

	_, err := New().Discover(manifestPath)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.FormatError))
}

func TestDiscover_ManifestValues(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.ini")
	touch(t, filepath.Join(dir, "test_a.py"), filepath.Join(dir, "test_b.py"))
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
[test_a.py]
skip-if = os == "android"
[test_b.py]
tags = smoke
`), 0644))

	result, err := New(WithManifestValues(map[string]any{"os": "android"})).Discover(manifestPath)
	require.NoError(t, err)
	require.Len(t, result.Tests, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, []string{"smoke"}, result.Tests[0].Tags)
	assert.Equal(t, descriptor.ContainerNo, result.Tests[0].Container)
	assert.Equal(t, `skip-if: os == "android"`, result.Skipped[0].Reason)
}

func TestDefaultMatcher(t *testing.T) {
	tests := map[string]bool{
		"test_a.py":        true,
		"test_a.js":        true,
		"testSomething.js": true,
		"bad_test_a.py":    false,
		"bad_test_b.js":    false,
		"testSomething.py": false,
		"test_a.txt":       false,
	}
	for name, want := range tests {
		assert.Equal(t, want, DefaultMatcher(name), name)
	}
}
