package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestOpen(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"unit-tests.ini", true},
		{"suite.yaml", true},
		{"suite.YML", true},
		{"suite.toml", true},
		{"test_a.py", false},
		{"tests", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, ok := Open(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ok, IsManifest(tt.path))
			if tt.ok {
				assert.NotNil(t, m)
			}
		})
	}
}

func TestFile_Read_Missing(t *testing.T) {
	m, ok := Open(filepath.Join(t.TempDir(), "manifest.ini"))
	require.True(t, ok)

	err := m.Read(filepath.Join(t.TempDir(), "manifest.ini"))
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.NotFound))
	assert.Contains(t, err.Error(), "does not exist")
}

func TestFile_INI(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "manifest.ini", `
# unit tests
[DEFAULT]
tags = smoke

[test_expected_pass.py]

[test_expected_fail.py]
expected = fail

[test_disabled.py]
skip-if = true # "testing disabled test"

[sub/testScript.js]
tags = wifi, gps
skip-if:
  os == "win"
  os == "android" && !emulator
`)

	m, _ := Open(path, WithValues(map[string]any{"os": "linux"}))
	require.NoError(t, m.Read(path))
	entries, err := m.ActiveTests()
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, filepath.Join(dir, "test_expected_pass.py"), entries[0].Path)
	assert.Equal(t, "pass", entries[0].Expected)
	assert.Empty(t, entries[0].Disabled)
	assert.Equal(t, []string{"smoke"}, entries[0].Tags)

	assert.Equal(t, "fail", entries[1].Expected)

	assert.Equal(t, `skip-if: true # "testing disabled test"`, entries[2].Disabled)

	assert.Equal(t, filepath.Join(dir, "sub", "testScript.js"), entries[3].Path)
	assert.Equal(t, []string{"wifi", "gps"}, entries[3].Tags)
	assert.Empty(t, entries[3].Disabled)
}

func TestFile_INI_ConditionalSkip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "manifest.ini", `
[test_a.py]
skip-if =
  os == "win"
  os == "android" && !emulator
[test_b.py]
run-if = debug
`)

	m, _ := Open(path, WithValues(map[string]any{"os": "android", "emulator": false}))
	require.NoError(t, m.Read(path))
	entries, err := m.ActiveTests()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, `skip-if: os == "android" && !emulator`, entries[0].Disabled)
	assert.Equal(t, "run-if: debug", entries[1].Disabled)
}

func TestFile_INI_Malformed(t *testing.T) {
	tests := map[string]string{
		"unterminated section": "[test_a.py\n",
		"key outside section":  "expected = fail\n",
		"no separator":         "[test_a.py]\nexpected fail\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "manifest.ini", content)
			m, _ := Open(path)
			err := m.Read(path)
			require.Error(t, err)
			assert.True(t, failure.Is(err, failure.FormatError))
		})
	}
}

func TestFile_BadCondition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "manifest.ini", "[test_a.py]\nskip-if = os + 1\n")
	m, _ := Open(path)
	require.NoError(t, m.Read(path))
	_, err := m.ActiveTests()
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.FormatError))
}

func TestFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "suite.yaml", `
defaults:
  expected: pass
  skip-if:
    - 'os == "win"'
tests:
  - path: test_expected_pass.py
  - path: test_expected_fail.py
    expected: fail
  - path: test_disabled.py
    disabled: "bug 1234"
`)

	m, _ := Open(path, WithValues(map[string]any{"os": "win"}))
	require.NoError(t, m.Read(path))
	entries, err := m.ActiveTests()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, `skip-if: os == "win"`, entries[0].Disabled)
	assert.Equal(t, "fail", entries[1].Expected)
	assert.Equal(t, "bug 1234", entries[2].Disabled)
}

func TestFile_YAML_UnknownField(t *testing.T) {
	path := writeFile(t, t.TempDir(), "suite.yml", "tests:\n  - path: test_a.py\n    expect: fail\n")
	m, _ := Open(path)
	err := m.Read(path)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.FormatError))
}

func TestFile_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "suite.toml", `
[defaults]
tags = ["nightly"]

[[tests]]
path = "test_one.py"

[[tests]]
path = "testTwo.js"
expected = "fail"
run-if = ["gpu >= 2"]
`)

	m, _ := Open(path, WithValues(map[string]any{"gpu": 1}))
	require.NoError(t, m.Read(path))
	entries, err := m.ActiveTests()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"nightly"}, entries[0].Tags)
	assert.Equal(t, "fail", entries[1].Expected)
	assert.Equal(t, "run-if: gpu >= 2", entries[1].Disabled)
}

func TestFile_TOML_UnknownKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "suite.toml", "[[tests]]\npath = \"a.py\"\nbogus = 1\n")
	m, _ := Open(path)
	err := m.Read(path)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.FormatError))
}

func TestFile_MissingPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "suite.yaml", "tests:\n  - expected: fail\n")
	m, _ := Open(path)
	err := m.Read(path)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.FormatError))
}
