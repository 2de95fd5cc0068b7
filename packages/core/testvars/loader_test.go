package testvars

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Merges(t *testing.T) {
	dir := t.TempDir()
	first := writeJSON(t, dir, "a.json", `{"wifi": {"ssid": "blah", "keyManagement": "WPA-PSK", "psk": "foo"}}`)
	second := writeJSON(t, dir, "b.json", `{"wifi": {"PEAP": "bar"}, "device": {"stuff": "buzz"}}`)

	vars, err := Load([]string{first, second})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"wifi": map[string]any{
			"ssid":          "blah",
			"keyManagement": "WPA-PSK",
			"psk":           "foo",
			"PEAP":          "bar",
		},
		"device": map[string]any{"stuff": "buzz"},
	}, vars)
}

func TestLoad_NoFiles(t *testing.T) {
	vars, err := Load(nil)
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load([]string{"some_bad_path.json"})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.NotFound))
	assert.Contains(t, err.Error(), "does not exist")
	assert.Contains(t, err.Error(), "some_bad_path.json")
}

func TestLoad_Malformed(t *testing.T) {
	tests := map[string]string{
		"invalid json":    "[not {valid JSON]",
		"top level array": `["a", "b"]`,
		"null":            "null",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeJSON(t, t.TempDir(), "vars.json", content)
			_, err := Load([]string{path})
			require.Error(t, err)
			assert.True(t, failure.Is(err, failure.FormatError))
			assert.Contains(t, err.Error(), "not properly formatted")
		})
	}
}

func TestLoad_Schema(t *testing.T) {
	dir := t.TempDir()
	schema := writeJSON(t, dir, "schema.json", `{
		"type": "object",
		"properties": {"wifi": {"type": "object", "required": ["ssid"]}}
	}`)
	good := writeJSON(t, dir, "good.json", `{"wifi": {"ssid": "home"}}`)
	bad := writeJSON(t, dir, "bad.json", `{"wifi": {"psk": "secret"}}`)

	vars, err := Load([]string{good}, WithSchema(schema))
	require.NoError(t, err)
	assert.Equal(t, "home", vars["wifi"].(map[string]any)["ssid"])

	_, err = Load([]string{good, bad}, WithSchema(schema))
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.FormatError))
	assert.Contains(t, err.Error(), "does not match schema")

	_, err = Load([]string{good}, WithSchema(filepath.Join(dir, "missing.json")))
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.NotFound))
}
