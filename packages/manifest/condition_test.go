package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondition_Eval(t *testing.T) {
	values := map[string]any{
		"os":       "linux",
		"debug":    true,
		"emulator": false,
		"version":  42,
	}

	for _, tc := range []struct {
		expr string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"debug", true},
		{"emulator", false},
		{"missing", false},
		{"!missing", true},
		{`os == "linux"`, true},
		{`os != "linux"`, false},
		{`os == "win" || debug`, true},
		{`(os == "linux" || os == "win") && !emulator`, true},
		{"version >= 40", true},
		{"version < 40", false},
		{`os == "linux" # bug 123`, true},
	} {
		t.Run(tc.expr, func(t *testing.T) {
			c, err := ParseCondition(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Eval(values))
		})
	}
}

func TestParseCondition_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"# only a comment",
		"os + 1",
		"-debug",
		"f(x)",
		"a.b",
		"1.5 > 1",
		"os ==",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseCondition(s)
			assert.Error(t, err)
		})
	}
}
