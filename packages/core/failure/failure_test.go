package failure

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Other},
		{"plain error", errors.New("boom"), Other},
		{"not found", NotFoundf("a.json", "testvars file"), NotFound},
		{"wrapped format error", fmt.Errorf("loading: %w", New(FormatError, "b.json", "bad")), FormatError},
		{"crashed", New(Crashed, "", "driver crashed"), Crashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFoundf("x.ini", "manifest"))
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, FormatError))
	assert.False(t, Is(nil, Other))
}

func TestError_Message(t *testing.T) {
	err := NotFoundf("some_bad_path.json", "testvars file")
	assert.Equal(t, "testvars file some_bad_path.json does not exist", err.Error())
	assert.Equal(t, "some_bad_path.json", err.Path)

	wrapped := Wrap(FormatError, "v.json", os.ErrInvalid, "JSON file (%s) is not properly formatted", "v.json")
	assert.Contains(t, wrapped.Error(), "not properly formatted")
	assert.ErrorIs(t, wrapped, os.ErrInvalid)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "not found", NotFound.String())
	assert.Equal(t, "format error", FormatError.String())
	assert.Equal(t, "crashed", Crashed.String())
	assert.Equal(t, "other", Other.String())
}
