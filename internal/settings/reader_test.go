package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPath = "/game/SYSTEM/system-options.json"

func memReader(t *testing.T, content string) *Reader {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte(content), 0o644))

	return NewReader(fs)
}

func TestRead_Success(t *testing.T) {
	r := memReader(t, `{"musicVolume": 0.8, "rhythmTrackerPositionOffset": 0.42}`)

	got, err := r.Read(testPath)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, got, 1e-12)
}

func TestRead_NegativeAndInteger(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"negative", `{"rhythmTrackerPositionOffset": -12.5}`, -12.5},
		{"integer literal", `{"rhythmTrackerPositionOffset": 3}`, 3},
		{"exponent", `{"rhythmTrackerPositionOffset": 1e3}`, 1000},
		{"zero", `{"rhythmTrackerPositionOffset": 0}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := memReader(t, tt.content).Read(testPath)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRead_NotFound(t *testing.T) {
	r := NewReader(afero.NewMemMapFs())

	_, err := r.Read(testPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "could not find settings file at "+testPath)
}

func TestRead_FieldMissing(t *testing.T) {
	tests := []struct {
		name    string
		content string
		detail  string
	}{
		{"absent", `{"musicVolume": 1}`, "is missing"},
		{"null", `{"rhythmTrackerPositionOffset": null}`, "is missing"},
		{"string", `{"rhythmTrackerPositionOffset": "0.42"}`, "is string"},
		{"bool", `{"rhythmTrackerPositionOffset": true}`, "is boolean"},
		{"object", `{"rhythmTrackerPositionOffset": {}}`, "is object"},
		{"json null document", `null`, "is missing"},
		{"array document", `[1, 2]`, "is missing"},
		{"number document", `0.42`, "is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := memReader(t, tt.content).Read(testPath)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFieldMissing))
			assert.Contains(t, err.Error(), "failed to get offset from settings file")
			assert.Contains(t, err.Error(), OffsetField)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestRead_Malformed(t *testing.T) {
	for _, content := range []string{`{"rhythmTrackerPositionOffset": 0.4`, ``, `not json`} {
		_, err := memReader(t, content).Read(testPath)
		require.Error(t, err, "content=%q", content)

		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, err.Error(), "failed to parse settings file")
	}
}

func TestRead_IOError(t *testing.T) {
	// A directory at the target path exists but cannot be read as a file.
	dir := t.TempDir()
	target := filepath.Join(dir, "system-options.json")
	require.NoError(t, os.Mkdir(target, 0o755))

	_, err := NewReader(nil).Read(target)
	require.Error(t, err)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Contains(t, err.Error(), "failed to read settings file")
}

func TestRead_FreshOnEveryCall(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte(`{"rhythmTrackerPositionOffset": 1}`), 0o644))

	r := NewReader(fs)

	got, err := r.Read(testPath)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	require.NoError(t, afero.WriteFile(fs, testPath, []byte(`{"rhythmTrackerPositionOffset": 2}`), 0o644))

	got, err = r.Read(testPath)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestRead_DeletedAfterRead(t *testing.T) {
	r := memReader(t, `{"rhythmTrackerPositionOffset": 1}`)

	_, err := r.Read(testPath)
	require.NoError(t, err)

	require.NoError(t, r.fs.Remove(testPath))

	_, err = r.Read(testPath)
	assert.True(t, errors.Is(err, ErrNotFound))
}
