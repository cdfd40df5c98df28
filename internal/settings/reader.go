package settings

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// OffsetField is the settings key holding the rhythm tracker offset.
const OffsetField = "rhythmTrackerPositionOffset"

// Reader loads the settings file and extracts the offset. It keeps no state
// between calls; every Read goes to disk.
type Reader struct {
	fs afero.Fs
}

// NewReader returns a Reader over fs. A nil fs selects the OS filesystem.
func NewReader(fs afero.Fs) *Reader {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Reader{fs: fs}
}

// Read returns the offset stored in the settings file at path.
//
// The returned error is one of *NotFoundError, *IOError, *ParseError or
// *FieldError; its message is suitable for showing to a user.
func (r *Reader) Read(path string) (float64, error) {
	exists, err := afero.Exists(r.fs, path)
	if err != nil {
		return 0, &IOError{Path: path, Err: err}
	}

	if !exists {
		return 0, &NotFoundError{Path: path}
	}

	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return 0, &IOError{Path: path, Err: err}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, &ParseError{Path: path, Err: err}
	}

	return extractOffset(doc)
}

func extractOffset(doc any) (float64, error) {
	// A document that is not an object has no fields at all.
	obj, ok := doc.(map[string]any)
	if !ok {
		return 0, &FieldError{Field: OffsetField}
	}

	raw, ok := obj[OffsetField]
	if !ok || raw == nil {
		return 0, &FieldError{Field: OffsetField}
	}

	v, ok := raw.(float64)
	if !ok {
		return 0, &FieldError{Field: OffsetField, Found: jsonType(raw)}
	}

	return v, nil
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
