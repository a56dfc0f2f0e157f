package ndarray

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// Format pairs a decoder and an encoder for one file extension.
type Format struct {
	Name   string
	Ext    string
	Decode func([]byte) (*Array, error)
	Encode func(*Array) ([]byte, error)
	// Lossy reports whether Encode rounds values below float64 precision.
	Lossy bool
	// Flat reports whether Encode drops the shape.
	Flat bool
	// MinItemSize is the fewest bytes one element occupies when encoded.
	MinItemSize int
}

var (
	JSON = Format{Name: "json", Ext: ".json", Decode: DecodeJSON, Encode: EncodeJSON, MinItemSize: 1}
	NPY  = Format{Name: "npy", Ext: ".npy", Decode: DecodeNPY, Encode: EncodeNPY, Lossy: true, MinItemSize: 1}
	Raw  = Format{Name: "bin", Ext: ".bin", Decode: DecodeRaw, Encode: EncodeRaw, Flat: true, MinItemSize: rawItemSize}
)

var formats = map[string]Format{
	JSON.Ext: JSON,
	NPY.Ext:  NPY,
	Raw.Ext:  Raw,
}

// Formats lists the supported formats in a stable order.
func Formats() []Format { return []Format{JSON, NPY, Raw} }

// FormatFor selects the format from the path extension. Matching is
// case-sensitive.
func FormatFor(path string) (Format, error) {
	ext := Ext(path)
	f, ok := formats[ext]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q (path %s)", ErrUnknownFormat, ext, path)
	}
	return f, nil
}

// Ext returns the extension of the final path element. Leading dots of
// the base name do not start an extension, so ".json" has none.
func Ext(path string) string {
	base := filepath.Base(path)
	trimmed := strings.TrimLeft(base, ".")
	i := strings.LastIndexByte(trimmed, '.')
	if i < 0 {
		return ""
	}
	return trimmed[i:]
}

// ReadFile decodes the file at path using the format its extension names.
func ReadFile(path string) (*Array, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	a, err := f.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return a, nil
}

// WriteFile encodes a into path atomically, replacing any existing file.
func WriteFile(path string, a *Array) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	b, err := f.Encode(a)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
