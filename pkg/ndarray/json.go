package ndarray

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// DecodeJSON parses a number or a rectangular nested array of numbers.
func DecodeJSON(b []byte) (*Array, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding json: trailing data after top-level value")
	}

	shape, err := jsonShape(v)
	if err != nil {
		return nil, err
	}
	n, _ := sizeOf(shape)
	data, err := jsonFlatten(v, shape, make([]float64, 0, n))
	if err != nil {
		return nil, err
	}
	return &Array{Shape: shape, Data: data}, nil
}

// jsonShape follows the first element at every level. jsonFlatten enforces
// that the rest of the tree agrees.
func jsonShape(v any) ([]int, error) {
	shape := []int{}
	for {
		list, ok := v.([]any)
		if !ok {
			return shape, nil
		}
		shape = append(shape, len(list))
		if len(list) == 0 {
			return shape, nil
		}
		v = list[0]
	}
}

func jsonFlatten(v any, shape []int, out []float64) ([]float64, error) {
	if len(shape) == 0 {
		num, ok := v.(json.Number)
		if !ok {
			if _, isList := v.([]any); isList {
				return nil, fmt.Errorf("%w: unexpected nested array", ErrRagged)
			}
			return nil, fmt.Errorf("decoding json: expected number, got %T", v)
		}
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
		return append(out, f), nil
	}

	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array of length %d, got scalar", ErrRagged, shape[0])
	}
	if len(list) != shape[0] {
		return nil, fmt.Errorf("%w: expected array of length %d, got %d", ErrRagged, shape[0], len(list))
	}
	var err error
	for _, item := range list {
		if out, err = jsonFlatten(item, shape[1:], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeJSON writes the array as nested lists indented by four spaces.
func EncodeJSON(a *Array) ([]byte, error) {
	for i, f := range a.Data {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v at flat index %d", ErrNonFinite, f, i)
		}
	}
	b, err := json.MarshalIndent(a.Nested(), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return b, nil
}

// EncodeJSONCompact writes the nested lists without whitespace, the form
// used for request bodies.
func EncodeJSONCompact(a *Array) ([]byte, error) {
	for i, f := range a.Data {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v at flat index %d", ErrNonFinite, f, i)
		}
	}
	b, err := json.Marshal(a.Nested())
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return b, nil
}
