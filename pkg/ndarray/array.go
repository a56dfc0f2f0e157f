package ndarray

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnknownFormat    = errors.New("ndarray: unknown file format")
	ErrShapeMismatch    = errors.New("ndarray: shape does not match data length")
	ErrRagged           = errors.New("ndarray: ragged nested array")
	ErrTruncated        = errors.New("ndarray: truncated data")
	ErrUnsupportedDtype = errors.New("ndarray: unsupported dtype")
	ErrBadHeader        = errors.New("ndarray: malformed npy header")
	ErrNonFinite        = errors.New("ndarray: non-finite value")
)

// Array is a dense row-major array of float64 values. An empty Shape is a
// 0-d scalar holding exactly one value.
type Array struct {
	Shape []int
	Data  []float64
}

// New returns an Array after checking that data fills shape exactly.
func New(shape []int, data []float64) (*Array, error) {
	n, err := sizeOf(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrShapeMismatch, shape, n, len(data))
	}
	return &Array{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Zeros allocates a zero-filled array.
func Zeros(shape ...int) *Array {
	n, err := sizeOf(shape)
	if err != nil {
		panic(err)
	}
	return &Array{Shape: append([]int(nil), shape...), Data: make([]float64, n)}
}

// Stack joins arrays of equal shape along a new leading axis.
func Stack(arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("ndarray: stack needs at least one array")
	}
	inner := arrays[0].Shape
	data := make([]float64, 0, len(arrays)*len(arrays[0].Data))
	for i, a := range arrays {
		if !equalShape(a.Shape, inner) {
			return nil, fmt.Errorf("%w: stack element %d has shape %v, want %v", ErrShapeMismatch, i, a.Shape, inner)
		}
		data = append(data, a.Data...)
	}
	shape := append([]int{len(arrays)}, inner...)
	return &Array{Shape: shape, Data: data}, nil
}

// Size is the number of elements.
func (a *Array) Size() int { return len(a.Data) }

// Ndim is the number of dimensions.
func (a *Array) Ndim() int { return len(a.Shape) }

// Flatten returns a 1-d view sharing the same backing data.
func (a *Array) Flatten() *Array {
	return &Array{Shape: []int{len(a.Data)}, Data: a.Data}
}

// Index returns the sub-array at position i of the leading axis.
func (a *Array) Index(i int) (*Array, error) {
	if len(a.Shape) == 0 {
		return nil, fmt.Errorf("ndarray: cannot index a 0-d array")
	}
	if i < 0 || i >= a.Shape[0] {
		return nil, fmt.Errorf("ndarray: index %d out of range for axis of length %d", i, a.Shape[0])
	}
	inner := a.Shape[1:]
	stride, _ := sizeOf(inner)
	return &Array{
		Shape: append([]int(nil), inner...),
		Data:  a.Data[i*stride : (i+1)*stride],
	}, nil
}

// Nested converts the array into nested []any of float64, the shape a
// JSON encoder walks. A 0-d array yields the bare float64.
func (a *Array) Nested() any {
	if len(a.Shape) == 0 {
		return a.Data[0]
	}
	v, _ := nest(a.Shape, a.Data)
	return v
}

func nest(shape []int, data []float64) (any, []float64) {
	if len(shape) == 1 {
		out := make([]any, shape[0])
		for i := range out {
			out[i] = data[i]
		}
		return out, data[shape[0]:]
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i], data = nest(shape[1:], data)
	}
	return out, data
}

// sizeOf returns the element count of shape. The product of the non-zero
// dimensions must fit in an int even when a zero dimension empties the
// array.
func sizeOf(shape []int) (int, error) {
	n, nonzero := 1, 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrShapeMismatch, shape)
		}
		if d != 0 {
			if nonzero > math.MaxInt/d {
				return 0, fmt.Errorf("%w: shape %v overflows the element count", ErrShapeMismatch, shape)
			}
			nonzero *= d
		}
		n *= d
	}
	return n, nil
}

func equalShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EqualShape reports whether two shapes are identical.
func EqualShape(a, b []int) bool { return equalShape(a, b) }
