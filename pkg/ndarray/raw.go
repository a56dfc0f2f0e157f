package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"
)

const rawItemSize = 8

// DecodeRaw reads a headerless little-endian float64 stream as a 1-d array.
func DecodeRaw(b []byte) (*Array, error) {
	if len(b)%rawItemSize != 0 {
		return nil, fmt.Errorf("%w: raw length %d is not a multiple of %d", ErrTruncated, len(b), rawItemSize)
	}
	n := len(b) / rawItemSize
	data := make([]float64, n)
	for i := 0; i < n; i++ {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*rawItemSize:]))
	}
	return &Array{Shape: []int{n}, Data: data}, nil
}

// EncodeRaw dumps the values in row-major order without a header. The
// shape is not recorded.
func EncodeRaw(a *Array) ([]byte, error) {
	b := make([]byte, len(a.Data)*rawItemSize)
	for i, f := range a.Data {
		binary.LittleEndian.PutUint64(b[i*rawItemSize:], math.Float64bits(f))
	}
	return b, nil
}
