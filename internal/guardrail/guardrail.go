package guardrail

import (
	"errors"
	"fmt"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

var ErrLimitExceeded = errors.New("guardrail: array exceeds limits")

type ShapeGuardrail struct {
	config config.GuardrailConfig
}

func NewShapeGuardrail(cfg config.GuardrailConfig) *ShapeGuardrail {
	return &ShapeGuardrail{
		config: cfg,
	}
}

// payloadSlack covers npy headers and JSON punctuation on top of the
// per-element minimum.
const payloadSlack = 1 << 16

// Validate checks the array against the dimension and element limits.
// A single dimension longer than the element limit is rejected as well, so
// an empty array cannot claim an enormous axis. A nil guardrail or zero
// limits disable the respective check.
func (g *ShapeGuardrail) Validate(a *ndarray.Array) error {
	if g == nil {
		return nil
	}
	if g.config.MaxDims > 0 && a.Ndim() > g.config.MaxDims {
		return fmt.Errorf("%w: %d dimensions > %d", ErrLimitExceeded, a.Ndim(), g.config.MaxDims)
	}
	if g.config.MaxElements > 0 {
		if a.Size() > g.config.MaxElements {
			return fmt.Errorf("%w: %d elements > %d", ErrLimitExceeded, a.Size(), g.config.MaxElements)
		}
		for i, d := range a.Shape {
			if d > g.config.MaxElements {
				return fmt.Errorf("%w: axis %d has length %d > %d", ErrLimitExceeded, i, d, g.config.MaxElements)
			}
		}
	}
	return nil
}

// MaxPayload is the largest encoded size that can still hold an array
// within the element limit, given the smallest number of bytes one element
// takes in that encoding. Zero means unlimited.
func (g *ShapeGuardrail) MaxPayload(minItemSize int) int {
	if g == nil || g.config.MaxElements == 0 || minItemSize <= 0 {
		return 0
	}
	return g.config.MaxElements*minItemSize + payloadSlack
}

// CheckPayload rejects an encoded payload before decoding when it cannot
// possibly fit the element limit.
func (g *ShapeGuardrail) CheckPayload(size, minItemSize int) error {
	if limit := g.MaxPayload(minItemSize); limit > 0 && size > limit {
		return fmt.Errorf("%w: payload of %d bytes > %d", ErrLimitExceeded, size, limit)
	}
	return nil
}
