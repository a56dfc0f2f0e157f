package convert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/yourusername/tp-endpoint-poc/internal/guardrail"
	"github.com/yourusername/tp-endpoint-poc/internal/metrics"
	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

var ErrVerifyFailed = errors.New("convert: round-trip verification failed")

// float32 keeps 24 significand bits. The absolute term covers values that
// land in the float32 subnormal range.
const (
	float32RelTol = 1.0 / (1 << 24)
	float32AbsTol = 1e-44
)

type Result struct {
	InputFormat  string
	OutputFormat string
	Shape        []int
	Elements     int
	BytesIn      int64
	BytesOut     int64
	MaxAbsError  float64
	Verified     bool
}

type Converter struct {
	logger zerolog.Logger
	guard  *guardrail.ShapeGuardrail
	verify bool
}

func NewConverter(logger zerolog.Logger, guard *guardrail.ShapeGuardrail, verify bool) *Converter {
	return &Converter{
		logger: logger,
		guard:  guard,
		verify: verify,
	}
}

// Convert decodes in and re-encodes it into out, each format chosen by
// extension. Both extensions are resolved before any file is touched.
func (c *Converter) Convert(ctx context.Context, in, out string) (*Result, error) {
	inFmt, err := ndarray.FormatFor(in)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	outFmt, err := ndarray.FormatFor(out)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	res, err := c.convert(ctx, in, out, inFmt, outFmt)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ConversionsTotal.WithLabelValues(inFmt.Name, outFmt.Name, status).Inc()
	if err != nil {
		return nil, err
	}
	metrics.ConvertedElementsTotal.Add(float64(res.Elements))
	return res, nil
}

func (c *Converter) convert(ctx context.Context, in, out string, inFmt, outFmt ndarray.Format) (*Result, error) {
	res := &Result{InputFormat: inFmt.Name, OutputFormat: outFmt.Name}

	st, err := os.Stat(in)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", in, err)
	}
	res.BytesIn = st.Size()
	if err := c.guard.CheckPayload(int(st.Size()), inFmt.MinItemSize); err != nil {
		return nil, err
	}

	src, err := ndarray.ReadFile(in)
	if err != nil {
		return nil, err
	}
	if err := c.guard.Validate(src); err != nil {
		return nil, err
	}
	res.Shape = src.Shape
	res.Elements = src.Size()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := ndarray.WriteFile(out, src); err != nil {
		return nil, err
	}
	if st, err := os.Stat(out); err == nil {
		res.BytesOut = st.Size()
	}

	c.logger.Debug().
		Str("input", in).
		Str("output", out).
		Ints("shape", src.Shape).
		Int("elements", src.Size()).
		Msg("converted")

	if !c.verify {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	back, err := ndarray.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	maxErr, err := Compare(src, back, outFmt)
	if err != nil {
		return nil, err
	}
	res.MaxAbsError = maxErr
	res.Verified = true

	c.logger.Info().
		Str("output", out).
		Float64("max_abs_error", maxErr).
		Msg("round trip verified")
	return res, nil
}

// Compare checks got against want within the precision of the format got
// was read back from. Flat formats only need to agree on element count.
// It returns the largest absolute deviation.
func Compare(want, got *ndarray.Array, f ndarray.Format) (float64, error) {
	if f.Flat {
		if want.Size() != got.Size() {
			return 0, fmt.Errorf("%w: %d elements written, %d read back", ErrVerifyFailed, want.Size(), got.Size())
		}
	} else if !ndarray.EqualShape(want.Shape, got.Shape) {
		return 0, fmt.Errorf("%w: shape %v written, %v read back", ErrVerifyFailed, want.Shape, got.Shape)
	}

	maxErr := 0.0
	for i := range want.Data {
		w, g := want.Data[i], got.Data[i]
		if w == g || (math.IsNaN(w) && math.IsNaN(g)) {
			continue
		}
		if !f.Lossy || !scalar.EqualWithinAbsOrRel(w, g, float32AbsTol, float32RelTol) {
			return 0, fmt.Errorf("%w: element %d is %v, read back %v", ErrVerifyFailed, i, w, g)
		}
		if d := math.Abs(w - g); d > maxErr {
			maxErr = d
		}
	}
	return maxErr, nil
}
