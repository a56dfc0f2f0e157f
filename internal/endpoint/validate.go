package endpoint

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

// MakeImage returns a rows x cols image of zeros.
func MakeImage(rows, cols int) *ndarray.Array {
	return ndarray.Zeros(rows, cols)
}

// MakeInput stacks one zero image per channel.
func MakeInput(img config.ImageConfig) *ndarray.Array {
	images := make([]*ndarray.Array, img.Channels)
	for i := range images {
		images[i] = MakeImage(img.Rows, img.Cols)
	}
	input, _ := ndarray.Stack(images...)
	return input
}

// ValidateResult checks that the first batch entry of result holds the
// expected number of rows x cols channels.
func ValidateResult(result *ndarray.Array, img config.ImageConfig) error {
	if result.Ndim() == 0 || result.Shape[0] == 0 {
		return errors.New("Expected a non-empty result array")
	}
	entry, err := result.Index(0)
	if err != nil {
		return err
	}

	got := 0
	if entry.Ndim() > 0 {
		got = entry.Shape[0]
	}
	if got != img.Channels {
		return fmt.Errorf("Expected an array of %d channels, got an array of %d", img.Channels, got)
	}

	for i := 0; i < got; i++ {
		ch, _ := entry.Index(i)
		rows := 0
		if ch.Ndim() > 0 {
			rows = ch.Shape[0]
		}
		if ch.Ndim() != 2 || rows != img.Rows || ch.Shape[1] != img.Cols {
			return fmt.Errorf("Expected a %d x %d channel, got %d x ...", img.Rows, img.Cols, rows)
		}
	}
	return nil
}

type ChannelStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize reports per-channel statistics of the first batch entry. It
// expects a result that passed ValidateResult.
func Summarize(result *ndarray.Array) ([]ChannelStats, error) {
	entry, err := result.Index(0)
	if err != nil {
		return nil, err
	}
	if entry.Ndim() == 0 {
		return nil, errors.New("result entry is a scalar")
	}
	out := make([]ChannelStats, entry.Shape[0])
	for i := range out {
		ch, err := entry.Index(i)
		if err != nil {
			return nil, err
		}
		switch ch.Size() {
		case 0:
			continue
		case 1:
			// sample stddev is undefined for one value
			v := ch.Data[0]
			out[i] = ChannelStats{Mean: v, Min: v, Max: v}
			continue
		}
		mean, std := stat.MeanStdDev(ch.Data, nil)
		out[i] = ChannelStats{
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(ch.Data),
			Max:    floats.Max(ch.Data),
		}
	}
	return out, nil
}
