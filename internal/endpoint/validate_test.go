package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

func TestMakeInputMatchesModelGeometry(t *testing.T) {
	in := MakeInput(config.Default().Image)
	assert.Equal(t, []int{2, 128, 512}, in.Shape)
	for _, v := range in.Data {
		if v != 0 {
			t.Fatalf("expected zero image, found %v", v)
		}
	}
}

func TestValidateResult(t *testing.T) {
	img := config.ImageConfig{Channels: 2, Rows: 3, Cols: 4}

	cases := []struct {
		name    string
		shape   []int
		wantErr string
	}{
		{"valid batch of one", []int{1, 2, 3, 4}, ""},
		{"valid batch of two", []int{2, 2, 3, 4}, ""},
		{"empty", []int{0}, "Expected a non-empty result array"},
		{"scalar", []int{}, "Expected a non-empty result array"},
		{"one channel", []int{1, 1, 3, 4}, "Expected an array of 2 channels, got an array of 1"},
		{"flat entry", []int{1}, "Expected an array of 2 channels, got an array of 0"},
		{"short channel", []int{1, 2, 2, 4}, "Expected a 3 x 4 channel, got 2 x ..."},
		{"narrow channel", []int{1, 2, 3, 5}, "Expected a 3 x 4 channel, got 3 x ..."},
		{"flat channel", []int{1, 2, 3}, "Expected a 3 x 4 channel, got 3 x ..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateResult(ndarray.Zeros(tc.shape...), img)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantErr, err.Error())
		})
	}
}

func TestSummarize(t *testing.T) {
	res := ndarray.Zeros(1, 2, 2, 2)
	copy(res.Data[4:], []float64{1, 2, 3, 4})

	stats, err := Summarize(res)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, ChannelStats{}, stats[0])
	assert.InDelta(t, 2.5, stats[1].Mean, 1e-12)
	assert.InDelta(t, 1.2909944487, stats[1].StdDev, 1e-9)
	assert.Equal(t, 1.0, stats[1].Min)
	assert.Equal(t, 4.0, stats[1].Max)
}

func TestSummarizeSingleValueChannel(t *testing.T) {
	res := ndarray.Zeros(1, 2, 1, 1)
	res.Data[1] = 7

	stats, err := Summarize(res)
	require.NoError(t, err)
	assert.Equal(t, []ChannelStats{{}, {Mean: 7, Min: 7, Max: 7}}, stats)
}

func TestSummarizeScalarEntry(t *testing.T) {
	_, err := Summarize(ndarray.Zeros(3))
	require.Error(t, err)
}
