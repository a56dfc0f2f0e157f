package benchmarks

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

const (
	channels = 2
	rows     = 128
	cols     = 512
)

func randomInput(seed int64) *ndarray.Array {
	r := rand.New(rand.NewSource(seed))
	a := ndarray.Zeros(channels, rows, cols)
	for i := range a.Data {
		a.Data[i] = r.NormFloat64() * 100
	}
	return a
}

func TestEncodedSize(t *testing.T) {
	in := randomInput(1)

	fmt.Printf("\n=== Encoded Size (%dx%dx%d) ===\n", channels, rows, cols)
	for _, f := range ndarray.Formats() {
		b, err := f.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", f.Name, err)
		}
		fmt.Printf("%-5s %10d bytes  %6.2f bytes/element\n", f.Name, len(b), float64(len(b))/float64(in.Size()))
	}
}

func TestPrecision(t *testing.T) {
	in := randomInput(2)

	fmt.Printf("\n=== Round-Trip Precision ===\n")
	for _, f := range ndarray.Formats() {
		b, err := f.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", f.Name, err)
		}
		out, err := f.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", f.Name, err)
		}
		if out.Size() != in.Size() {
			t.Fatalf("%s: %d elements read back, want %d", f.Name, out.Size(), in.Size())
		}

		maxRel := 0.0
		for i, v := range in.Data {
			if v == 0 {
				continue
			}
			maxRel = math.Max(maxRel, math.Abs(out.Data[i]-v)/math.Abs(v))
		}
		if !f.Lossy && maxRel != 0 {
			t.Errorf("%s is lossless but max relative error is %g", f.Name, maxRel)
		}
		if f.Lossy && maxRel > 1.0/(1<<24) {
			t.Errorf("%s max relative error %g exceeds float32 rounding", f.Name, maxRel)
		}
		fmt.Printf("%-5s max relative error: %g\n", f.Name, maxRel)
	}
}

func BenchmarkEncode(b *testing.B) {
	in := randomInput(3)
	for _, f := range ndarray.Formats() {
		b.Run(f.Name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := f.Encode(in); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecode(b *testing.B) {
	in := randomInput(4)
	for _, f := range ndarray.Formats() {
		enc, err := f.Encode(in)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(f.Name, func(b *testing.B) {
			b.SetBytes(int64(len(enc)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := f.Decode(enc); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
