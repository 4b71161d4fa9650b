// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conv

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/ajroetker/go-qkernels/hwy/contrib/qgemm"
)

// testRNG returns a seeded random number generator for reproducible tests.
func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func randomSlice(rng *rand.Rand, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = rng.Float32()*2 - 1
	}
	return s
}

// referenceConv is a naive zero-padded 3×3 stride-2 convolution computed in
// float64. kernel is [co][ky][kx][ci].
func referenceConv(h, w int, input, kernel, bias []float32, outC, padTop int, params qgemm.MinMax) (out []float32, outH, outW int) {
	outH, outW = OutputSize(h, w)
	out = make([]float32, outH*outW*outC)
	for oy := range outH {
		for ox := range outW {
			for co := range outC {
				sum := float64(bias[co])
				for ky := range 3 {
					iy := 2*oy - padTop + ky
					if iy < 0 || iy >= h {
						continue
					}
					for kx := range 3 {
						ix := 2*ox - 1 + kx
						if ix < 0 || ix >= w {
							continue
						}
						for ci := range InputChannels {
							sum += float64(input[(iy*w+ix)*InputChannels+ci]) * float64(kernel[((co*3+ky)*3+kx)*InputChannels+ci])
						}
					}
				}
				v := min(max(float32(sum), params.Min), params.Max)
				out[(oy*outW+ox)*outC+co] = v
			}
		}
	}
	return out, outH, outW
}

func assertClose(t *testing.T, want, got []float32, tol float64) {
	t.Helper()
	for i := range want {
		if diff := math.Abs(float64(want[i] - got[i])); diff > tol {
			t.Fatalf("index %d: got %v, want %v (diff %v)", i, got[i], want[i], diff)
		}
	}
}

func TestConvMatchesReference(t *testing.T) {
	rng := testRNG()
	tests := []struct {
		h, w, outC int
	}{
		{1, 1, 1},
		{2, 2, 4},
		{3, 5, 3},
		{4, 4, 8},
		{5, 7, 5},
		{7, 6, 6},
		{9, 11, 16},
		{16, 16, 32},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d_c%d", tt.h, tt.w, tt.outC), func(t *testing.T) {
			input := randomSlice(rng, tt.h*tt.w*InputChannels)
			kernel := randomSlice(rng, tt.outC*27)
			bias := randomSlice(rng, tt.outC)
			want, outH, outW := referenceConv(tt.h, tt.w, input, kernel, bias, tt.outC, 1, qgemm.Unbounded())

			got := make([]float32, outH*outW*tt.outC)
			zero := make([]float32, tt.w*InputChannels)
			ConvHWC3x3S2P1C3(tt.h, tt.w, 0, outH, input, zero, PackWeights(tt.outC, kernel, bias), got,
				1, tt.outC, outW*tt.outC, tt.outC, qgemm.Unbounded())
			assertClose(t, want, got, 1e-4)
		})
	}
}

func TestConvNoTopPadding(t *testing.T) {
	rng := testRNG()
	const h, w, outC = 8, 6, 4
	input := randomSlice(rng, h*w*InputChannels)
	kernel := randomSlice(rng, outC*27)
	bias := randomSlice(rng, outC)
	want, _, outW := referenceConv(h, w, input, kernel, bias, outC, 0, qgemm.Unbounded())

	// Without top padding only 3 full windows fit vertically plus one that
	// reads the zero row below the image.
	outH := 4
	got := make([]float32, outH*outW*outC)
	zero := make([]float32, w*InputChannels)
	ConvHWC3x3S2P1C3(h, w, 0, outH, input, zero, PackWeights(outC, kernel, bias), got,
		0, outC, outW*outC, outC, qgemm.Unbounded())
	assertClose(t, want[:outH*outW*outC], got, 1e-4)
}

func TestConvOddRowRangeWritesOnlyItsRows(t *testing.T) {
	rng := testRNG()
	const h, w, outC = 10, 5, 4
	const sentinel = float32(-777)
	input := randomSlice(rng, h*w*InputChannels)
	kernel := randomSlice(rng, outC*27)
	bias := randomSlice(rng, outC)
	want, outH, outW := referenceConv(h, w, input, kernel, bias, outC, 1, qgemm.Unbounded())

	got := make([]float32, outH*outW*outC)
	for i := range got {
		got[i] = sentinel
	}
	zero := make([]float32, w*InputChannels)
	rowLen := outW * outC
	// Rows [1, 4): one pair then an aliased single row.
	ConvHWC3x3S2P1C3(h, w, 1, 4, input, zero, PackWeights(outC, kernel, bias), got,
		1, outC, rowLen, outC, qgemm.Unbounded())

	for y := range outH {
		row := got[y*rowLen : (y+1)*rowLen]
		if y >= 1 && y < 4 {
			assertClose(t, want[y*rowLen:(y+1)*rowLen], row, 1e-4)
			continue
		}
		for i, v := range row {
			if v != sentinel {
				t.Fatalf("row %d index %d written outside [1, 4)", y, i)
			}
		}
	}
}

func TestConvChannelTailAndStrides(t *testing.T) {
	rng := testRNG()
	const h, w, outC = 6, 7, 6
	const pixelStride = 9 // two spare floats per pixel
	const sentinel = float32(123)
	input := randomSlice(rng, h*w*InputChannels)
	kernel := randomSlice(rng, outC*27)
	bias := randomSlice(rng, outC)
	want, outH, outW := referenceConv(h, w, input, kernel, bias, outC, 1, qgemm.Unbounded())

	rowStride := outW*pixelStride + 1
	got := make([]float32, outH*rowStride)
	for i := range got {
		got[i] = sentinel
	}
	zero := make([]float32, w*InputChannels)
	ConvHWC3x3S2P1C3(h, w, 0, outH, input, zero, PackWeights(outC, kernel, bias), got,
		1, outC, rowStride, pixelStride, qgemm.Unbounded())

	for y := range outH {
		for x := range outW {
			for c := range pixelStride {
				v := got[y*rowStride+x*pixelStride+c]
				if c >= outC {
					if v != sentinel {
						t.Fatalf("pixel (%d,%d) channel slot %d overwritten", y, x, c)
					}
					continue
				}
				exp := want[(y*outW+x)*outC+c]
				if math.Abs(float64(v-exp)) > 1e-4 {
					t.Fatalf("pixel (%d,%d) channel %d: got %v, want %v", y, x, c, v, exp)
				}
			}
		}
	}
}

func TestConvClamp(t *testing.T) {
	rng := testRNG()
	const h, w, outC = 5, 5, 8
	params := qgemm.MinMax{Min: -0.25, Max: 0.5}
	input := randomSlice(rng, h*w*InputChannels)
	kernel := randomSlice(rng, outC*27)
	bias := randomSlice(rng, outC)
	want, outH, outW := referenceConv(h, w, input, kernel, bias, outC, 1, params)

	got := make([]float32, outH*outW*outC)
	zero := make([]float32, w*InputChannels)
	ConvHWC3x3S2P1C3(h, w, 0, outH, input, zero, PackWeights(outC, kernel, bias), got,
		1, outC, outW*outC, outC, params)
	assertClose(t, want, got, 1e-4)
	for i, v := range got {
		if v < params.Min || v > params.Max {
			t.Fatalf("got[%d] = %v outside [%v, %v]", i, v, params.Min, params.Max)
		}
	}
}

func TestPackWeightsLayout(t *testing.T) {
	const outC = 5
	kernel := make([]float32, outC*27)
	for i := range kernel {
		kernel[i] = float32(i)
	}
	bias := []float32{-1, -2, -3, -4, -5}
	packed := PackWeights(outC, kernel, bias)
	if len(packed) != 2*GroupSize {
		t.Fatalf("len = %d, want %d", len(packed), 2*GroupSize)
	}
	if packed[0] != -1 || packed[3] != -4 || packed[GroupSize] != -5 || packed[GroupSize+1] != 0 {
		t.Errorf("bias lanes = %v / %v", packed[:4], packed[GroupSize:GroupSize+4])
	}
	// Second weight vector is (ky=1, kx=0, ci=0) for channels 0..3.
	for lane := range 4 {
		want := kernel[lane*27+(1*3+0)*3+0]
		if got := packed[8+lane]; got != want {
			t.Errorf("packed[%d] = %v, want %v", 8+lane, got, want)
		}
	}
	// Fourth vector starts the next input channel: (ky=0, kx=0, ci=1).
	if got, want := packed[16], kernel[1]; got != want {
		t.Errorf("packed[16] = %v, want %v", got, want)
	}
}

func TestConvParallel(t *testing.T) {
	rng := testRNG()
	const h, w, outC = 37, 23, 12
	input := randomSlice(rng, h*w*InputChannels)
	kernel := randomSlice(rng, outC*27)
	bias := randomSlice(rng, outC)
	want, outH, outW := referenceConv(h, w, input, kernel, bias, outC, 1, qgemm.ReLU6())

	got := make([]float32, outH*outW*outC)
	if err := Conv(context.Background(), 3, h, w, input, PackWeights(outC, kernel, bias), got, outC, qgemm.ReLU6()); err != nil {
		t.Fatal(err)
	}
	assertClose(t, want, got, 1e-4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Conv(ctx, 1, h, w, input, PackWeights(outC, kernel, bias), got, outC, qgemm.ReLU6()); err != context.Canceled {
		t.Errorf("cancelled Conv returned %v, want %v", err, context.Canceled)
	}
	if err := Conv(context.Background(), 1, h, w, input[:10], PackWeights(outC, kernel, bias), got, outC, qgemm.ReLU6()); err == nil {
		t.Error("expected error for short input")
	}
}

func BenchmarkConvHWC(b *testing.B) {
	rng := testRNG()
	const h, w, outC = 224, 224, 32
	input := randomSlice(rng, h*w*InputChannels)
	packed := PackWeights(outC, randomSlice(rng, outC*27), randomSlice(rng, outC))
	outH, outW := OutputSize(h, w)
	out := make([]float32, outH*outW*outC)
	zero := make([]float32, w*InputChannels)
	for b.Loop() {
		ConvHWC3x3S2P1C3(h, w, 0, outH, input, zero, packed, out, 1, outC, outW*outC, outC, qgemm.Unbounded())
	}
}
