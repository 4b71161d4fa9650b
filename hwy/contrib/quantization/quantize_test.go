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

package quantization

import (
	"math"
	"math/rand"
	"testing"
)

func TestComputeParams(t *testing.T) {
	tests := []struct {
		name string
		row  []float32
		want Params
	}{
		{"empty", nil, Identity},
		{"zeros", []float32{0, 0, 0}, Identity},
		{"positive", []float32{0, 2.55}, Params{ZeroPoint: -128, Scale: 0.01}},
		{"negative", []float32{-2.55, -1}, Params{ZeroPoint: 127, Scale: 0.01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeParams(tt.row)
			if got.ZeroPoint != tt.want.ZeroPoint {
				t.Errorf("ZeroPoint = %d, want %d", got.ZeroPoint, tt.want.ZeroPoint)
			}
			if math.Abs(float64(got.Scale-tt.want.Scale)) > 1e-6 {
				t.Errorf("Scale = %v, want %v", got.Scale, tt.want.Scale)
			}
		})
	}
}

func TestZeroIsExact(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for range 100 {
		row := make([]float32, 17)
		for i := range row {
			row[i] = rng.Float32()*8 - 3
		}
		p := ComputeParams(row)
		if got := p.Dequantize(p.Quantize(0)); got != 0 {
			t.Fatalf("zero round-trips to %v with %+v", got, p)
		}
	}
}

func TestQuantizeRowsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const m, k, stride = 5, 33, 40
	src := make([]float32, m*stride)
	for i := range src {
		src[i] = rng.Float32()*10 - 4
	}
	dst := make([]int8, m*stride)
	params := make([]Params, m)
	QuantizeRows(m, k, src, stride, dst, stride, params)

	back := make([]float32, k)
	for i := range m {
		Dequantize(dst[i*stride:i*stride+k], params[i], back)
		for j := range k {
			want := src[i*stride+j]
			// Rounding error is at most half a step.
			if diff := math.Abs(float64(back[j] - want)); diff > float64(params[i].Scale)/2+1e-5 {
				t.Errorf("row %d col %d: got %v, want %v (scale %v)", i, j, back[j], want, params[i].Scale)
			}
		}
	}
}

func TestQuantizeSaturates(t *testing.T) {
	p := Params{ZeroPoint: 0, Scale: 1}
	if got := p.Quantize(1000); got != QMax {
		t.Errorf("Quantize(1000) = %d, want %d", got, QMax)
	}
	if got := p.Quantize(-1000); got != QMin {
		t.Errorf("Quantize(-1000) = %d, want %d", got, QMin)
	}
	if got := p.Quantize(2.5); got != 2 {
		t.Errorf("Quantize(2.5) = %d, want 2 (round half to even)", got)
	}
}

func TestQuantizeChannels(t *testing.T) {
	w := []float32{
		1, -2, 0.5, 0,
		0, 0, 0, 0,
		-0.127, 0.0635, 0.127, 0,
	}
	q := make([]int8, len(w))
	scales := make([]float32, 3)
	QuantizeChannels(3, 4, w, q, scales)

	if scales[1] != 1 {
		t.Errorf("zero channel scale = %v, want 1", scales[1])
	}
	if q[1] != -127 {
		t.Errorf("max magnitude weight = %d, want -127", q[1])
	}
	if q[8] != -127 || q[10] != 127 {
		t.Errorf("channel 2 extremes = %d, %d, want -127, 127", q[8], q[10])
	}
	for c := range 3 {
		for j := range 4 {
			got := float32(q[c*4+j]) * scales[c]
			if math.Abs(float64(got-w[c*4+j])) > float64(scales[c])/2+1e-6 {
				t.Errorf("channel %d weight %d: got %v, want %v", c, j, got, w[c*4+j])
			}
		}
	}
}

func TestQuantizeRowsPanicsOnShortSlice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on short dst")
		}
	}()
	QuantizeRows(2, 4, make([]float32, 8), 4, make([]int8, 5), 4, make([]Params, 2))
}
