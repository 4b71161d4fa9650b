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

	"github.com/ajroetker/go-qkernels/hwy"
)

// minMax returns the smallest and largest values of row, or (0, 0) when row
// is empty.
func minMax(row []float32) (lo, hi float32) {
	if len(row) == 0 {
		return 0, 0
	}
	d := hwy.ScalableTag{}
	lo, hi = row[0], row[0]
	hwy.ProcessWithTail(d, len(row),
		func(offset int) {
			v := hwy.Load(d, row[offset:])
			lo = min(lo, hwy.ReduceMin(v))
			hi = max(hi, hwy.ReduceMax(v))
		},
		func(offset, count int) {
			for _, x := range row[offset : offset+count] {
				lo = min(lo, x)
				hi = max(hi, x)
			}
		},
	)
	return lo, hi
}

// QuantizeRows quantizes m rows of k floats each into int8 with one dynamic
// parameter set per row.
//
// Row i is read from src[i*srcStride:][:k] and written to dst[i*dstStride:][:k];
// params[i] receives its parameters. Panics if any slice is too short.
func QuantizeRows(m, k int, src []float32, srcStride int, dst []int8, dstStride int, params []Params) {
	if m <= 0 || k <= 0 {
		return
	}
	if srcStride < k || dstStride < k {
		panic("quantization: stride smaller than row length")
	}
	if len(src) < (m-1)*srcStride+k {
		panic("quantization: src slice too short")
	}
	if len(dst) < (m-1)*dstStride+k {
		panic("quantization: dst slice too short")
	}
	if len(params) < m {
		panic("quantization: params slice too short")
	}

	for i := range m {
		row := src[i*srcStride : i*srcStride+k]
		out := dst[i*dstStride : i*dstStride+k]
		p := ComputeParams(row)
		params[i] = p
		for j, x := range row {
			out[j] = p.Quantize(x)
		}
	}
}

// Dequantize converts stored values back to real values with p.
func Dequantize(q []int8, p Params, dst []float32) {
	if len(dst) < len(q) {
		panic("quantization: dst slice too short")
	}
	for i, v := range q {
		dst[i] = p.Dequantize(v)
	}
}

// QuantizeChannels quantizes an n×k weight matrix (row-major, one row per
// output channel) symmetrically, one scale per channel:
//
//	scale[c] = max|w[c,:]| / 127,  q = round(w / scale[c])
//
// A channel of zeros gets scale 1. dst must hold n*k values and scales n.
func QuantizeChannels(n, k int, w []float32, dst []int8, scales []float32) {
	if len(w) < n*k {
		panic("quantization: weight slice too short")
	}
	if len(dst) < n*k {
		panic("quantization: dst slice too short")
	}
	if len(scales) < n {
		panic("quantization: scales slice too short")
	}

	for c := range n {
		row := w[c*k : (c+1)*k]
		lo, hi := minMax(row)
		absMax := max(-lo, hi)
		scale := float32(1)
		if absMax > 0 {
			scale = absMax / QMax
		}
		scales[c] = scale
		out := dst[c*k : (c+1)*k]
		for j, x := range row {
			q := math.RoundToEven(float64(x) / float64(scale))
			out[j] = int8(min(max(q, -QMax), QMax))
		}
	}
}
