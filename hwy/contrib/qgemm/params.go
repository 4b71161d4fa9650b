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

package qgemm

import (
	"math"

	"github.com/x448/float16"

	"github.com/ajroetker/go-qkernels/hwy/contrib/quantization"
)

// Limits on tile shapes. Kernels keep their accumulators in fixed arrays of
// this size.
const (
	// MaxMR is the largest tile height of any kernel.
	MaxMR = 8

	// MaxNR is the largest tile width of any kernel.
	MaxNR = 64

	// maxVecs is the most column vectors a vector kernel keeps per row.
	maxVecs = 8

	// kStep is the number of k values consumed per main-loop iteration.
	kStep = 8
)

// MinMax holds the activation clamp bounds applied as the last step of the
// epilogue.
type MinMax struct {
	Min, Max float32
}

// Unbounded returns bounds that leave every finite output unchanged.
func Unbounded() MinMax {
	return MinMax{Min: float32(math.Inf(-1)), Max: float32(math.Inf(1))}
}

// ReLU returns bounds [0, +Inf).
func ReLU() MinMax {
	return MinMax{Min: 0, Max: float32(math.Inf(1))}
}

// ReLU6 returns bounds [0, 6].
func ReLU6() MinMax {
	return MinMax{Min: 0, Max: 6}
}

// f16 returns the bounds rounded to half precision, so that clamping in
// float32 before narrowing never produces a value outside the f16 bounds.
func (p MinMax) f16() MinMax {
	return MinMax{
		Min: float16.Fromfloat32(p.Min).Float32(),
		Max: float16.Fromfloat32(p.Max).Float32(),
	}
}

// GEMMFunc computes an mr×nc block of C from mr activation rows and packed
// weights.
//
//   - a: mr rows of kc int8 values, row r at a[r*aStride:]
//   - w: packed weights starting at the first column group to compute
//   - c: output, row r at c[r*cmStride:], column group g at offset g*cnStride
//   - qp: one quantization parameter set per row
//
// Requirements: 1 ≤ mr ≤ MR, kc > 0. nc may be any non-negative value; the
// last partial column group stores only its valid columns. Functions panic
// with a "qgemm:" message when requirements are violated.
type GEMMFunc func(mr, nc, kc int, a []int8, aStride int, w []byte, c []float32, cmStride, cnStride int, params MinMax, qp []quantization.Params)

// GEMMF16Func is GEMMFunc with half-precision outputs.
type GEMMF16Func func(mr, nc, kc int, a []int8, aStride int, w []byte, c []float16.Float16, cmStride, cnStride int, params MinMax, qp []quantization.Params)
