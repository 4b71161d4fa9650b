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

import "math"

// Quantized int8 range.
const (
	QMin = -128
	QMax = 127
)

// Params are the quantization parameters of one activation row:
// real = (q - ZeroPoint) * Scale.
type Params struct {
	ZeroPoint int32
	Scale     float32
}

// Identity is the parameter set under which stored values are their own real
// value.
var Identity = Params{ZeroPoint: 0, Scale: 1}

// ComputeParams returns asymmetric int8 parameters covering row.
//
// The covered range is [min(row, 0), max(row, 0)] mapped onto [-128, 127].
// A row of zeros (or an empty row) yields Identity.
func ComputeParams(row []float32) Params {
	lo, hi := minMax(row)
	lo = min(lo, 0)
	hi = max(hi, 0)
	if lo == hi {
		return Identity
	}

	scale := (hi - lo) / float32(QMax-QMin)
	zp := math.RoundToEven(float64(QMin) - float64(lo)/float64(scale))
	zp = min(max(zp, QMin), QMax)
	return Params{ZeroPoint: int32(zp), Scale: scale}
}

// Quantize maps a real value to int8 using p, rounding to nearest even and
// saturating to [-128, 127].
func (p Params) Quantize(x float32) int8 {
	q := math.RoundToEven(float64(x)/float64(p.Scale)) + float64(p.ZeroPoint)
	return int8(min(max(q, QMin), QMax))
}

// Dequantize maps a stored value back to a real value.
func (p Params) Dequantize(q int8) float32 {
	return float32(int32(q)-p.ZeroPoint) * p.Scale
}
