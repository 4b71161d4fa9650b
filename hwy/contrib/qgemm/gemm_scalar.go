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
	"github.com/ajroetker/go-qkernels/hwy/contrib/quantization"
)

// gemmScalar is the reference kernel. It handles any tile height and weight
// layout and defines the results every vector kernel reproduces bit for bit.
func gemmScalar[T any, S storer[T]](mrMax int, l Layout, mr, nc, kc int, a []int8, aStride int, w []byte, c []T, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
	checkArgs(mrMax, l, mr, nc, kc, a, aStride, w, c, cmStride, cnStride, qp)

	var s S
	nr, kr := l.NR, l.KR
	stride := l.GroupStride(kc)

	for col, g := 0, 0; col < nc; col, g = col+nr, g+1 {
		group := w[g*stride : (g+1)*stride]
		body := group[l.headerSize():]
		n := min(nc-col, nr)

		var acc [MaxMR][MaxNR]int32
		for r := range mrMax {
			// Rows beyond mr repeat the last valid row.
			rr := min(r, mr-1)
			zp := qp[rr].ZeroPoint
			row := a[rr*aStride : rr*aStride+kc]
			for j := range nr {
				sum := -zp * groupKernelSum(group, j)
				for k, x := range row {
					sum += int32(x) * int32(int8(body[k/kr*nr*kr+j*kr+k%kr]))
				}
				acc[r][j] = sum
			}
		}

		for r := mrMax - 1; r >= 0; r-- {
			rr := min(r, mr-1)
			inScale := qp[rr].Scale
			base := rr*cmStride + g*cnStride
			for j := range n {
				out := requantize(acc[r][j], inScale, groupScale(group, nr, j), groupBias(group, nr, j), params)
				s.put(c, base+j, out)
			}
		}
	}
}
