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
	"github.com/ajroetker/go-qkernels/hwy"
	"github.com/ajroetker/go-qkernels/hwy/contrib/quantization"
)

// gemmLane is the multiply-accumulate-by-lane kernel for KR=1 layouts.
//
// Each k step loads the NR weights of one packed row once, widens them to
// int32 vectors, and accumulates weight × broadcast activation into every
// row of the tile. NR must be a multiple of NumLanes(d).
func gemmLane[T any, S storer[T]](d hwy.Tag, mrMax, nr int, mr, nc, kc int, a []int8, aStride int, w []byte, c []T, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
	l := Layout{NR: nr, KR: 1}
	checkArgs(mrMax, l, mr, nc, kc, a, aStride, w, c, cmStride, cnStride, qp)

	var s S
	lanes := hwy.NumLanes(d)
	nv := nr / lanes
	stride := l.GroupStride(kc)
	vmin := hwy.Set(d, params.Min)
	vmax := hwy.Set(d, params.Max)

	var rows [MaxMR][]int8
	var negZP [MaxMR]int32
	for r := range mrMax {
		rr := min(r, mr-1)
		rows[r] = a[rr*aStride : rr*aStride+kc]
		negZP[r] = -qp[rr].ZeroPoint
	}

	for col, g := 0, 0; col < nc; col, g = col+nr, g+1 {
		group := w[g*stride : (g+1)*stride]
		body := group[l.headerSize():]

		var acc [MaxMR][maxVecs]hwy.Vec[int32]
		for v := range nv {
			ksum := loadInt32LE(d, group[4*v*lanes:])
			for r := range mrMax {
				acc[r][v] = hwy.Mul(ksum, hwy.Set(d, negZP[r]))
			}
		}

		k := 0
		for ; k+kStep <= kc; k += kStep {
			var av [MaxMR][kStep]int32
			for r := range mrMax {
				for i, x := range rows[r][k : k+kStep] {
					av[r][i] = int32(x)
				}
			}
			for i := range kStep {
				wk := body[(k+i)*nr:]
				for v := range nv {
					wv := hwy.LoadPromoteI8(d, wk[v*lanes:])
					for r := range mrMax {
						acc[r][v] = hwy.MulAddLane(acc[r][v], wv, av[r][i])
					}
				}
			}
		}
		for ; k < kc; k++ {
			wk := body[k*nr:]
			for v := range nv {
				wv := hwy.LoadPromoteI8(d, wk[v*lanes:])
				for r := range mrMax {
					acc[r][v] = hwy.MulAddLane(acc[r][v], wv, int32(rows[r][k]))
				}
			}
		}

		storeTile[T, S](s, d, &acc, mrMax, nv, nr, min(nc-col, nr), group, c, g*cnStride, mr, cmStride, vmin, vmax, qp)
	}
}

// storeTile runs the epilogue over an accumulator tile and stores the first
// n columns of each row. Rows are stored from the highest down, so the last
// valid row is written last by its own accumulators.
func storeTile[T any, S storer[T]](s S, d hwy.Tag, acc *[MaxMR][maxVecs]hwy.Vec[int32], mrMax, nv, nr, n int, group []byte, c []T, cOff, mr, cmStride int, vmin, vmax hwy.Vec[float32], qp []quantization.Params) {
	lanes := hwy.NumLanes(d)
	for r := mrMax - 1; r >= 0; r-- {
		rr := min(r, mr-1)
		inScale := hwy.Set(d, qp[rr].Scale)
		crow := c[rr*cmStride+cOff:]
		for v := range nv {
			count := min(n-v*lanes, lanes)
			if count <= 0 {
				break
			}
			scale := hwy.Mul(loadFloat32LE(d, group[4*(nr+v*lanes):]), inScale)
			bias := loadFloat32LE(d, group[4*(2*nr+v*lanes):])
			out := hwy.MulAdd(hwy.ConvertToFloat32(acc[r][v]), scale, bias)
			out = hwy.Min(hwy.Max(out, vmin), vmax)
			s.storeN(out, crow[v*lanes:], count)
		}
	}
}
