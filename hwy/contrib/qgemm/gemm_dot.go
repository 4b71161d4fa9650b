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

// dotKR is the k depth of one dot-product micro-block.
const dotKR = 4

// gemmDot is the 4-way dot-product kernel for KR=4 layouts.
//
// Each micro-block holds 4 consecutive k values per column, so one DotI8x4
// per vector folds 4 k steps into the accumulators. A trailing partial block
// is fed from a zero-padded copy of the activations and never reads a past kc.
func gemmDot[T any, S storer[T]](d hwy.Tag, mrMax, nr int, mr, nc, kc int, a []int8, aStride int, w []byte, c []T, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
	l := Layout{NR: nr, KR: dotKR}
	checkArgs(mrMax, l, mr, nc, kc, a, aStride, w, c, cmStride, cnStride, qp)

	var s S
	lanes := hwy.NumLanes(d)
	nv := nr / lanes
	blockSize := nr * dotKR
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

	// Activations of the trailing partial block, zero beyond kc.
	var tail [MaxMR][dotKR]int8
	kFull := kc / dotKR * dotKR
	if kFull < kc {
		for r := range mrMax {
			copy(tail[r][:], rows[r][kFull:])
		}
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
			b0 := body[k/dotKR*blockSize:]
			b1 := b0[blockSize:]
			for v := range nv {
				off := v * lanes * dotKR
				for r := range mrMax {
					acc[r][v] = hwy.DotI8x4(acc[r][v], rows[r][k:k+4], b0[off:])
					acc[r][v] = hwy.DotI8x4(acc[r][v], rows[r][k+4:k+8], b1[off:])
				}
			}
		}
		for ; k < kFull; k += dotKR {
			blk := body[k/dotKR*blockSize:]
			for v := range nv {
				off := v * lanes * dotKR
				for r := range mrMax {
					acc[r][v] = hwy.DotI8x4(acc[r][v], rows[r][k:k+4], blk[off:])
				}
			}
		}
		if k < kc {
			blk := body[k/dotKR*blockSize:]
			for v := range nv {
				off := v * lanes * dotKR
				for r := range mrMax {
					acc[r][v] = hwy.DotI8x4(acc[r][v], tail[r][:], blk[off:])
				}
			}
		}

		storeTile[T, S](s, d, &acc, mrMax, nv, nr, min(nc-col, nr), group, c, g*cnStride, mr, cmStride, vmin, vmax, qp)
	}
}
