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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/ajroetker/go-qkernels/hwy"
	"github.com/ajroetker/go-qkernels/hwy/contrib/quantization"
)

// storer narrows epilogue results to the output element type.
type storer[T any] interface {
	storeN(v hwy.Vec[float32], dst []T, n int)
	put(dst []T, i int, x float32)
}

type f32Store struct{}

func (f32Store) storeN(v hwy.Vec[float32], dst []float32, n int) {
	hwy.StoreN(v, dst, n)
}

func (f32Store) put(dst []float32, i int, x float32) {
	dst[i] = x
}

type f16Store struct{}

func (f16Store) storeN(v hwy.Vec[float32], dst []float16.Float16, n int) {
	dst = dst[:n]
	for i := range dst {
		dst[i] = float16.Fromfloat32(v.GetLane(i))
	}
}

func (f16Store) put(dst []float16.Float16, i int, x float32) {
	dst[i] = float16.Fromfloat32(x)
}

// loadInt32LE loads NumLanes(d) little-endian int32 values from b.
func loadInt32LE(d hwy.Tag, b []byte) hwy.Vec[int32] {
	var buf [hwy.MaxVecLanes]int32
	n := hwy.NumLanes(d)
	for i := range n {
		buf[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return hwy.Load(d, buf[:n])
}

// loadFloat32LE loads NumLanes(d) little-endian float32 values from b.
func loadFloat32LE(d hwy.Tag, b []byte) hwy.Vec[float32] {
	var buf [hwy.MaxVecLanes]float32
	n := hwy.NumLanes(d)
	for i := range n {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return hwy.Load(d, buf[:n])
}

// requantize is the scalar epilogue for one output element. Vector kernels
// perform the same operations lane by lane.
func requantize(acc int32, inScale, wScale, bias float32, params MinMax) float32 {
	scale := float32(wScale * inScale)
	out := hwy.FusedMulAdd(float32(acc), scale, bias)
	return min(max(out, params.Min), params.Max)
}

// checkArgs panics unless a kernel call with tile height mrMax and weight
// layout l stays within the given slices.
func checkArgs[T any](mrMax int, l Layout, mr, nc, kc int, a []int8, aStride int, w []byte, c []T, cmStride, cnStride int, qp []quantization.Params) {
	if mr < 1 || mr > mrMax {
		panic(fmt.Sprintf("qgemm: mr=%d out of range [1, %d]", mr, mrMax))
	}
	if kc <= 0 {
		panic(fmt.Sprintf("qgemm: kc=%d must be positive", kc))
	}
	if nc < 0 {
		panic(fmt.Sprintf("qgemm: nc=%d must not be negative", nc))
	}
	if len(qp) < mr {
		panic("qgemm: quantization params slice too short")
	}
	if mr > 1 && aStride < kc {
		panic("qgemm: a stride smaller than kc")
	}
	if len(a) < (mr-1)*aStride+kc {
		panic("qgemm: a slice too short")
	}
	if nc == 0 {
		return
	}
	groups := l.Groups(nc)
	if len(w) < groups*l.GroupStride(kc) {
		panic("qgemm: packed weights too short")
	}
	last := nc - (groups-1)*l.NR
	if len(c) < (groups-1)*cnStride+(mr-1)*cmStride+last {
		panic("qgemm: c slice too short")
	}
}
