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

// Package hwy provides a fixed-width, allocation-free SIMD abstraction with
// runtime CPU dispatch for the quantized kernels in go-qkernels.
//
// Vectors are value types whose lane count is chosen by a Tag (128, 256 or
// 512 bits, or the widest width detected at runtime). Every lane is 32 bits
// wide; 8-bit data is widened on load, the way vmovl/vpmovsx chains feed
// int32 accumulators in hand-written kernels.
//
// Basic usage:
//
//	import "github.com/ajroetker/go-qkernels/hwy"
//
//	d := hwy.FixedTag256{}
//	acc := hwy.Zero[int32](d)
//	w := hwy.LoadPromoteI8(d, weights)
//	acc = hwy.Add(acc, hwy.Mul(hwy.Set(d, int32(a)), w))
//	hwy.Store(hwy.ConvertToFloat32(acc), out)
package hwy

// MaxVecLanes is the largest lane count a Vec can hold: 512 bits of 32-bit lanes.
const MaxVecLanes = 16

// Floats is a constraint for floating-point lane types.
type Floats interface {
	~float32
}

// Integers is a constraint for integer lane types.
type Integers interface {
	~int32 | ~uint32
}

// Bytes is a constraint for 8-bit storage that is widened on load. Both
// types are read as two's-complement int8.
type Bytes interface {
	~int8 | ~uint8
}

// Lanes is a constraint for all types that can be stored in Vec lanes.
// Narrower integers are widened on load.
type Lanes interface {
	Floats | Integers
}

// Vec is a portable vector value. It is copied by value and never escapes to
// the heap, so kernels built on it perform no allocation.
//
// Vec instances should not be created directly; use Load, Set, or Zero instead.
type Vec[T Lanes] struct {
	data [MaxVecLanes]T
	n    int
}

// NumLanes returns the number of lanes (elements) in this vector.
func (v Vec[T]) NumLanes() int {
	return v.n
}

// GetLane returns lane i.
func (v Vec[T]) GetLane(i int) T {
	return v.data[i]
}

// Data returns a copy of the active lanes.
// This is primarily for testing and should not be used in performance-critical code.
func (v Vec[T]) Data() []T {
	out := make([]T, v.n)
	copy(out, v.data[:v.n])
	return out
}

// Mask represents per-lane predicates, used with MaskStore to perform
// partial writes.
type Mask struct {
	bits uint32
	n    int
}

// NumLanes returns the number of lanes in this mask.
func (m Mask) NumLanes() int {
	return m.n
}

// CountTrue returns the number of active lanes in the mask.
func (m Mask) CountTrue() int {
	count := 0
	for i := range m.n {
		if m.bits&(1<<i) != 0 {
			count++
		}
	}
	return count
}

// GetBit returns whether lane i is active.
func (m Mask) GetBit(i int) bool {
	if i < 0 || i >= m.n {
		return false
	}
	return m.bits&(1<<i) != 0
}
