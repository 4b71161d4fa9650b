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

package hwy

import "math"

// This file provides the portable implementations of all Highway operations.
// Every operation works on fixed-size value vectors, so loops over them
// compile to straight-line lane loops with no allocation. Results are
// defined lane by lane and are therefore identical for every Tag width.

// Zero returns a vector of tag d with all lanes set to zero.
func Zero[T Lanes](d Tag) Vec[T] {
	return Vec[T]{n: NumLanes(d)}
}

// Set creates a vector with all lanes set to the same value.
func Set[T Lanes](d Tag, value T) Vec[T] {
	v := Vec[T]{n: NumLanes(d)}
	for i := range v.n {
		v.data[i] = value
	}
	return v
}

// Load creates a vector by loading NumLanes(d) elements from src.
// It panics if src is shorter than one vector.
func Load[T Lanes](d Tag, src []T) Vec[T] {
	v := Vec[T]{n: NumLanes(d)}
	copy(v.data[:v.n], src[:v.n])
	return v
}

// LoadN loads the first count elements of src and zeroes the remaining lanes.
func LoadN[T Lanes](d Tag, src []T, count int) Vec[T] {
	v := Vec[T]{n: NumLanes(d)}
	count = min(max(count, 0), v.n)
	copy(v.data[:count], src[:count])
	return v
}

// LoadPromoteI8 loads NumLanes(d) signed bytes and sign-extends each into an
// int32 lane. Raw uint8 storage is reinterpreted as int8.
func LoadPromoteI8[B Bytes](d Tag, src []B) Vec[int32] {
	v := Vec[int32]{n: NumLanes(d)}
	src = src[:v.n]
	for i, b := range src {
		v.data[i] = int32(int8(b))
	}
	return v
}

// Store writes all lanes of v to dst. It panics if dst is shorter than one
// vector.
func Store[T Lanes](v Vec[T], dst []T) {
	copy(dst[:v.n], v.data[:v.n])
}

// StoreN writes the first count lanes of v to dst and leaves the rest of dst
// untouched.
func StoreN[T Lanes](v Vec[T], dst []T, count int) {
	count = min(max(count, 0), v.n)
	copy(dst[:count], v.data[:count])
}

// MaskStore writes the lanes of v selected by mask to dst.
// Unselected positions of dst are not modified.
func MaskStore[T Lanes](mask Mask, v Vec[T], dst []T) {
	for i := range v.n {
		if mask.GetBit(i) {
			dst[i] = v.data[i]
		}
	}
}

// Add performs element-wise addition. Integer lanes wrap.
func Add[T Lanes](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] += b.data[i]
	}
	return a
}

// Sub performs element-wise subtraction. Integer lanes wrap.
func Sub[T Lanes](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] -= b.data[i]
	}
	return a
}

// Mul performs element-wise multiplication. Integer lanes keep the low 32
// bits of the product.
func Mul[T Lanes](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] *= b.data[i]
	}
	return a
}

// MulAddLane adds a*b to acc where b is broadcast from a scalar, the shape of
// a multiply-accumulate-by-lane instruction (vmlal_lane, vpmaddwd+broadcast).
func MulAddLane[T Integers](acc, a Vec[T], b T) Vec[T] {
	for i := range acc.n {
		acc.data[i] += a.data[i] * b
	}
	return acc
}

// FusedMulAdd computes a*b+c with a single rounding.
//
// It is the only float multiply-add used by the kernels, vector or scalar,
// so results never depend on which target ran.
func FusedMulAdd(a, b, c float32) float32 {
	// The product of two float32 values is exact in float64, so only the sum
	// rounds. Rounding that sum to odd keeps the final narrowing correct.
	p := float64(a) * float64(b)
	s := p + float64(c)
	if math.IsInf(s, 0) || math.IsNaN(s) {
		return float32(s)
	}
	v := s - p
	e := (p - (s - v)) + (float64(c) - v)
	if e != 0 && math.Float64bits(s)&1 == 0 {
		s = math.Nextafter(s, math.Copysign(math.Inf(1), e))
	}
	return float32(s)
}

// MulAdd computes a*b+c per lane with a single rounding.
func MulAdd[T Floats](a, b, c Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] = T(FusedMulAdd(float32(a.data[i]), float32(b.data[i]), float32(c.data[i])))
	}
	return a
}

// Min returns the element-wise minimum.
func Min[T Lanes](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] = min(a.data[i], b.data[i])
	}
	return a
}

// Max returns the element-wise maximum.
func Max[T Lanes](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] = max(a.data[i], b.data[i])
	}
	return a
}

// Clamp bounds each lane of v to [lo, hi], applying the lower bound first.
// When lo > hi every lane becomes hi.
func Clamp[T Lanes](v, lo, hi Vec[T]) Vec[T] {
	return Min(Max(v, lo), hi)
}

// ConvertToFloat32 converts int32 lanes to float32 with round-to-nearest-even.
func ConvertToFloat32(v Vec[int32]) Vec[float32] {
	out := Vec[float32]{n: v.n}
	for i := range v.n {
		out.data[i] = float32(v.data[i])
	}
	return out
}

// DotI8x4 accumulates 4-way int8 dot products into int32 lanes:
//
//	acc[i] += a[0]*b[4i] + a[1]*b[4i+1] + a[2]*b[4i+2] + a[3]*b[4i+3]
//
// a holds four values broadcast to every lane and b holds 4*NumLanes bytes,
// both read as signed. This is the by-element form of SDOT and VPDPBUSD.
func DotI8x4[A, B Bytes](acc Vec[int32], a []A, b []B) Vec[int32] {
	a0, a1, a2, a3 := int32(int8(a[0])), int32(int8(a[1])), int32(int8(a[2])), int32(int8(a[3]))
	b = b[:4*acc.n]
	for i := range acc.n {
		q := b[4*i : 4*i+4 : 4*i+4]
		acc.data[i] += a0*int32(int8(q[0])) + a1*int32(int8(q[1])) + a2*int32(int8(q[2])) + a3*int32(int8(q[3]))
	}
	return acc
}

// ReduceSum returns the sum of all lanes.
func ReduceSum[T Lanes](v Vec[T]) T {
	var sum T
	for i := range v.n {
		sum += v.data[i]
	}
	return sum
}

// ReduceMin returns the smallest lane.
func ReduceMin[T Lanes](v Vec[T]) T {
	m := v.data[0]
	for i := 1; i < v.n; i++ {
		m = min(m, v.data[i])
	}
	return m
}

// ReduceMax returns the largest lane.
func ReduceMax[T Lanes](v Vec[T]) T {
	m := v.data[0]
	for i := 1; i < v.n; i++ {
		m = max(m, v.data[i])
	}
	return m
}
