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

// TailMask creates a mask with the first 'count' lanes of tag d active.
// This is useful for handling the tail (remainder) of an array
// when the size is not a multiple of the vector width.
//
// Example:
//
//	d := hwy.FixedTag128{}
//	lanes := hwy.NumLanes(d)
//	remaining := len(out) % lanes
//	if remaining > 0 {
//	    mask := hwy.TailMask(d, remaining)
//	    hwy.MaskStore(mask, result, out[len(out)-remaining:])
//	}
func TailMask(d Tag, count int) Mask {
	n := NumLanes(d)
	count = min(max(count, 0), n)
	return Mask{bits: uint32(1)<<count - 1, n: n}
}

// ProcessWithTail is a helper for processing arrays with SIMD that handles
// both full vectors and the tail (remainder) automatically.
//
// It calls:
//   - fullFn(offset) for each full vector (offset is the starting index)
//   - tailFn(offset, count) once for the tail if size is not a multiple of vector width
func ProcessWithTail(d Tag, size int, fullFn func(offset int), tailFn func(offset, count int)) {
	lanes := NumLanes(d)

	// Process full vectors
	fullVectors := size / lanes
	for i := range fullVectors {
		fullFn(i * lanes)
	}

	// Process tail if any
	remaining := size % lanes
	if remaining > 0 {
		tailFn(fullVectors*lanes, remaining)
	}
}

// AlignedSize rounds up size to the next multiple of the vector width of d.
// This is useful for allocating buffers that will be processed with SIMD.
func AlignedSize(d Tag, size int) int {
	lanes := NumLanes(d)
	return ((size + lanes - 1) / lanes) * lanes
}
