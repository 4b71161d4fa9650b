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

// Package quantization holds the int8 quantization model shared by the
// quantized kernels in go-qkernels.
//
// A stored int8 value q means the real number
//
//	real = (q - ZeroPoint) * Scale
//
// Two flavours are supported:
//   - Dynamic, per-row asymmetric parameters computed at runtime from each
//     activation row (ComputeParams, QuantizeRows). The representable range
//     always contains 0 so that zero padding stays exact.
//   - Static, per-channel symmetric parameters baked into packed weights
//     (QuantizeChannels). Zero point is always 0 and only the scale is kept.
//
// # Usage with qgemm
//
//	params := make([]quantization.Params, m)
//	quantization.QuantizeRows(m, k, a, k, qa, k, params)
//	qgemm.Compute(kern, m, n, k, qa, k, packed, c, n, qgemm.Unbounded(), params)
package quantization
