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

// Package qgemm provides quantized GEMM microkernels: int8 activations with
// dynamic per-row parameters times int8 weights with static per-column
// scales, producing float32 (or float16) outputs.
//
// Each kernel computes one MR×NR output tile per column group, reading
// weights from a packed blob (see PackWeights) and applying the
// requantization epilogue
//
//	c[r][j] = clamp(acc[r][j]*(inScale[r]*wScale[j]) + bias[j], min, max)
//
// where acc[r][j] = Σ_k (a[r][k] - zp[r]) * w[j][k]. The zero-point term is
// folded into the initial accumulator as -zp[r]*ksum[j].
//
// # Kernel Selection
//
// Several tile shapes are registered; all of them produce bit-identical
// results. Default picks the best one for the CPU detected by hwy:
//
//	kern := qgemm.Default()
//	packed := qgemm.PackWeights(kern.Layout(), n, k, w, scales, bias)
//	qgemm.Compute(kern, m, n, k, a, k, packed, c, n, qgemm.Unbounded(), params)
//
// Set HWY_NO_SIMD=1 to force the scalar kernel.
//
// # Packed Weights
//
// Packed weights can be persisted with PackedWeights.WriteTo and loaded with
// ReadPackedWeights or OpenPackedWeights. The file carries a versioned header
// and a checksum of the payload.
package qgemm
