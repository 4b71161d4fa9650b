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

// Package contrib groups the kernels built on the hwy vector core.
//
// # Subpackages
//
//   - quantization: int8 quantization parameters, per-row dynamic and
//     per-channel static
//   - qgemm: quantized GEMM microkernels (int8 × int8 → float32/float16),
//     their packed weight format and the tile driver
//   - conv: direct 3×3 stride-2 HWC convolution for 3-channel input
//
// # Quantized GEMM (hwy/contrib/qgemm)
//
//	import "github.com/ajroetker/go-qkernels/hwy/contrib/qgemm"
//
//	kern := qgemm.Default()
//	packed := qgemm.PackWeights(kern.Layout(), n, k, weights, scales, bias)
//	qgemm.ComputeFloat(kern, m, n, k, activations, k, packed, out, n, qgemm.ReLU())
//
// # Convolution (hwy/contrib/conv)
//
//	import "github.com/ajroetker/go-qkernels/hwy/contrib/conv"
//
//	packed := conv.PackWeights(outC, kernel, bias)
//	err := conv.Conv(ctx, 0, height, width, image, packed, out, outC, qgemm.Unbounded())
package contrib
