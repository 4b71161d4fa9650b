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

// Package conv provides direct (im2col-free) float32 convolution kernels over
// interleaved-channel HWC images.
//
// ConvHWC3x3S2P1C3 is the first layer of most image models: a 3×3 kernel
// with stride 2 and padding 1 over 3-channel input, producing any number of
// output channels. Weights are prepacked with PackWeights into groups of 4
// output channels so each output pixel is computed in one 128-bit vector:
//
//	packed := conv.PackWeights(outC, kernel, bias)
//	err := conv.Conv(ctx, 0, h, w, image, packed, out, outC, qgemm.ReLU6())
//
// Vertical padding is emulated by substituting a caller-provided zero row
// for input rows outside the image. Horizontal padding is skipped.
package conv
