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

package conv

import (
	"fmt"

	"github.com/ajroetker/go-qkernels/hwy"
	"github.com/ajroetker/go-qkernels/hwy/contrib/qgemm"
)

const (
	// InputChannels is the channel count ConvHWC3x3S2P1C3 reads.
	InputChannels = 3

	// ChannelTile is the number of output channels computed together.
	ChannelTile = 4

	// GroupSize is the number of floats per packed group of ChannelTile
	// output channels: ChannelTile biases then 3×3×3 weight vectors.
	GroupSize = ChannelTile * (1 + 3*3*InputChannels)
)

// OutputSize returns the output height and width of a 3×3 stride-2 padding-1
// convolution.
func OutputSize(inputHeight, inputWidth int) (height, width int) {
	return (inputHeight + 1) / 2, (inputWidth + 1) / 2
}

// PackedSize returns the length of the packed weights for outputChannels.
func PackedSize(outputChannels int) int {
	return (outputChannels + ChannelTile - 1) / ChannelTile * GroupSize
}

// weightOffset is the index within a packed group of the 4 weights for
// kernel position (ky, kx) and input channel ci.
func weightOffset(ky, kx, ci int) int {
	return ChannelTile * (1 + (kx*InputChannels+ci)*3 + ky)
}

// PackWeights packs a [outputChannels][3][3][3] kernel (co, ky, kx, ci) and
// per-channel bias into the layout read by ConvHWC3x3S2P1C3. Channels past
// outputChannels in the last group are zero. bias may be nil.
func PackWeights(outputChannels int, kernel, bias []float32) []float32 {
	if outputChannels <= 0 {
		panic(fmt.Sprintf("conv: invalid output channel count %d", outputChannels))
	}
	const perChannel = 3 * 3 * InputChannels
	if len(kernel) < outputChannels*perChannel {
		panic("conv: kernel slice too short")
	}
	if bias != nil && len(bias) < outputChannels {
		panic("conv: bias slice too short")
	}

	packed := make([]float32, PackedSize(outputChannels))
	for co := range outputChannels {
		group := packed[co/ChannelTile*GroupSize:]
		lane := co % ChannelTile
		if bias != nil {
			group[lane] = bias[co]
		}
		k := kernel[co*perChannel:]
		for ky := range 3 {
			for kx := range 3 {
				for ci := range InputChannels {
					group[weightOffset(ky, kx, ci)+lane] = k[(ky*3+kx)*InputChannels+ci]
				}
			}
		}
	}
	return packed
}

// ConvHWC3x3S2P1C3 computes output rows [outputYStart, outputYEnd) of a 3×3
// stride-2 convolution with padding 1 over a 3-channel HWC input.
//
//   - input: inputHeight rows of inputWidth*3 floats
//   - zero: at least inputWidth*3 zeros, read in place of rows outside the image
//   - weights: PackWeights output for outputChannels
//   - output: pixel (y, x) channel c at y*outputHeightStride + x*outputWidthStride + c
//
// inputPaddingTop is 0 or 1; with 0 the first input row read for output row
// y is 2y, with 1 it is 2y-1. Rows are computed two at a time; for an odd
// trailing row the second row is computed into the first and stored before
// it, so the real row wins. The clamp to params is the last step.
func ConvHWC3x3S2P1C3(inputHeight, inputWidth, outputYStart, outputYEnd int, input, zero, weights, output []float32, inputPaddingTop, outputChannels, outputHeightStride, outputWidthStride int, params qgemm.MinMax) {
	switch {
	case inputHeight <= 0 || inputWidth <= 0:
		panic(fmt.Sprintf("conv: invalid input size %dx%d", inputHeight, inputWidth))
	case outputYStart < 0 || outputYEnd <= outputYStart:
		panic(fmt.Sprintf("conv: invalid output rows [%d, %d)", outputYStart, outputYEnd))
	case inputPaddingTop < 0 || inputPaddingTop > 1:
		panic(fmt.Sprintf("conv: input padding top %d not in [0, 1]", inputPaddingTop))
	case outputChannels <= 0:
		panic(fmt.Sprintf("conv: invalid output channel count %d", outputChannels))
	}
	rowLen := inputWidth * InputChannels
	outputWidth := (inputWidth + 1) / 2
	switch {
	case len(input) < inputHeight*rowLen:
		panic("conv: input slice too short")
	case len(zero) < rowLen:
		panic("conv: zero row too short")
	case len(weights) < PackedSize(outputChannels):
		panic("conv: weights slice too short")
	case len(output) < (outputYEnd-1)*outputHeightStride+(outputWidth-1)*outputWidthStride+outputChannels:
		panic("conv: output slice too short")
	}

	d := hwy.FixedTag128{}
	vmin := hwy.Set(d, params.Min)
	vmax := hwy.Set(d, params.Max)

	for oy := outputYStart; oy < outputYEnd; oy += 2 {
		// Rows 0-2 feed output row oy, rows 2-4 feed row oy+1.
		var rows [5][]float32
		for i := range rows {
			iy := 2*oy - inputPaddingTop + i
			if iy < 0 || iy >= inputHeight {
				rows[i] = zero[:rowLen]
			} else {
				rows[i] = input[iy*rowLen : (iy+1)*rowLen]
			}
		}
		o0 := output[oy*outputHeightStride:]
		o1 := o0
		if oy+1 < outputYEnd {
			o1 = output[(oy+1)*outputHeightStride:]
		}

		for c := 0; c < outputChannels; c += ChannelTile {
			w := weights[c/ChannelTile*GroupSize : (c/ChannelTile+1)*GroupSize]
			n := min(ChannelTile, outputChannels-c)
			bias := hwy.Load(d, w)

			for ox := range outputWidth {
				acc0, acc1 := bias, bias
				// Input column 2*ox-1+kx; columns outside the image are padding.
				kxStart, kxEnd := 0, 3
				if ox == 0 {
					kxStart = 1
				}
				if 2*ox+1 >= inputWidth {
					kxEnd = 2
				}
				for kx := kxStart; kx < kxEnd; kx++ {
					ix := (2*ox - 1 + kx) * InputChannels
					for ci := range InputChannels {
						for ky := range 3 {
							k := hwy.Load(d, w[weightOffset(ky, kx, ci):])
							acc0 = hwy.MulAdd(k, hwy.Set(d, rows[ky][ix+ci]), acc0)
							acc1 = hwy.MulAdd(k, hwy.Set(d, rows[ky+2][ix+ci]), acc1)
						}
					}
				}
				acc0 = hwy.Min(hwy.Max(acc0, vmin), vmax)
				acc1 = hwy.Min(hwy.Max(acc1, vmin), vmax)

				off := ox*outputWidthStride + c
				hwy.StoreN(acc1, o1[off:], n)
				hwy.StoreN(acc0, o0[off:], n)
			}
		}
	}
}
