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
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-qkernels/hwy/contrib/qgemm"
)

// RowsPerTask is the number of output rows one Conv task computes. It is
// even so that every task uses full row pairs except possibly the last.
const RowsPerTask = 8

// Conv runs ConvHWC3x3S2P1C3 over a whole inputHeight×inputWidth×3 image
// with padding 1 on every side. output is densely packed:
// OutputSize(inputHeight, inputWidth) pixels of outputChannels floats.
//
// Row ranges are computed concurrently on at most workers goroutines
// (GOMAXPROCS when workers <= 0). Cancelling ctx skips ranges not yet
// started and returns ctx.Err().
func Conv(ctx context.Context, workers, inputHeight, inputWidth int, input, weights, output []float32, outputChannels int, params qgemm.MinMax) error {
	outH, outW := OutputSize(inputHeight, inputWidth)
	if inputHeight <= 0 || inputWidth <= 0 || outputChannels <= 0 {
		return fmt.Errorf("conv: invalid shape %dx%d with %d output channels", inputHeight, inputWidth, outputChannels)
	}
	if len(input) < inputHeight*inputWidth*InputChannels {
		return fmt.Errorf("conv: input holds %d floats, need %d", len(input), inputHeight*inputWidth*InputChannels)
	}
	if len(weights) < PackedSize(outputChannels) {
		return fmt.Errorf("conv: weights hold %d floats, need %d", len(weights), PackedSize(outputChannels))
	}
	if len(output) < outH*outW*outputChannels {
		return fmt.Errorf("conv: output holds %d floats, need %d", len(output), outH*outW*outputChannels)
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	zero := make([]float32, inputWidth*InputChannels)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for y := 0; y < outH; y += RowsPerTask {
		end := min(y+RowsPerTask, outH)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ConvHWC3x3S2P1C3(inputHeight, inputWidth, y, end, input, zero, weights, output,
				1, outputChannels, outW*outputChannels, outputChannels, params)
			return nil
		})
	}
	return g.Wait()
}
