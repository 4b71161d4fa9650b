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
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-qkernels/hwy/contrib/quantization"
)

// validate checks that a full m×n×k product fits the given buffers.
func validate(kern UKernel, m, n, k int, a []int8, aStride int, w *PackedWeights, c []float32, cStride int, qp []quantization.Params) error {
	switch {
	case m <= 0 || n <= 0 || k <= 0:
		return fmt.Errorf("qgemm: invalid shape m=%d n=%d k=%d", m, n, k)
	case w.Layout != kern.Layout():
		return fmt.Errorf("qgemm: weights packed as %s, kernel %s reads %s", w.Layout, kern.Name, kern.Layout())
	case w.K != k || w.N < n:
		return fmt.Errorf("qgemm: weights are %dx%d, need %dx%d", w.N, w.K, n, k)
	case aStride < k || len(a) < (m-1)*aStride+k:
		return fmt.Errorf("qgemm: a holds %d values, need %d rows of stride %d", len(a), m, aStride)
	case cStride < n || len(c) < (m-1)*cStride+n:
		return fmt.Errorf("qgemm: c holds %d values, need %d rows of stride %d", len(c), m, cStride)
	case len(qp) < m:
		return fmt.Errorf("qgemm: %d quantization params for %d rows", len(qp), m)
	}
	return nil
}

// Compute computes C[m×n] = requantize(A[m×k] · Wᵀ) with kernel kern,
// one MR-row panel at a time. C rows are cStride apart and columns are
// contiguous.
//
// Panics if the buffers do not match the shape.
func Compute(kern UKernel, m, n, k int, a []int8, aStride int, w *PackedWeights, c []float32, cStride int, params MinMax, qp []quantization.Params) {
	if err := validate(kern, m, n, k, a, aStride, w, c, cStride, qp); err != nil {
		panic(err.Error())
	}
	for i := 0; i < m; i += kern.MR {
		mr := min(kern.MR, m-i)
		kern.GEMM(mr, n, k, a[i*aStride:], aStride, w.Data, c[i*cStride:], cStride, kern.NR, params, qp[i:])
	}
}

// ColumnGroupsPerTile is the number of NR column groups ComputeParallel
// hands to one task.
const ColumnGroupsPerTile = 4

// ComputeParallel computes the same result as Compute, splitting C into
// disjoint tiles of MR rows × ColumnGroupsPerTile*NR columns run on at most
// workers goroutines (runtime.GOMAXPROCS(0) when workers <= 0).
//
// Tiles not yet started when ctx is cancelled are skipped and ctx.Err() is
// returned. Shape errors are returned before any work starts.
func ComputeParallel(ctx context.Context, kern UKernel, workers int, m, n, k int, a []int8, aStride int, w *PackedWeights, c []float32, cStride int, params MinMax, qp []quantization.Params) error {
	if err := validate(kern, m, n, k, a, aStride, w, c, cStride, qp); err != nil {
		return err
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	tileCols := ColumnGroupsPerTile * kern.NR
	for i := 0; i < m; i += kern.MR {
		mr := min(kern.MR, m-i)
		for j := 0; j < n; j += tileCols {
			nc := min(tileCols, n-j)
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				kern.GEMM(mr, nc, k, a[i*aStride:], aStride, w.From(j), c[i*cStride+j:], cStride, kern.NR, params, qp[i:])
				return nil
			})
		}
	}
	return g.Wait()
}

// ComputeFloat quantizes float32 activations row by row and computes
// C = requantize(quantize(A) · Wᵀ). A is m×k with row stride aStride.
func ComputeFloat(kern UKernel, m, n, k int, a []float32, aStride int, w *PackedWeights, c []float32, cStride int, params MinMax) {
	qa := make([]int8, m*k)
	qp := make([]quantization.Params, m)
	quantization.QuantizeRows(m, k, a, aStride, qa, k, qp)
	Compute(kern, m, n, k, qa, k, w, c, cStride, params, qp)
}
