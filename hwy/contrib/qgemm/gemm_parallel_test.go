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
	"math"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-qkernels/hwy/contrib/quantization"
)

func TestComputeParallelMatchesCompute(t *testing.T) {
	rng := testRNG()
	for _, kern := range Kernels() {
		t.Run(kern.Name, func(t *testing.T) {
			m, n, k := 3*kern.MR+2, 9*kern.NR+5, 29
			p := randomProblem(rng, m, n, k)
			packed := p.pack(kern)

			want := make([]float32, m*n)
			Compute(kern, m, n, k, p.a, p.aStride, packed, want, n, ReLU6(), p.qp)

			for _, workers := range []int{0, 1, 3} {
				got := make([]float32, m*n)
				err := ComputeParallel(context.Background(), kern, workers, m, n, k, p.a, p.aStride, packed, got, n, ReLU6(), p.qp)
				require.NoError(t, err)
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("workers=%d: mismatch (-want +got):\n%s", workers, diff)
				}
			}
		})
	}
}

func TestComputeParallelWorkerLimit(t *testing.T) {
	rng := testRNG()
	kern, ok := Lookup(ScalarName)
	require.True(t, ok)
	m, n, k := 8*kern.MR, 16*ColumnGroupsPerTile*kern.NR, 16
	p := randomProblem(rng, m, n, k)
	packed := p.pack(kern)

	var running, peak atomic.Int32
	gemm := kern.GEMM
	kern.GEMM = func(mr, nc, kc int, a []int8, aStride int, w []byte, c []float32, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
		cur := running.Add(1)
		defer running.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		gemm(mr, nc, kc, a, aStride, w, c, cmStride, cnStride, params, qp)
	}

	for _, tc := range []struct {
		workers, limit int
	}{
		{1, 1},
		{2, 2},
		{0, runtime.GOMAXPROCS(0)},
	} {
		peak.Store(0)
		c := make([]float32, m*n)
		err := ComputeParallel(context.Background(), kern, tc.workers, m, n, k, p.a, p.aStride, packed, c, n, Unbounded(), p.qp)
		require.NoError(t, err)
		require.LessOrEqual(t, int(peak.Load()), tc.limit, "workers=%d", tc.workers)
		require.Positive(t, peak.Load())
	}
}

func TestComputeParallelCancelled(t *testing.T) {
	rng := testRNG()
	kern := Default()
	p := randomProblem(rng, 8, 40, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := make([]float32, p.m*p.n)
	err := ComputeParallel(ctx, kern, 2, p.m, p.n, p.k, p.a, p.aStride, p.pack(kern), c, p.n, Unbounded(), p.qp)
	require.ErrorIs(t, err, context.Canceled)
	for _, v := range c {
		require.Zero(t, v, "no tile should run after cancellation")
	}
}

func TestComputeShapeErrors(t *testing.T) {
	rng := testRNG()
	kern, ok := Lookup(ScalarName)
	require.True(t, ok)
	p := randomProblem(rng, 4, 8, 16)
	packed := p.pack(kern)
	c := make([]float32, p.m*p.n)
	ctx := context.Background()

	err := ComputeParallel(ctx, kern, 1, p.m, p.n, p.k+1, p.a, p.aStride, packed, c, p.n, Unbounded(), p.qp)
	require.ErrorContains(t, err, "weights are")

	other, ok := Lookup("dot128-4x8c4")
	require.True(t, ok)
	err = ComputeParallel(ctx, other, 1, p.m, p.n, p.k, p.a, p.aStride, packed, c, p.n, Unbounded(), p.qp)
	require.ErrorContains(t, err, "packed as")

	err = ComputeParallel(ctx, kern, 1, p.m, p.n, p.k, p.a, p.aStride, packed, c[:len(c)-1], p.n, Unbounded(), p.qp)
	require.ErrorContains(t, err, "c holds")

	require.Panics(t, func() {
		Compute(kern, p.m, p.n, p.k, p.a, p.aStride, packed, c, p.n, Unbounded(), p.qp[:2])
	})
}

func TestComputeFloat(t *testing.T) {
	rng := testRNG()
	kern := Default()
	const m, n, k = 5, 23, 40

	a := make([]float32, m*k)
	for i := range a {
		a[i] = rng.Float32()*4 - 1
	}
	wf := make([]float32, n*k)
	for i := range wf {
		wf[i] = rng.Float32()*2 - 1
	}
	bias := make([]float32, n)
	for i := range bias {
		bias[i] = rng.Float32() - 0.5
	}

	qw := make([]int8, n*k)
	scales := make([]float32, n)
	quantization.QuantizeChannels(n, k, wf, qw, scales)
	packed := PackWeights(kern.Layout(), n, k, qw, scales, bias)

	c := make([]float32, m*n)
	ComputeFloat(kern, m, n, k, a, k, packed, c, n, Unbounded())

	for r := range m {
		for j := range n {
			want := float64(bias[j])
			for kk := range k {
				want += float64(a[r*k+kk]) * float64(wf[j*k+kk])
			}
			// Two 8-bit quantizations over k=40 terms.
			if diff := math.Abs(float64(c[r*n+j]) - want); diff > 0.5 {
				t.Errorf("c[%d][%d] = %v, want %v (diff %v)", r, j, c[r*n+j], want, diff)
			}
		}
	}
}
