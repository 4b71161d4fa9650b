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
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/x448/float16"
	"k8s.io/klog/v2"

	"github.com/ajroetker/go-qkernels/hwy"
	"github.com/ajroetker/go-qkernels/hwy/contrib/quantization"
)

// UKernel is one registered microkernel: a tile shape, the packed weight
// layout it reads, and the CPU capabilities it is tuned for.
type UKernel struct {
	Name string

	// MR×NR is the output tile; KR is the k depth of a packed micro-block.
	MR, NR, KR int

	// Width is the SIMD register width in bytes the kernel is written for,
	// 0 for the scalar kernel.
	Width int

	// Requires lists instruction groups the kernel needs besides Width.
	Requires hwy.Features

	GEMM    GEMMFunc
	GEMMF16 GEMMF16Func
}

// Layout returns the packed weight layout the kernel reads.
func (k UKernel) Layout() Layout {
	return Layout{NR: k.NR, KR: k.KR}
}

// Supported reports whether the current CPU has what the kernel is tuned for.
// Every kernel computes correct results on any CPU; Supported only drives
// selection.
func (k UKernel) Supported() bool {
	if k.Width == 0 {
		return true
	}
	if hwy.CurrentLevel() == hwy.DispatchScalar {
		return false
	}
	return hwy.CurrentWidth() >= k.Width && hwy.CurrentFeatures().Has(k.Requires)
}

func (k UKernel) String() string {
	return fmt.Sprintf("%s (MR=%d NR=%d KR=%d)", k.Name, k.MR, k.NR, k.KR)
}

func scalarKernel(name string, mr int, l Layout) UKernel {
	return UKernel{
		Name: name, MR: mr, NR: l.NR, KR: l.KR,
		GEMM: func(m, nc, kc int, a []int8, aStride int, w []byte, c []float32, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
			gemmScalar[float32, f32Store](mr, l, m, nc, kc, a, aStride, w, c, cmStride, cnStride, params, qp)
		},
		GEMMF16: func(m, nc, kc int, a []int8, aStride int, w []byte, c []float16.Float16, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
			gemmScalar[float16.Float16, f16Store](mr, l, m, nc, kc, a, aStride, w, c, cmStride, cnStride, params.f16(), qp)
		},
	}
}

func laneKernel(name string, d hwy.Tag, mr, nr int) UKernel {
	return UKernel{
		Name: name, MR: mr, NR: nr, KR: 1, Width: d.Width(),
		GEMM: func(m, nc, kc int, a []int8, aStride int, w []byte, c []float32, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
			gemmLane[float32, f32Store](d, mr, nr, m, nc, kc, a, aStride, w, c, cmStride, cnStride, params, qp)
		},
		GEMMF16: func(m, nc, kc int, a []int8, aStride int, w []byte, c []float16.Float16, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
			gemmLane[float16.Float16, f16Store](d, mr, nr, m, nc, kc, a, aStride, w, c, cmStride, cnStride, params.f16(), qp)
		},
	}
}

func dotKernel(name string, d hwy.Tag, mr, nr int) UKernel {
	return UKernel{
		Name: name, MR: mr, NR: nr, KR: dotKR, Width: d.Width(), Requires: hwy.FeatureDotProd,
		GEMM: func(m, nc, kc int, a []int8, aStride int, w []byte, c []float32, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
			gemmDot[float32, f32Store](d, mr, nr, m, nc, kc, a, aStride, w, c, cmStride, cnStride, params, qp)
		},
		GEMMF16: func(m, nc, kc int, a []int8, aStride int, w []byte, c []float16.Float16, cmStride, cnStride int, params MinMax, qp []quantization.Params) {
			gemmDot[float16.Float16, f16Store](d, mr, nr, m, nc, kc, a, aStride, w, c, cmStride, cnStride, params.f16(), qp)
		},
	}
}

// ScalarName is the name of the reference kernel, always supported.
const ScalarName = "scalar-4x4"

// kernels lists every kernel from most to least preferred.
var kernels = []UKernel{
	dotKernel("dot512-4x16c4", hwy.FixedTag512{}, 4, 16),
	laneKernel("vec512-4x32", hwy.FixedTag512{}, 4, 32),
	dotKernel("dot128-4x8c4", hwy.FixedTag128{}, 4, 8),
	laneKernel("vec256-4x16", hwy.FixedTag256{}, 4, 16),
	laneKernel("vec128-3x16", hwy.FixedTag128{}, 3, 16),
	scalarKernel(ScalarName, 4, Layout{NR: 4, KR: 1}),
}

var (
	selectOnce    sync.Once
	defaultKernel UKernel
)

// Kernels returns every registered kernel, most preferred first.
func Kernels() []UKernel {
	return append([]UKernel(nil), kernels...)
}

// Supported returns the kernels tuned for the current CPU, most preferred
// first. The scalar kernel is always included.
func Supported() []UKernel {
	return lo.Filter(kernels, func(k UKernel, _ int) bool {
		return k.Supported()
	})
}

// Lookup returns the kernel with the given name.
func Lookup(name string) (UKernel, bool) {
	return lo.Find(kernels, func(k UKernel) bool {
		return k.Name == name
	})
}

// Names returns the names of all registered kernels.
func Names() []string {
	return lo.Map(kernels, func(k UKernel, _ int) string {
		return k.Name
	})
}

// Default returns the kernel selected for the current CPU.
// With HWY_NO_SIMD set this is the scalar kernel.
func Default() UKernel {
	selectOnce.Do(func() {
		defaultKernel = Supported()[0]
		klog.V(1).Infof("qgemm: selected kernel %s on %s (features %s)", defaultKernel, hwy.CurrentName(), hwy.CurrentFeatures())
	})
	return defaultKernel
}
