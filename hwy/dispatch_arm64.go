//go:build arm64

package hwy

import "golang.org/x/sys/cpu"

func init() {
	// Check for HWY_NO_SIMD environment variable first
	if NoSimdEnv() {
		setScalarMode()
		return
	}

	// ARM64 (AArch64) always has NEON (ASIMD) available.
	// It's part of the ARMv8-A base architecture.
	if !cpu.ARM64.HasASIMD {
		// Fallback to scalar (should never happen on ARMv8+)
		setScalarMode()
		return
	}

	// NEON always has fused multiply-add (FMLA).
	features := FeatureFMA
	if cpu.ARM64.HasASIMDDP {
		features |= FeatureDotProd
	}
	setLevel(DispatchNEON, features)

	// TODO: report DispatchSVE once a kernel with a vector-length-agnostic
	// packing layout exists; SVE machines run the NEON kernels meanwhile.
}
