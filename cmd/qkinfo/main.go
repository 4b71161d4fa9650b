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

// Command qkinfo reports the SIMD dispatch level and quantized kernels
// selected on this machine, and cross-checks every kernel against the scalar
// reference.
//
// Usage:
//
//	qkinfo info
//	qkinfo check -m 37 -n 100 -k 129
//	qkinfo inspect weights.qkpw
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"
	"k8s.io/klog/v2"

	"github.com/ajroetker/go-qkernels/hwy"
	"github.com/ajroetker/go-qkernels/hwy/contrib/qgemm"
	"github.com/ajroetker/go-qkernels/hwy/contrib/quantization"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	root := &cobra.Command{
		Use:           "qkinfo",
		Short:         "Inspect quantized kernel dispatch on this machine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.AddCommand(infoCmd(), checkCmd(), inspectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qkinfo:", err)
		os.Exit(1)
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print CPU features, dispatch level and the kernel table",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "GOOS: %s\n", runtime.GOOS)
			fmt.Fprintf(out, "GOARCH: %s\n", runtime.GOARCH)
			fmt.Fprintf(out, "NumCPU: %d\n", runtime.NumCPU())
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Highway dispatch level: %s\n", hwy.CurrentLevel())
			fmt.Fprintf(out, "Highway dispatch width: %d bytes\n", hwy.CurrentWidth())
			fmt.Fprintf(out, "Highway features: %s\n", hwy.CurrentFeatures())
			fmt.Fprintf(out, "HWY_NO_SIMD: %v\n", hwy.NoSimdEnv())
			fmt.Fprintln(out)

			switch runtime.GOARCH {
			case "arm64":
				fmt.Fprintln(out, "=== golang.org/x/sys/cpu.ARM64 ===")
				fmt.Fprintf(out, "  HasASIMD:   %v (NEON baseline)\n", cpu.ARM64.HasASIMD)
				fmt.Fprintf(out, "  HasASIMDDP: %v (SDOT/UDOT)\n", cpu.ARM64.HasASIMDDP)
				fmt.Fprintf(out, "  HasSVE:     %v\n", cpu.ARM64.HasSVE)
			case "amd64":
				fmt.Fprintln(out, "=== golang.org/x/sys/cpu.X86 ===")
				fmt.Fprintf(out, "  HasAVX2:        %v\n", cpu.X86.HasAVX2)
				fmt.Fprintf(out, "  HasFMA:         %v\n", cpu.X86.HasFMA)
				fmt.Fprintf(out, "  HasAVX512F:     %v\n", cpu.X86.HasAVX512F)
				fmt.Fprintf(out, "  HasAVX512BW:    %v\n", cpu.X86.HasAVX512BW)
				fmt.Fprintf(out, "  HasAVX512VL:    %v\n", cpu.X86.HasAVX512VL)
				fmt.Fprintf(out, "  HasAVX512VNNI:  %v\n", cpu.X86.HasAVX512VNNI)
			}
			fmt.Fprintln(out)

			def := qgemm.Default()
			fmt.Fprintln(out, "=== qgemm kernels ===")
			for _, kern := range qgemm.Kernels() {
				mark := " "
				if kern.Name == def.Name {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-16s MR=%d NR=%-2d KR=%d width=%-2d requires=%-7s supported=%v\n",
					mark, kern.Name, kern.MR, kern.NR, kern.KR, kern.Width, kern.Requires, kern.Supported())
			}
		},
	}
}

func checkCmd() *cobra.Command {
	var m, n, k int
	var seed int64
	var all bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run kernels on random data and compare with the scalar reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if m <= 0 || n <= 0 || k <= 0 {
				return fmt.Errorf("invalid shape m=%d n=%d k=%d", m, n, k)
			}
			kernels := qgemm.Supported()
			if all {
				kernels = qgemm.Kernels()
			}
			ref, _ := qgemm.Lookup(qgemm.ScalarName)

			rng := rand.New(rand.NewSource(seed))
			a := make([]int8, m*k)
			for i := range a {
				a[i] = int8(rng.Intn(256) - 128)
			}
			w := make([]int8, n*k)
			for i := range w {
				w[i] = int8(rng.Intn(256) - 128)
			}
			scales := make([]float32, n)
			bias := make([]float32, n)
			for j := range n {
				scales[j] = rng.Float32()*0.01 + 0.001
				bias[j] = rng.Float32()*2 - 1
			}
			qp := make([]quantization.Params, m)
			for i := range qp {
				qp[i] = quantization.Params{ZeroPoint: int32(rng.Intn(256) - 128), Scale: rng.Float32() * 0.05}
			}

			want := make([]float32, m*n)
			qgemm.Compute(ref, m, n, k, a, k, qgemm.PackWeights(ref.Layout(), n, k, w, scales, bias), want, n, qgemm.Unbounded(), qp)

			failed := 0
			out := cmd.OutOrStdout()
			for _, kern := range kernels {
				got := make([]float32, m*n)
				packed := qgemm.PackWeights(kern.Layout(), n, k, w, scales, bias)
				qgemm.Compute(kern, m, n, k, a, k, packed, got, n, qgemm.Unbounded(), qp)
				mismatches := 0
				for i := range want {
					if got[i] != want[i] {
						mismatches++
					}
				}
				status := "ok"
				if mismatches > 0 {
					status = fmt.Sprintf("FAIL (%d mismatches)", mismatches)
					failed++
				}
				fmt.Fprintf(out, "%-16s %s\n", kern.Name, status)
			}
			if failed > 0 {
				return fmt.Errorf("%d kernel(s) differ from %s", failed, qgemm.ScalarName)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&m, "m", "m", 37, "activation rows")
	cmd.Flags().IntVarP(&n, "n", "n", 100, "output columns")
	cmd.Flags().IntVarP(&k, "k", "k", 129, "reduction length")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().BoolVar(&all, "all", false, "check every registered kernel, not only the supported ones")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Validate a packed weight file and print its shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := qgemm.OpenPackedWeights(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: N=%d K=%d layout=%s groups=%d bytes=%d\n",
				args[0], p.N, p.K, p.Layout, p.Groups(p.N), len(p.Data))
			matching := 0
			for _, kern := range qgemm.Kernels() {
				if kern.Layout() == p.Layout {
					fmt.Fprintf(cmd.OutOrStdout(), "  readable by %s\n", kern.Name)
					matching++
				}
			}
			if matching == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  no registered kernel reads this layout")
			}
			return nil
		},
	}
}
