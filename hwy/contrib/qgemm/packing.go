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
	"encoding/binary"
	"fmt"
	"math"
)

// Layout describes how a kernel expects its weights packed: NR columns per
// group and KR consecutive k values per column in each micro-block.
type Layout struct {
	NR, KR int
}

// String returns the layout as "NRxKR".
func (l Layout) String() string {
	return fmt.Sprintf("%dx%d", l.NR, l.KR)
}

// KPadded returns k rounded up to a multiple of KR.
func (l Layout) KPadded(k int) int {
	return (k + l.KR - 1) / l.KR * l.KR
}

// Groups returns the number of column groups needed for n columns.
func (l Layout) Groups(n int) int {
	return (n + l.NR - 1) / l.NR
}

// GroupStride returns the size in bytes of one packed column group for
// reduction length k.
func (l Layout) GroupStride(k int) int {
	return l.headerSize() + l.KPadded(k)*l.NR
}

// headerSize is the size of the kernel-sum, scale and bias vectors that
// precede the weights of each group.
func (l Layout) headerSize() int {
	return 3 * 4 * l.NR
}

func (l Layout) validate() error {
	if l.NR <= 0 || l.NR > MaxNR {
		return fmt.Errorf("qgemm: NR=%d out of range [1, %d]", l.NR, MaxNR)
	}
	if l.KR <= 0 || kStep%l.KR != 0 {
		return fmt.Errorf("qgemm: KR=%d must divide %d", l.KR, kStep)
	}
	return nil
}

// PackedWeights is a weight matrix in the packed blob format read by the
// kernels.
//
// For every group of NR output columns Data holds, little-endian:
//
//	NR × int32    kernel sums, Σ_k w[col][k]
//	NR × float32  weight scales
//	NR × float32  biases
//	KPadded(K)/KR micro-blocks, each NR columns × KR consecutive int8 k values
//
// Columns beyond N and k positions beyond K are zero.
type PackedWeights struct {
	Layout
	N, K int
	Data []byte
}

// PackWeights packs an n×k int8 weight matrix (row-major, one row per output
// column) with per-column scales and biases.
// bias may be nil, meaning zero bias.
func PackWeights(layout Layout, n, k int, weights []int8, scales, bias []float32) *PackedWeights {
	if err := layout.validate(); err != nil {
		panic(err.Error())
	}
	if n <= 0 || k <= 0 {
		panic(fmt.Sprintf("qgemm: invalid weight shape %dx%d", n, k))
	}
	if len(weights) < n*k {
		panic("qgemm: weights slice too short")
	}
	if len(scales) < n {
		panic("qgemm: scales slice too short")
	}
	if bias != nil && len(bias) < n {
		panic("qgemm: bias slice too short")
	}

	nr, kr := layout.NR, layout.KR
	stride := layout.GroupStride(k)
	p := &PackedWeights{
		Layout: layout,
		N:      n,
		K:      k,
		Data:   make([]byte, layout.Groups(n)*stride),
	}

	for g := range layout.Groups(n) {
		group := p.Data[g*stride : (g+1)*stride]
		for j := range nr {
			col := g*nr + j
			if col >= n {
				break
			}
			row := weights[col*k : (col+1)*k]
			var ksum int32
			for _, v := range row {
				ksum += int32(v)
			}
			var b float32
			if bias != nil {
				b = bias[col]
			}
			binary.LittleEndian.PutUint32(group[4*j:], uint32(ksum))
			binary.LittleEndian.PutUint32(group[4*(nr+j):], math.Float32bits(scales[col]))
			binary.LittleEndian.PutUint32(group[4*(2*nr+j):], math.Float32bits(b))

			body := group[layout.headerSize():]
			for kk, v := range row {
				block, off := kk/kr, kk%kr
				body[block*nr*kr+j*kr+off] = byte(v)
			}
		}
	}
	return p
}

// GroupStride returns the size in bytes of one packed column group.
func (p *PackedWeights) GroupStride() int {
	return p.Layout.GroupStride(p.K)
}

// Group returns the bytes of column group g.
func (p *PackedWeights) Group(g int) []byte {
	stride := p.GroupStride()
	return p.Data[g*stride : (g+1)*stride]
}

// From returns the blob starting at the group holding column col, which must
// be a multiple of NR.
func (p *PackedWeights) From(col int) []byte {
	if col%p.NR != 0 {
		panic(fmt.Sprintf("qgemm: column %d is not a multiple of NR=%d", col, p.NR))
	}
	return p.Data[col/p.NR*p.GroupStride():]
}

// KernelSum returns the stored kernel sum of column col.
func (p *PackedWeights) KernelSum(col int) int32 {
	return groupKernelSum(p.Group(col/p.NR), col%p.NR)
}

// Scale returns the stored weight scale of column col.
func (p *PackedWeights) Scale(col int) float32 {
	return groupScale(p.Group(col/p.NR), p.NR, col%p.NR)
}

// Bias returns the stored bias of column col.
func (p *PackedWeights) Bias(col int) float32 {
	return groupBias(p.Group(col/p.NR), p.NR, col%p.NR)
}

// Weight returns the stored weight of column col at reduction index k.
func (p *PackedWeights) Weight(col, k int) int8 {
	nr, kr := p.NR, p.KR
	body := p.Group(col / nr)[p.headerSize():]
	return int8(body[k/kr*nr*kr+col%nr*kr+k%kr])
}

func groupKernelSum(w []byte, j int) int32 {
	return int32(binary.LittleEndian.Uint32(w[4*j:]))
}

func groupScale(w []byte, nr, j int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(w[4*(nr+j):]))
}

func groupBias(w []byte, nr, j int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(w[4*(2*nr+j):]))
}
