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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/mmap"
	"k8s.io/klog/v2"
)

// Packed weight file format, little-endian:
//
//	magic      [4]byte  "QKPW"
//	version    uint32   1
//	NR, KR     uint32
//	N, K       uint32
//	payloadLen uint64   bytes of packed data that follow
//	checksum   uint64   xxhash64 of the payload
//	payload    [payloadLen]byte
const packedVersion = 1

var packedMagic = [4]byte{'Q', 'K', 'P', 'W'}

// Errors returned when reading packed weights.
var (
	ErrBadMagic           = errors.New("qgemm: not a packed weight file")
	ErrUnsupportedVersion = errors.New("qgemm: unsupported packed weight version")
	ErrChecksum           = errors.New("qgemm: packed weight checksum mismatch")
	ErrTruncated          = errors.New("qgemm: packed weight file truncated")
)

type fileHeader struct {
	Magic      [4]byte
	Version    uint32
	NR, KR     uint32
	N, K       uint32
	PayloadLen uint64
	Checksum   uint64
}

// WriteTo writes the packed weights with a versioned header and checksum.
// It implements io.WriterTo.
func (p *PackedWeights) WriteTo(w io.Writer) (int64, error) {
	h := fileHeader{
		Magic:      packedMagic,
		Version:    packedVersion,
		NR:         uint32(p.NR),
		KR:         uint32(p.KR),
		N:          uint32(p.N),
		K:          uint32(p.K),
		PayloadLen: uint64(len(p.Data)),
		Checksum:   xxhash.Sum64(p.Data),
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	n, err := w.Write(p.Data)
	total := int64(binary.Size(h)) + int64(n)
	if err != nil {
		return total, fmt.Errorf("write payload: %w", err)
	}
	return total, nil
}

// ReadPackedWeights reads packed weights written by WriteTo.
//
// The payload length in the header is never trusted for allocation: if r
// reports how many bytes remain (Len() int, as bytes.Reader does) a longer
// payload is rejected up front, otherwise the payload buffer grows only as
// data arrives.
func ReadPackedWeights(r io.Reader) (*PackedWeights, error) {
	remaining := int64(-1)
	if lr, ok := r.(interface{ Len() int }); ok {
		remaining = int64(lr.Len()) - int64(fileHeaderSize)
	}
	return readPackedWeights(r, remaining)
}

// fileHeaderSize is the encoded size of fileHeader.
var fileHeaderSize = binary.Size(fileHeader{})

// payloadSize returns the packed size of an n x k matrix in layout l, and
// false if it does not fit in an int.
func payloadSize(l Layout, n, k uint64) (uint64, bool) {
	nr, kr := uint64(l.NR), uint64(l.KR)
	stride := uint64(l.headerSize()) + (k+kr-1)/kr*kr*nr
	groups := (n + nr - 1) / nr
	hi, lo := bits.Mul64(groups, stride)
	return lo, hi == 0 && lo <= math.MaxInt
}

// readPackedWeights reads one packed weight file from r. remaining is the
// number of payload bytes r can still produce, or -1 if unknown.
func readPackedWeights(r io.Reader, remaining int64) (*PackedWeights, error) {
	var h fileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read header: %w", ErrTruncated)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if h.Magic != packedMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, h.Magic[:])
	}
	if h.Version != packedVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	layout := Layout{NR: int(h.NR), KR: int(h.KR)}
	if err := layout.validate(); err != nil {
		return nil, err
	}
	if h.N == 0 || h.K == 0 || uint64(h.N) > math.MaxInt || uint64(h.K) > math.MaxInt {
		return nil, fmt.Errorf("qgemm: invalid weight shape %dx%d", h.N, h.K)
	}
	want, ok := payloadSize(layout, uint64(h.N), uint64(h.K))
	if !ok {
		return nil, fmt.Errorf("qgemm: weight shape %dx%d with layout %s overflows", h.N, h.K, layout)
	}
	if h.PayloadLen != want {
		return nil, fmt.Errorf("qgemm: payload length %d, want %d for %dx%d with layout %s", h.PayloadLen, want, h.N, h.K, layout)
	}
	if remaining >= 0 && h.PayloadLen > uint64(remaining) {
		return nil, fmt.Errorf("read payload: %d bytes, %d available: %w", h.PayloadLen, remaining, ErrTruncated)
	}

	var data []byte
	if remaining >= 0 {
		data = make([]byte, h.PayloadLen)
		if _, err := io.ReadFull(r, data); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("read payload: %w", ErrTruncated)
			}
			return nil, fmt.Errorf("read payload: %w", err)
		}
	} else {
		var buf bytes.Buffer
		n, err := io.CopyN(&buf, r, int64(h.PayloadLen))
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read payload: %d of %d bytes: %w", n, h.PayloadLen, ErrTruncated)
			}
			return nil, fmt.Errorf("read payload: %w", err)
		}
		data = buf.Bytes()
	}
	if sum := xxhash.Sum64(data); sum != h.Checksum {
		return nil, fmt.Errorf("%w: got %016x, want %016x", ErrChecksum, sum, h.Checksum)
	}

	return &PackedWeights{Layout: layout, N: int(h.N), K: int(h.K), Data: data}, nil
}

// OpenPackedWeights memory-maps a packed weight file and reads it. The file
// size bounds the payload read; the payload is copied onto the heap and the
// mapping is released before OpenPackedWeights returns.
func OpenPackedWeights(path string) (*PackedWeights, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap file: %w", err)
	}
	defer ra.Close()

	size := int64(ra.Len())
	p, err := readPackedWeights(io.NewSectionReader(ra, 0, size), max(size-int64(fileHeaderSize), 0))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	klog.V(2).Infof("qgemm: loaded packed weights %s: %dx%d layout %s, %d bytes", path, p.N, p.K, p.Layout, len(p.Data))
	return p, nil
}
