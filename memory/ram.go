// Copyright 2024 Google LLC. All Rights Reserved.
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

package memory

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnbacked is returned for accesses outside of any region of a RAM.
var ErrUnbacked = errors.New("address range not backed by RAM")

// Writer stores bytes at absolute addresses.
type Writer interface {
	WriteAt(dest uint32, b []byte) error
}

const pageSize = 4096

type extent struct {
	start uint32
	size  uint32
}

// RAM simulates the memory described by a Layout on a host.
//
// Storage is allocated in pages as it is written, so large layouts cost
// nothing until used.
type RAM struct {
	layout  Layout
	pages   map[uint32][]byte
	extents []extent
}

var _ Writer = &RAM{}

// NewRAM returns an empty RAM covering every region of l.
func NewRAM(l Layout) *RAM {
	return &RAM{
		layout: l,
		pages:  make(map[uint32][]byte),
	}
}

func (r *RAM) backed(addr, size uint32) bool {
	for c := range r.layout.Regions {
		if r.layout.RangeInClass(addr, size, c) {
			return true
		}
	}
	return false
}

// WriteAt implements Writer.
func (r *RAM) WriteAt(dest uint32, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	size := uint32(len(b))
	if uint64(len(b)) != uint64(size) || !r.backed(dest, size) {
		return fmt.Errorf("write of %d bytes at %#x: %w", len(b), dest, ErrUnbacked)
	}
	for off := uint32(0); off < size; {
		addr := dest + off
		base := addr &^ (pageSize - 1)
		p, ok := r.pages[base]
		if !ok {
			p = make([]byte, pageSize)
			r.pages[base] = p
		}
		off += uint32(copy(p[addr-base:], b[off:]))
	}
	r.extents = append(r.extents, extent{start: dest, size: size})
	return nil
}

// Read returns a copy of size bytes at addr. Bytes never written read as
// zero.
func (r *RAM) Read(addr, size uint32) ([]byte, error) {
	if size != 0 && !r.backed(addr, size) {
		return nil, fmt.Errorf("read of %d bytes at %#x: %w", size, addr, ErrUnbacked)
	}
	out := make([]byte, size)
	for off := uint32(0); off < size; {
		a := addr + off
		base := a &^ (pageSize - 1)
		n := pageSize - (a - base)
		if rem := size - off; n > rem {
			n = rem
		}
		if p, ok := r.pages[base]; ok {
			copy(out[off:off+n], p[a-base:])
		}
		off += n
	}
	return out, nil
}

// Segment returns the bytes from addr to the end of the most recent write
// which covered addr.
func (r *RAM) Segment(addr uint32) ([]byte, error) {
	for i := len(r.extents) - 1; i >= 0; i-- {
		e := r.extents[i]
		if addr >= e.start && addr-e.start < e.size {
			return r.Read(addr, e.size-(addr-e.start))
		}
	}
	return nil, fmt.Errorf("nothing loaded at %#x", addr)
}

// Written returns the start addresses of all writes, lowest first.
func (r *RAM) Written() []uint32 {
	s := make([]uint32, 0, len(r.extents))
	for _, e := range r.extents {
		s = append(s, e.start)
	}
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}
