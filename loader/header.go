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

package loader

import (
	"encoding/binary"
	"fmt"

	"github.com/transparency-dev/espboot/flash"
	"github.com/transparency-dev/espboot/memory"
)

const (
	// HeaderMagic identifies a load header built for this loader.
	HeaderMagic uint32 = 0xace637d3
	// HeaderSize is the encoded size of a LoadHeader.
	HeaderSize = 32
)

// LoadHeader describes where the segments of an image are to be copied to
// and where execution starts.
//
// It is read from the image and must be treated as untrusted until it has
// been accepted by Validate.
type LoadHeader struct {
	Magic     uint32
	EntryAddr uint32

	IRAMDestAddr    uint32
	IRAMFlashOffset uint32
	IRAMSize        uint32

	DRAMDestAddr    uint32
	DRAMFlashOffset uint32
	DRAMSize        uint32
}

// DecodeHeader decodes the little-endian encoding of a LoadHeader.
// Only the first HeaderSize bytes of b are used.
func DecodeHeader(b []byte) (LoadHeader, error) {
	if len(b) < HeaderSize {
		return LoadHeader{}, fmt.Errorf("%w: got %d bytes, want %d", ErrTruncatedHeader, len(b), HeaderSize)
	}
	le := binary.LittleEndian
	return LoadHeader{
		Magic:           le.Uint32(b[0:]),
		EntryAddr:       le.Uint32(b[4:]),
		IRAMDestAddr:    le.Uint32(b[8:]),
		IRAMFlashOffset: le.Uint32(b[12:]),
		IRAMSize:        le.Uint32(b[16:]),
		DRAMDestAddr:    le.Uint32(b[20:]),
		DRAMFlashOffset: le.Uint32(b[24:]),
		DRAMSize:        le.Uint32(b[28:]),
	}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h LoadHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, HeaderSize)
	for _, v := range []uint32{
		h.Magic, h.EntryAddr,
		h.IRAMDestAddr, h.IRAMFlashOffset, h.IRAMSize,
		h.DRAMDestAddr, h.DRAMFlashOffset, h.DRAMSize,
	} {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b, nil
}

// Segment is a range of an image to be copied into RAM.
type Segment struct {
	// Name is "IRAM" or "DRAM".
	Name string
	// Class is the memory class Dest must lie in.
	Class       memory.Class
	FlashOffset uint32
	Size        uint32
	Dest        uint32
}

// Segments returns the segments described by h in the order they are
// loaded: data first, then instructions.
func (h LoadHeader) Segments() []Segment {
	return []Segment{
		{Name: memory.DataRAM.String(), Class: memory.DataRAM, FlashOffset: h.DRAMFlashOffset, Size: h.DRAMSize, Dest: h.DRAMDestAddr},
		{Name: memory.InstructionRAM.String(), Class: memory.InstructionRAM, FlashOffset: h.IRAMFlashOffset, Size: h.IRAMSize, Dest: h.IRAMDestAddr},
	}
}

// ReadHeader reads the load header at offset off within area a.
//
// The mapping used to read the header is released before ReadHeader
// returns, whether or not the header could be decoded.
func ReadHeader(m flash.Mapper, a flash.Area, off uint32) (LoadHeader, error) {
	v, err := m.Map(a, off, HeaderSize)
	if err != nil {
		return LoadHeader{}, fmt.Errorf("%w: load header at %#x: %w", ErrMapping, off, err)
	}
	h, err := DecodeHeader(v.Bytes())
	if uerr := m.Unmap(v); uerr != nil {
		return LoadHeader{}, fmt.Errorf("%w: releasing load header: %w", ErrMapping, uerr)
	}
	return h, err
}
