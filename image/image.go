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

// Package image assembles firmware images carrying a load header.
package image

import (
	"errors"
	"fmt"

	"github.com/transparency-dev/espboot/loader"
)

const segmentAlign = 4

// Payload is the content of one segment and where it should be loaded.
type Payload struct {
	Dest uint32
	Data []byte
}

// Spec describes an image to build.
type Spec struct {
	// HeaderOffset is where the load header goes within the image. Bytes
	// before it are left zero for whatever precedes the load header, e.g.
	// an MCUboot image header.
	HeaderOffset uint32
	// Entry is the application entry address.
	Entry uint32
	// IRAM and DRAM are the instruction and data segments.
	IRAM, DRAM Payload
}

func align(n uint64) uint64 {
	return (n + segmentAlign - 1) &^ (segmentAlign - 1)
}

// Build lays out the image described by s: the load header at
// s.HeaderOffset followed by the IRAM and then the DRAM segment, each
// starting on a 4 byte boundary. It returns the image and its load header.
func Build(s Spec) ([]byte, loader.LoadHeader, error) {
	if s.HeaderOffset%segmentAlign != 0 {
		return nil, loader.LoadHeader{}, fmt.Errorf("header offset %#x is not %d byte aligned", s.HeaderOffset, segmentAlign)
	}
	iramOff := align(uint64(s.HeaderOffset) + loader.HeaderSize)
	dramOff := align(iramOff + uint64(len(s.IRAM.Data)))
	end := dramOff + uint64(len(s.DRAM.Data))
	if end > 1<<32-1 {
		return nil, loader.LoadHeader{}, errors.New("image does not fit in 32 bit offsets")
	}

	h := loader.LoadHeader{
		Magic:           loader.HeaderMagic,
		EntryAddr:       s.Entry,
		IRAMDestAddr:    s.IRAM.Dest,
		IRAMFlashOffset: uint32(iramOff),
		IRAMSize:        uint32(len(s.IRAM.Data)),
		DRAMDestAddr:    s.DRAM.Dest,
		DRAMFlashOffset: uint32(dramOff),
		DRAMSize:        uint32(len(s.DRAM.Data)),
	}
	hb, err := h.MarshalBinary()
	if err != nil {
		return nil, loader.LoadHeader{}, fmt.Errorf("failed to encode load header: %w", err)
	}

	img := make([]byte, end)
	copy(img[s.HeaderOffset:], hb)
	copy(img[iramOff:], s.IRAM.Data)
	copy(img[dramOff:], s.DRAM.Data)
	return img, h, nil
}
