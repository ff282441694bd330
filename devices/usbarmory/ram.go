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

//go:build tamago && arm

package usbarmory

import (
	"unsafe"

	"github.com/transparency-dev/espboot/memory"
)

// RAM writes segments straight into physical memory.
type RAM struct {
	// Layout bounds the writable memory.
	Layout memory.Layout
}

var _ memory.Writer = &RAM{}

// WriteAt implements memory.Writer.
func (r *RAM) WriteAt(dest uint32, b []byte) error {
	n := uint32(len(b))
	if !r.Layout.RangeInClass(dest, n, memory.InstructionRAM) && !r.Layout.RangeInClass(dest, n, memory.DataRAM) {
		return memory.ErrUnbacked
	}
	if n == 0 {
		return nil
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dest))), n)
	copy(mem, b)
	return nil
}
