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

// Package memory describes the classes of on-chip memory a loaded image may
// be placed in, and answers whether an address or address range belongs to
// one of them.
package memory

import (
	"fmt"
)

// Class is a category of addressable memory.
type Class int

const (
	// InstructionRAM is memory the CPU can fetch instructions from.
	InstructionRAM Class = iota + 1
	// DataRAM is general purpose RAM.
	DataRAM
)

func (c Class) String() string {
	switch c {
	case InstructionRAM:
		return "IRAM"
	case DataRAM:
		return "DRAM"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Classifier answers memory class membership questions for a target.
type Classifier interface {
	// InClass reports whether addr lies in memory of class c.
	InClass(addr uint32, c Class) bool
	// RangeInClass reports whether every address of [dest, dest+size) lies
	// in memory of class c.
	RangeInClass(dest, size uint32, c Class) bool
}

// Layout is the memory map of a target.
type Layout struct {
	// Name identifies the target, e.g. "esp32".
	Name string
	// Regions lists the address ranges belonging to each class.
	Regions map[Class][]Region
}

var _ Classifier = Layout{}

// InClass implements Classifier.
func (l Layout) InClass(addr uint32, c Class) bool {
	_, ok := l.regionOf(addr, c)
	return ok
}

func (l Layout) regionOf(addr uint32, c Class) (Region, bool) {
	for _, r := range l.Regions[c] {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

// RangeInClass implements Classifier.
//
// The range may span several regions of c as long as they leave no gap.
// Empty ranges are always inside. A range whose end wraps past the top of
// the 32-bit address space is never inside.
func (l Layout) RangeInClass(dest, size uint32, c Class) bool {
	if size == 0 {
		return true
	}
	last := uint64(dest) + uint64(size) - 1
	if last > 0xFFFFFFFF {
		return false
	}
	// Each step moves addr past the end of a distinct region.
	addr := uint64(dest)
	for i := 0; i <= len(l.Regions[c]); i++ {
		r, ok := l.regionOf(uint32(addr), c)
		if !ok {
			return false
		}
		if r.end() > last {
			return true
		}
		addr = r.end()
	}
	return false
}

// Validate checks that the layout describes both classes and that no
// instruction region overlaps a data region.
func (l Layout) Validate() error {
	iram, dram := l.Regions[InstructionRAM], l.Regions[DataRAM]
	if len(iram) == 0 {
		return fmt.Errorf("layout %q: no %s regions", l.Name, InstructionRAM)
	}
	if len(dram) == 0 {
		return fmt.Errorf("layout %q: no %s regions", l.Name, DataRAM)
	}
	for _, c := range []Class{InstructionRAM, DataRAM} {
		for _, r := range l.Regions[c] {
			if r.Size == 0 {
				return fmt.Errorf("layout %q: empty %s region at %#x", l.Name, c, r.Start)
			}
		}
	}
	for _, i := range iram {
		for _, d := range dram {
			if i.Overlaps(d) {
				return fmt.Errorf("layout %q: %s region %v overlaps %s region %v", l.Name, InstructionRAM, i, DataRAM, d)
			}
		}
	}
	return nil
}
