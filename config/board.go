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

// Package config describes the boards the loader can run on: their memory
// layout, flash partitioning and console.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/transparency-dev/espboot/console"
	"github.com/transparency-dev/espboot/flash"
	"github.com/transparency-dev/espboot/memory"
	"gopkg.in/yaml.v3"
)

// Board is the description of a device.
type Board struct {
	// Target names a built-in memory layout, see memory.Targets.
	Target string `yaml:"Target"`
	// Regions, if set, replaces the memory regions of the target.
	Regions []Region `yaml:"Regions"`
	// FlashSize is the capacity of the flash device in bytes. Optional.
	FlashSize uint64 `yaml:"FlashSize"`
	// Areas is the flash partition table.
	Areas []Area `yaml:"Areas"`
	// Slots lists the area ID holding each image slot, primary first.
	Slots []uint8 `yaml:"Slots"`
	// HeaderOffset is the default offset of the load header within a slot.
	HeaderOffset uint32 `yaml:"HeaderOffset"`
	// Console configures the diagnostic console.
	Console Console `yaml:"Console"`
}

// Region is a memory region of a given class.
type Region struct {
	// Class is "IRAM" or "DRAM".
	Class string `yaml:"Class"`
	Start uint32 `yaml:"Start"`
	Size  uint32 `yaml:"Size"`
}

// Area is a flash partition.
type Area struct {
	ID     uint8  `yaml:"ID"`
	Name   string `yaml:"Name"`
	Offset uint32 `yaml:"Offset"`
	Size   uint32 `yaml:"Size"`
}

// Console describes the diagnostic console.
type Console struct {
	// Port is the UART number.
	Port int `yaml:"Port"`
	// MaxSpins bounds the transmit drain wait before jumping.
	MaxSpins uint64 `yaml:"MaxSpins"`
}

// Load reads and validates the board description at path.
func Load(path string) (Board, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return Board{}, fmt.Errorf("failed to read board config: %w", err)
	}
	return Parse(bs)
}

// Parse decodes and validates a YAML board description. Unknown fields are
// rejected.
func Parse(bs []byte) (Board, error) {
	var b Board
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return Board{}, fmt.Errorf("failed to parse board config: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Board{}, fmt.Errorf("invalid board config: %w", err)
	}
	return b, nil
}

func parseClass(s string) (memory.Class, error) {
	for _, c := range []memory.Class{memory.InstructionRAM, memory.DataRAM} {
		if s == c.String() {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown memory class %q", s)
}

// Layout returns the memory layout of the board.
func (b Board) Layout() (memory.Layout, error) {
	if len(b.Regions) == 0 {
		return memory.LayoutForTarget(b.Target)
	}
	l := memory.Layout{Name: b.Target, Regions: make(map[memory.Class][]memory.Region)}
	for _, r := range b.Regions {
		c, err := parseClass(r.Class)
		if err != nil {
			return memory.Layout{}, err
		}
		if uint64(r.Start)+uint64(r.Size) > 1<<32 {
			return memory.Layout{}, fmt.Errorf("%s region at %#x wraps the address space", r.Class, r.Start)
		}
		l.Regions[c] = append(l.Regions[c], memory.Region{Start: r.Start, Size: r.Size})
	}
	return l, nil
}

// FlashMap returns the flash partition table of the board.
func (b Board) FlashMap() flash.Map {
	m := flash.Map{Slots: b.Slots}
	for _, a := range b.Areas {
		m.Areas = append(m.Areas, flash.Area{ID: a.ID, Name: a.Name, Offset: a.Offset, Size: a.Size})
	}
	return m
}

// DrainPolicy returns the console drain bound of the board.
func (b Board) DrainPolicy() console.DrainPolicy {
	return console.DrainPolicy{MaxSpins: b.Console.MaxSpins}
}

// Validate checks the board description is usable.
func (b Board) Validate() error {
	if b.Target == "" {
		return errors.New("missing field: Target")
	}
	l, err := b.Layout()
	if err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return err
	}
	if len(b.Areas) == 0 {
		return errors.New("missing field: Areas")
	}
	if len(b.Slots) == 0 {
		return errors.New("missing field: Slots")
	}
	if err := b.FlashMap().Validate(b.FlashSize); err != nil {
		return fmt.Errorf("bad flash partitioning: %w", err)
	}
	if b.HeaderOffset%4 != 0 {
		return fmt.Errorf("HeaderOffset %#x is not 4 byte aligned", b.HeaderOffset)
	}
	if b.Console.Port < 0 {
		return fmt.Errorf("invalid console port %d", b.Console.Port)
	}
	return nil
}
