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

// Package flash provides read-only access to firmware slots held in flash
// storage.
//
// Slots are resolved to flash areas through a partition Map, and the bytes
// of an area are accessed through short-lived mapped Views obtained from a
// Mapper. Every View must be handed back to the Mapper which produced it.
package flash

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchSlot is returned when a slot selector has no flash area.
	ErrNoSuchSlot = errors.New("no such slot")
	// ErrNoSuchArea is returned when an area ID is not in the partition map.
	ErrNoSuchArea = errors.New("no such flash area")
)

// Area is a contiguous region of flash.
type Area struct {
	// ID identifies the area in the partition map.
	ID uint8
	// Name is a human readable label, e.g. "primary".
	Name string
	// Offset is the start of the area relative to the start of flash.
	Offset uint32
	// Size is the length of the area in bytes.
	Size uint32
}

func (a Area) String() string {
	return fmt.Sprintf("%s(%d)@%#x+%#x", a.Name, a.ID, a.Offset, a.Size)
}

// SlotResolver maps image slot selectors to flash areas.
type SlotResolver interface {
	ResolveSlot(slot int) (Area, error)
}

// Map is a flash partition table.
type Map struct {
	// Areas lists every flash area.
	Areas []Area
	// Slots holds, for each image slot selector, the ID of the area storing
	// that slot. Slot 0 is the primary slot, slot 1 the secondary.
	Slots []uint8
}

var _ SlotResolver = Map{}

// Open returns the area with the given ID.
func (m Map) Open(id uint8) (Area, error) {
	for _, a := range m.Areas {
		if a.ID == id {
			return a, nil
		}
	}
	return Area{}, fmt.Errorf("area %d: %w", id, ErrNoSuchArea)
}

// AreaIDFromImageSlot returns the ID of the area holding the given slot.
func (m Map) AreaIDFromImageSlot(slot int) (uint8, error) {
	if slot < 0 || slot >= len(m.Slots) {
		return 0, fmt.Errorf("slot %d: %w", slot, ErrNoSuchSlot)
	}
	return m.Slots[slot], nil
}

// ResolveSlot implements SlotResolver.
func (m Map) ResolveSlot(slot int) (Area, error) {
	id, err := m.AreaIDFromImageSlot(slot)
	if err != nil {
		return Area{}, err
	}
	return m.Open(id)
}

// Validate checks that areas do not overlap, fit within a device of
// deviceSize bytes, and that every slot refers to a known area.
func (m Map) Validate(deviceSize uint64) error {
	seen := make(map[uint8]bool)
	for i, a := range m.Areas {
		if seen[a.ID] {
			return fmt.Errorf("duplicate area ID %d", a.ID)
		}
		seen[a.ID] = true
		if a.Size == 0 {
			return fmt.Errorf("area %v is empty", a)
		}
		end := uint64(a.Offset) + uint64(a.Size)
		if deviceSize > 0 && end > deviceSize {
			return fmt.Errorf("area %v ends at %#x, past end of flash at %#x", a, end, deviceSize)
		}
		for _, b := range m.Areas[:i] {
			if uint64(a.Offset) < uint64(b.Offset)+uint64(b.Size) && uint64(b.Offset) < end {
				return fmt.Errorf("area %v overlaps %v", a, b)
			}
		}
	}
	for s, id := range m.Slots {
		if !seen[id] {
			return fmt.Errorf("slot %d refers to unknown area %d", s, id)
		}
	}
	return nil
}
