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

// Package loader is the second stage image loader.
//
// Given a firmware slot and the offset of a load header inside it, the
// loader reads and validates the header, copies the image's data and
// instruction segments from flash into RAM, and jumps to the image's entry
// point. Any failure along the way halts the device.
//
// The loader does not verify image signatures; that must have happened
// before it is invoked.
package loader

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/transparency-dev/espboot/console"
	"github.com/transparency-dev/espboot/fih"
	"github.com/transparency-dev/espboot/flash"
	"github.com/transparency-dev/espboot/memory"
)

// Loader holds the platform services used to boot an image.
type Loader struct {
	// Slots resolves slot selectors to flash areas.
	Slots flash.SlotResolver
	// Flash provides views onto flash contents.
	Flash flash.Mapper
	// Memory classifies destination and entry addresses.
	Memory memory.Classifier
	// RAM receives segment contents.
	RAM memory.Writer
	// Console is drained before jumping. May be nil.
	Console console.Port
	// Drain bounds the wait for Console.
	Drain console.DrainPolicy
	// Jumper starts the loaded image.
	Jumper Jumper
	// Halter stops the device on failure. Defaults to fih.SpinHalter.
	Halter fih.Halter
}

func (l *Loader) halter() fih.Halter {
	if l.Halter == nil {
		return fih.SpinHalter{}
	}
	return l.Halter
}

// Load reads and validates the load header at hdrOffset in the given slot,
// then copies the image's segments into RAM.
//
// Nothing is copied unless the header is accepted. Load returns errors
// rather than halting.
func (l *Loader) Load(slot int, hdrOffset uint32) (Accepted, error) {
	area, err := l.Slots.ResolveSlot(slot)
	if err != nil {
		return Accepted{}, fmt.Errorf("%w: slot %d: %w", ErrSlotResolution, slot, err)
	}

	h, err := ReadHeader(l.Flash, area, hdrOffset)
	if err != nil {
		return Accepted{}, err
	}

	acc, err := Validate(h, l.Memory)
	if err != nil {
		return Accepted{}, err
	}
	if v := acc.Verdict(); !v.IsTrue() {
		return Accepted{}, &ValidationError{Check: IncompleteValidation, Header: h}
	}

	for _, s := range acc.Header.Segments() {
		glog.Infof("%s segment: start=%#x, size=%#x, vaddr=%#x", s.Name, s.FlashOffset, s.Size, s.Dest)
		if err := LoadSegment(l.Flash, area, s.FlashOffset, s.Size, s.Dest, l.RAM); err != nil {
			return Accepted{}, fmt.Errorf("%s segment: %w", s.Name, err)
		}
	}
	return acc, nil
}

// Boot loads the image in the given slot and starts it. Boot never returns.
//
// Every failure is logged and then halts the device.
func (l *Loader) Boot(slot int, hdrOffset uint32) {
	acc, err := l.Load(slot, hdrOffset)
	if err != nil {
		glog.Errorf("%v. Aborting", err)
		fih.Panic(l.halter(), err)
	}
	if v := acc.Verdict(); !v.IsTrue() || !acc.Entry.Valid() {
		err := &ValidationError{Check: IncompleteValidation, Header: acc.Header}
		glog.Errorf("%v. Aborting", err)
		fih.Panic(l.halter(), err)
	}

	glog.Infof("start=%#x", acc.Entry.Addr())
	Transfer(l.Console, l.Drain, l.Jumper, acc.Entry, l.halter())
}
