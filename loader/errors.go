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
	"errors"
	"fmt"
)

var (
	// ErrSlotResolution is returned when the requested slot has no flash area.
	ErrSlotResolution = errors.New("slot resolution failed")
	// ErrMapping is returned when flash contents could not be mapped or
	// released.
	ErrMapping = errors.New("flash mapping failed")
	// ErrTruncatedHeader is returned when fewer than HeaderSize bytes are
	// available to decode a load header from.
	ErrTruncatedHeader = errors.New("truncated load header")
	// ErrCopy is returned when a segment could not be written to its
	// destination.
	ErrCopy = errors.New("segment copy failed")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("load header rejected")
	// ErrUnreachableReturn is the halt reason when control comes back from
	// the application entry point.
	ErrUnreachableReturn = errors.New("application entry point returned")
)

// Check identifies one of the load header checks.
type Check int

const (
	// HeaderMagicMismatch means the header magic was wrong.
	HeaderMagicMismatch Check = iota + 1
	// InstrRegionInvalid means the instruction segment destination is not
	// entirely in instruction RAM.
	InstrRegionInvalid
	// DataRegionInvalid means the data segment destination is not entirely
	// in data RAM.
	DataRegionInvalid
	// EntryPointInvalid means the entry point is not in instruction RAM.
	EntryPointInvalid
	// IncompleteValidation means the checks did not all run.
	IncompleteValidation
)

func (c Check) String() string {
	switch c {
	case HeaderMagicMismatch:
		return "header magic"
	case InstrRegionInvalid:
		return "IRAM region"
	case DataRegionInvalid:
		return "DRAM region"
	case EntryPointInvalid:
		return "entry point"
	case IncompleteValidation:
		return "validation count"
	default:
		return fmt.Sprintf("Check(%d)", int(c))
	}
}

// ValidationError reports the first load header check which failed.
type ValidationError struct {
	Check  Check
	Header LoadHeader
}

func (e *ValidationError) Error() string {
	h := e.Header
	switch e.Check {
	case HeaderMagicMismatch:
		return fmt.Sprintf("load header magic verification failed: %s %#x, want %#x", e.Check, h.Magic, HeaderMagic)
	case InstrRegionInvalid:
		return fmt.Sprintf("%s in load header is not valid: dest %#x size %#x", e.Check, h.IRAMDestAddr, h.IRAMSize)
	case DataRegionInvalid:
		return fmt.Sprintf("%s in load header is not valid: dest %#x size %#x", e.Check, h.DRAMDestAddr, h.DRAMSize)
	case EntryPointInvalid:
		return fmt.Sprintf("application %s (%#x) is not in IRAM", e.Check, h.EntryAddr)
	default:
		return fmt.Sprintf("load header failed %s check", e.Check)
	}
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
