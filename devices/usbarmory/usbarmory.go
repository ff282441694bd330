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

// Package usbarmory runs the second stage loader on the USB armory Mk II.
//
// The microSD or eMMC card stands in for flash, and the lower 256MiB of DDR
// is split between the instruction and data regions of the loaded image.
package usbarmory

import (
	"errors"
	"fmt"

	"github.com/transparency-dev/espboot/loader"
)

// Blink codes shown by the LED halter, one per failure kind.
const (
	CodeSlot = iota + 1
	CodeMapping
	CodeValidation
	CodeCopy
	CodeReturned
	CodeUnknown
)

// HaltCode returns the number of blinks which signal reason.
func HaltCode(reason error) int {
	switch {
	case errors.Is(reason, loader.ErrSlotResolution):
		return CodeSlot
	case errors.Is(reason, loader.ErrValidation):
		return CodeValidation
	case errors.Is(reason, loader.ErrCopy):
		return CodeCopy
	case errors.Is(reason, loader.ErrMapping), errors.Is(reason, loader.ErrTruncatedHeader):
		return CodeMapping
	case errors.Is(reason, loader.ErrUnreachableReturn):
		return CodeReturned
	default:
		return CodeUnknown
	}
}

// uartBases maps i.MX6UL UART numbers to their register blocks.
var uartBases = map[int]uint32{
	1: 0x02020000,
	2: 0x021e8000,
	3: 0x021ec000,
	4: 0x021f0000,
	5: 0x021f4000,
	6: 0x021fc000,
	7: 0x02018000,
	8: 0x02288000,
}

// UARTBase returns the register base address of the numbered UART.
func UARTBase(port int) (uint32, error) {
	b, ok := uartBases[port]
	if !ok {
		return 0, fmt.Errorf("no UART%d on the i.MX6UL, want 1 to %d", port, len(uartBases))
	}
	return b, nil
}
