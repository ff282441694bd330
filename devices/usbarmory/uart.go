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
)

const (
	uartUTS    = 0xb4
	utsTXEMPTY = 6
)

// UART reports the transmit state of a console UART.
type UART struct {
	base uint32
}

// NewUART returns the numbered UART. The debug accessory console is UART2.
func NewUART(port int) (*UART, error) {
	base, err := UARTBase(port)
	if err != nil {
		return nil, err
	}
	return &UART{base: base}, nil
}

// TxIdle implements console.Port.
func (u *UART) TxIdle() bool {
	uts := (*uint32)(unsafe.Pointer(uintptr(u.base + uartUTS)))
	return (*uts>>utsTXEMPTY)&1 == 1
}
