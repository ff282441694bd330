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
	"fmt"

	"github.com/transparency-dev/espboot/flash"
	"github.com/usbarmory/tamago/soc/nxp/usdhc"
)

// Card is a flash backend reading from an SD or eMMC card.
//
// Each mapping reads a fresh copy of the requested bytes.
type Card struct {
	Card *usdhc.USDHC
}

var _ flash.Backend = &Card{}

// Size implements flash.Backend.
func (c *Card) Size() uint64 {
	info := c.Card.Info()
	return uint64(info.Blocks) * uint64(info.BlockSize)
}

// Map implements flash.Backend.
func (c *Card) Map(off uint64, size uint32) ([]byte, func() error, error) {
	buf, err := c.Card.Read(int64(off), int64(size))
	if err != nil {
		return nil, nil, fmt.Errorf("card read at %#x: %w", off, err)
	}
	if len(buf) != int(size) {
		return nil, nil, fmt.Errorf("card read at %#x returned %d bytes, want %d", off, len(buf), size)
	}
	return buf, func() error { return nil }, nil
}
