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

package memory

import (
	"fmt"
	"sort"
)

func region(start, end uint32) Region {
	return Region{Start: start, Size: end - start}
}

var (
	// ESP32 is the internal SRAM map of the ESP32.
	ESP32 = Layout{
		Name: "esp32",
		Regions: map[Class][]Region{
			InstructionRAM: {region(0x40080000, 0x400A0000)},
			DataRAM:        {region(0x3FFAE000, 0x40000000)},
		},
	}

	// ESP32S2 is the internal SRAM map of the ESP32-S2.
	ESP32S2 = Layout{
		Name: "esp32s2",
		Regions: map[Class][]Region{
			InstructionRAM: {region(0x40020000, 0x40070000)},
			DataRAM:        {region(0x3FFB0000, 0x40000000)},
		},
	}

	// ESP32C3 is the internal SRAM map of the ESP32-C3.
	ESP32C3 = Layout{
		Name: "esp32c3",
		Regions: map[Class][]Region{
			InstructionRAM: {region(0x4037C000, 0x403E0000)},
			DataRAM:        {region(0x3FC80000, 0x3FCE0000)},
		},
	}

	// USBArmoryMkII splits the first 256MiB of DDR of the USB armory Mk II
	// between instructions and data. The loader itself runs from the
	// following 256MiB.
	USBArmoryMkII = Layout{
		Name: "usbarmory-mk2",
		Regions: map[Class][]Region{
			InstructionRAM: {region(0x80000000, 0x88000000)},
			DataRAM:        {region(0x88000000, 0x90000000)},
		},
	}
)

var targets = map[string]Layout{
	ESP32.Name:         ESP32,
	ESP32S2.Name:       ESP32S2,
	ESP32C3.Name:       ESP32C3,
	USBArmoryMkII.Name: USBArmoryMkII,
}

// LayoutForTarget returns the built-in layout for the named target.
func LayoutForTarget(name string) (Layout, error) {
	l, ok := targets[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown target %q, must be one of %v", name, Targets())
	}
	return l, nil
}

// Targets returns the names of the built-in layouts.
func Targets() []string {
	r := make([]string, 0, len(targets))
	for n := range targets {
		r = append(r, n)
	}
	sort.Strings(r)
	return r
}
