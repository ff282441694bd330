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

// mkimage is a util to build images which the second stage loader can start.
//
// The image holds a load header followed by the instruction and data segments.
// It can be written to a file, or straight into a slot of a flash image for
// the emulator.
//
// Usage:
//   go run ./cmd/mkimage --logtostderr --iram_bin=app.wasm --iram_addr=0x40080000 --entry=0x40080000 --target=esp32 --output=/tmp/app.img
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/transparency-dev/espboot/cmd/mkimage/impl"
)

var (
	iramBin      = flag.String("iram_bin", "", "File path to read the IRAM segment from")
	iramAddr     = flag.Uint64("iram_addr", 0, "Load address of the IRAM segment")
	dramBin      = flag.String("dram_bin", "", "File path to read the DRAM segment from")
	dramAddr     = flag.Uint64("dram_addr", 0, "Load address of the DRAM segment")
	entry        = flag.Uint64("entry", 0, "Application entry point")
	headerOffset = flag.Uint64("header_offset", 0x20, "Offset of the load header within the image")
	output       = flag.String("output", "", "File path to write the image to")
	target       = flag.String("target", "", "If set, check the image against this target's memory layout")
	boardConfig  = flag.String("board_config", "", "Board description YAML file")
	flashImage   = flag.String("flash_image", "", "If set, write the image into --slot of this flash image")
	slot         = flag.Int("slot", 0, "Slot to write the image into")
	force        = flag.Bool("force", false, "Write images the loader would reject")
)

func main() {
	flag.Parse()

	if err := impl.Main(impl.MkImageOpts{
		IRAMBin:      *iramBin,
		IRAMAddr:     *iramAddr,
		DRAMBin:      *dramBin,
		DRAMAddr:     *dramAddr,
		Entry:        *entry,
		HeaderOffset: *headerOffset,
		Output:       *output,
		Target:       *target,
		BoardConfig:  *boardConfig,
		FlashImage:   *flashImage,
		Slot:         *slot,
		Force:        *force,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
