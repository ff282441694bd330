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

// emulator boots a firmware image on an emulated device.
//
// The emulated device reads its flash contents from a file, lays it out
// according to a board description, and runs the second stage loader on the
// selected slot. Once the loader jumps to the application entry point, the
// WebAssembly module loaded there is run.
//
// Usage:
//   go run ./cmd/emulator --logtostderr --board_config=config/example_board_config.yaml --flash_image=/tmp/flash.bin --slot=0
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/transparency-dev/espboot/cmd/emulator/impl"
)

var (
	boardConfig  = flag.String("board_config", "", "Path to the board description YAML file")
	flashImage   = flag.String("flash_image", "", "Path to the flash contents of the device")
	slot         = flag.Int("slot", 0, "Image slot to boot")
	headerOffset = flag.Int64("header_offset", -1, "Offset of the load header within the slot, overriding the board config")
	dryRun       = flag.Bool("dry_run", false, "Validate and load the image without starting it")
)

func main() {
	flag.Parse()

	res, err := impl.Main(impl.EmulatorOpts{
		BoardConfig:  *boardConfig,
		FlashImage:   *flashImage,
		Slot:         *slot,
		HeaderOffset: *headerOffset,
		DryRun:       *dryRun,
	})
	if err != nil {
		glog.Exitf("emulator: %v", err)
	}
	glog.Infof("Application at %#x finished with %d", res.Entry, res.ExitCode)
}
