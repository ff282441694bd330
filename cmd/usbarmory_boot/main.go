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

// usbarmory_boot is the second stage loader for the USB armory Mk II.
//
// It reads the load header of the selected slot from the boot card, checks
// it against the board's memory layout, copies the image into RAM and
// starts it. Any failure halts the board with an LED blink code.
//
// Build with:
//   GOOS=tamago GOARM=7 GOARCH=arm go build -ldflags "-X main.Boot=uSD -X main.Slot=0 -T 0x90010000 -R 0x1000" ./cmd/usbarmory_boot
package main

import (
	_ "embed"
	"flag"
	"fmt"
	"runtime"
	"strconv"

	"github.com/golang/glog"
	"github.com/transparency-dev/espboot/config"
	"github.com/transparency-dev/espboot/devices/usbarmory"
	"github.com/transparency-dev/espboot/flash"
	"github.com/transparency-dev/espboot/loader"
	mk2 "github.com/usbarmory/tamago/board/usbarmory/mk2"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"
	"github.com/usbarmory/tamago/soc/nxp/usdhc"
)

// Set at link time.
var (
	Build    string
	Revision string
	Boot     string
	Slot     string
)

//go:embed board.yaml
var boardConfig []byte

func init() {
	mk2.LED("blue", false)
	mk2.LED("white", false)

	flag.Set("logtostderr", "true")

	if err := imx6ul.SetARMFreq(900); err != nil {
		panic(fmt.Sprintf("cannot change ARM frequency, %v\n", err))
	}
}

func main() {
	halter := usbarmory.LEDHalter{}

	fmt.Printf("espboot • %s/%s (%s) • %s %s • %s\n",
		runtime.GOOS, runtime.GOARCH, runtime.Version(),
		Revision, Build, imx6ul.Model())

	var card *usdhc.USDHC
	switch Boot {
	case "eMMC":
		card = mk2.MMC
	case "uSD":
		card = mk2.SD
	default:
		halter.Halt(fmt.Errorf("invalid boot media %q", Boot))
	}
	if err := card.Detect(); err != nil {
		halter.Halt(fmt.Errorf("boot media error: %w", err))
	}

	slot, err := strconv.Atoi(Slot)
	if err != nil {
		halter.Halt(fmt.Errorf("invalid slot %q: %w", Slot, err))
	}

	board, err := config.Parse(boardConfig)
	if err != nil {
		halter.Halt(err)
	}
	layout, err := board.Layout()
	if err != nil {
		halter.Halt(err)
	}
	uart, err := usbarmory.NewUART(board.Console.Port)
	if err != nil {
		halter.Halt(fmt.Errorf("bad console: %w", err))
	}
	backend := &usbarmory.Card{Card: card}
	fm := board.FlashMap()
	if err := fm.Validate(backend.Size()); err != nil {
		halter.Halt(fmt.Errorf("boot card does not fit partition table: %w", err))
	}

	mk2.LED("blue", true)
	glog.Infof("Booting slot %d of %s card", slot, Boot)

	l := &loader.Loader{
		Slots:   fm,
		Flash:   flash.NewDevice(backend),
		Memory:  layout,
		RAM:     &usbarmory.RAM{Layout: layout},
		Console: uart,
		Drain:   board.DrainPolicy(),
		Jumper:  usbarmory.Jumper{},
		Halter:  halter,
	}
	mk2.LED("white", true)
	l.Boot(slot, board.HeaderOffset)
}
