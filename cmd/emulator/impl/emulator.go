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

// Package impl is the implementation of the device emulator.
package impl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/golang/glog"
	"github.com/transparency-dev/espboot/config"
	"github.com/transparency-dev/espboot/console"
	"github.com/transparency-dev/espboot/fih"
	"github.com/transparency-dev/espboot/flash"
	"github.com/transparency-dev/espboot/loader"
	"github.com/transparency-dev/espboot/memory"
)

// ErrHalted wraps the reason the emulated device halted.
var ErrHalted = errors.New("device halted")

// EmulatorOpts encapsulates the parameters for running the emulator.
type EmulatorOpts struct {
	// BoardConfig is the path to the board description.
	BoardConfig string
	// FlashImage is the path to the flash contents.
	FlashImage string
	// Slot selects the image slot to boot.
	Slot int
	// HeaderOffset overrides the board's load header offset if not negative.
	HeaderOffset int64
	// DryRun stops after loading, without starting the application.
	DryRun bool
	// Console receives the output of the board's console UART. Defaults to
	// stdout.
	Console io.Writer
}

// Result describes how an emulated boot ended.
type Result struct {
	// Entry is the address the application was started at.
	Entry uint32
	// ExitCode is the return value of the application's entry function.
	ExitCode int64
}

// Main boots the emulated device.
//
// The loader never returns from a boot, so it is run on its own goroutine
// which ends when the device halts or the application finishes.
func Main(opts EmulatorOpts) (Result, error) {
	board, err := config.Load(opts.BoardConfig)
	if err != nil {
		return Result{}, err
	}
	layout, err := board.Layout()
	if err != nil {
		return Result{}, err
	}

	f, err := flash.OpenFile(opts.FlashImage)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	fm := board.FlashMap()
	if err := fm.Validate(f.Size()); err != nil {
		return Result{}, fmt.Errorf("flash image does not match board: %w", err)
	}

	out := opts.Console
	if out == nil {
		out = os.Stdout
	}
	port := console.NewBuffered(out)
	ram := memory.NewRAM(layout)

	hdrOffset := board.HeaderOffset
	if opts.HeaderOffset >= 0 {
		hdrOffset = uint32(opts.HeaderOffset)
	}

	l := &loader.Loader{
		Slots:   fm,
		Flash:   flash.NewDevice(f),
		Memory:  layout,
		RAM:     ram,
		Console: port,
		Drain:   board.DrainPolicy(),
	}

	glog.Info("----RESET----")
	fmt.Fprintf(port, "espboot: %s on UART%d, booting slot %d, load header at %#x\n", layout.Name, board.Console.Port, opts.Slot, hdrOffset)

	if opts.DryRun {
		acc, err := l.Load(opts.Slot, hdrOffset)
		if err != nil {
			return Result{}, err
		}
		for _, s := range acc.Header.Segments() {
			fmt.Fprintf(port, "espboot: %s segment loaded at %#x (%d bytes)\n", s.Name, s.Dest, s.Size)
		}
		fmt.Fprintf(port, "espboot: would start at %v\n", acc.Entry)
		port.TxIdle()
		return Result{Entry: acc.Entry.Addr()}, nil
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	l.Halter = fih.HalterFunc(func(reason error) {
		port.TxIdle()
		done <- outcome{err: fmt.Errorf("%w: %w", ErrHalted, reason)}
		runtime.Goexit()
	})
	l.Jumper = loader.JumperFunc(func(e memory.Entry) {
		res, err := start(e, ram, &resolver{out: port, slot: opts.Slot})
		port.TxIdle()
		done <- outcome{res: res, err: err}
		runtime.Goexit()
	})

	go l.Boot(opts.Slot, hdrOffset)

	o := <-done
	return o.res, o.err
}

// start runs the WebAssembly module loaded at e.
func start(e memory.Entry, ram *memory.RAM, r *resolver) (Result, error) {
	res := Result{Entry: e.Addr()}
	code, err := ram.Segment(e.Addr())
	if err != nil {
		return res, fmt.Errorf("no code at entry %v: %w", e, err)
	}
	if !strings.HasPrefix(string(code), wasmMagic) {
		return res, fmt.Errorf("no WebAssembly module at entry %v", e)
	}
	glog.Infof("Starting application at %v (%d bytes)", e, len(code))
	ret, err := runWasm("main", code, r)
	if err != nil {
		return res, fmt.Errorf("application failed: %w", err)
	}
	fmt.Fprintf(r.out, "return value = %d\n", ret)
	res.ExitCode = ret
	return res, nil
}
