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

// Package impl is the implementation of a util to build loadable images.
package impl

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/golang/glog"
	"github.com/transparency-dev/espboot/config"
	"github.com/transparency-dev/espboot/image"
	"github.com/transparency-dev/espboot/loader"
	"github.com/transparency-dev/espboot/memory"
)

// MkImageOpts encapsulates image builder parameters.
type MkImageOpts struct {
	IRAMBin      string
	IRAMAddr     uint64
	DRAMBin      string
	DRAMAddr     uint64
	Entry        uint64
	HeaderOffset uint64

	// Output is the path the image is written to, if set.
	Output string

	// Target names a known memory layout to check the image against.
	Target string
	// BoardConfig describes the board the image is destined for. Its memory
	// layout is used to check the image, and its flash map to place it.
	BoardConfig string
	// FlashImage is a flash contents file to write the image into, at the
	// start of Slot. Requires BoardConfig.
	FlashImage string
	Slot       int

	// Force writes images which the loader would reject.
	Force bool
}

func addr32(name string, v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%s %#x does not fit in 32 bits", name, v)
	}
	return uint32(v), nil
}

func readPayload(path string, dest uint64, name string) (image.Payload, error) {
	d, err := addr32(name+" address", dest)
	if err != nil {
		return image.Payload{}, err
	}
	if path == "" {
		return image.Payload{Dest: d}, nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return image.Payload{}, fmt.Errorf("failed to read %s segment: %w", name, err)
	}
	return image.Payload{Dest: d, Data: bs}, nil
}

// Main builds the image and writes it out.
func Main(opts MkImageOpts) error {
	if opts.Output == "" && opts.FlashImage == "" {
		return errors.New("one of output or flash_image must be set")
	}
	if opts.FlashImage != "" && opts.BoardConfig == "" {
		return errors.New("flash_image requires board_config")
	}

	var s image.Spec
	var err error
	if s.IRAM, err = readPayload(opts.IRAMBin, opts.IRAMAddr, "IRAM"); err != nil {
		return err
	}
	if s.DRAM, err = readPayload(opts.DRAMBin, opts.DRAMAddr, "DRAM"); err != nil {
		return err
	}
	if s.Entry, err = addr32("entry", opts.Entry); err != nil {
		return err
	}
	if s.HeaderOffset, err = addr32("header offset", opts.HeaderOffset); err != nil {
		return err
	}

	img, h, err := image.Build(s)
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	glog.Infof("Built %d byte image: entry=%#x IRAM=%#x+%#x DRAM=%#x+%#x", len(img), h.EntryAddr, h.IRAMDestAddr, h.IRAMSize, h.DRAMDestAddr, h.DRAMSize)

	var board *config.Board
	if opts.BoardConfig != "" {
		b, err := config.Load(opts.BoardConfig)
		if err != nil {
			return err
		}
		board = &b
	}
	if err := check(h, opts, board); err != nil {
		if !opts.Force {
			return err
		}
		glog.Warningf("Ignoring: %v", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, img, 0o644); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
		glog.Infof("Wrote image to %q", opts.Output)
	}
	if opts.FlashImage != "" {
		if err := writeSlot(opts.FlashImage, *board, opts.Slot, img); err != nil {
			return err
		}
	}
	return nil
}

// check runs the loader's header validation over h using the layouts named
// in opts.
func check(h loader.LoadHeader, opts MkImageOpts, board *config.Board) error {
	var layouts []memory.Layout
	if opts.Target != "" {
		l, err := memory.LayoutForTarget(opts.Target)
		if err != nil {
			return err
		}
		layouts = append(layouts, l)
	}
	if board != nil {
		l, err := board.Layout()
		if err != nil {
			return err
		}
		layouts = append(layouts, l)
	}
	for _, l := range layouts {
		if _, err := loader.Validate(h, l); err != nil {
			return fmt.Errorf("image would not load on %s: %w", l.Name, err)
		}
	}
	return nil
}

func writeSlot(path string, board config.Board, slot int, img []byte) error {
	a, err := board.FlashMap().ResolveSlot(slot)
	if err != nil {
		return fmt.Errorf("failed to find slot %d: %w", slot, err)
	}
	if uint64(len(img)) > uint64(a.Size) {
		return fmt.Errorf("%d byte image does not fit in %v", len(img), a)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open flash image: %w", err)
	}
	if _, err := f.WriteAt(img, int64(a.Offset)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write slot %d: %w", slot, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	glog.Infof("Wrote image into %v of %q", a, path)
	return nil
}
