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
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/golang/glog"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/transparency-dev/espboot/fih"
	"github.com/transparency-dev/espboot/flash"
	"github.com/transparency-dev/espboot/memory"
)

const (
	testHeaderOffset = 0x20
	testFlashSize    = 0x40000
)

var (
	testArea = flash.Area{ID: 1, Name: "primary", Offset: 0x1000, Size: 0x30000}
	testMap  = flash.Map{Areas: []flash.Area{testArea}, Slots: []uint8{1}}

	goodHeader = LoadHeader{
		Magic:           HeaderMagic,
		EntryAddr:       0x40080010,
		IRAMDestAddr:    0x40080000,
		IRAMFlashOffset: 0x100,
		IRAMSize:        0x40,
		DRAMDestAddr:    0x3FFB0000,
		DRAMFlashOffset: 0x200,
		DRAMSize:        0x20,
	}
)

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*13)
	}
	return b
}

// buildFlash returns a flash image with h at testHeaderOffset in testArea,
// and the segments h describes filled with known patterns.
func buildFlash(t *testing.T, h LoadHeader) []byte {
	t.Helper()
	raw := make([]byte, testFlashSize)
	hb, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	copy(raw[testArea.Offset+testHeaderOffset:], hb)
	copy(raw[testArea.Offset+h.IRAMFlashOffset:], pattern(int(h.IRAMSize), 0x11))
	copy(raw[testArea.Offset+h.DRAMFlashOffset:], pattern(int(h.DRAMSize), 0x77))
	return raw
}

type haltSignal struct{ reason error }

type jumpSignal struct{ entry memory.Entry }

type recordingHalter struct {
	reasons []error
}

func (r *recordingHalter) Halt(reason error) {
	r.reasons = append(r.reasons, reason)
	panic(haltSignal{reason})
}

// runBoot calls Boot and returns what it unwound with.
func runBoot(l *Loader, slot int, off uint32) (r interface{}) {
	defer func() {
		r = recover()
	}()
	l.Boot(slot, off)
	return nil
}

func newTestLoader(m flash.Mapper, ram memory.Writer, h fih.Halter) *Loader {
	return &Loader{
		Slots:  testMap,
		Flash:  m,
		Memory: memory.ESP32,
		RAM:    ram,
		Jumper: JumperFunc(func(e memory.Entry) { panic(jumpSignal{e}) }),
		Halter: h,
	}
}

// countingMapper returns a mock Mapper which forwards to a Device over raw
// and expects exactly n mappings and n releases.
func countingMapper(t *testing.T, raw []byte, n int) *flash.MockMapper {
	ctrl := gomock.NewController(t)
	dev := flash.NewDevice(flash.NewMemory(raw))
	m := flash.NewMockMapper(ctrl)
	m.EXPECT().Map(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(dev.Map).Times(n)
	m.EXPECT().Unmap(gomock.Any()).DoAndReturn(dev.Unmap).Times(n)
	return m
}

func TestDecodeHeader(t *testing.T) {
	raw := []byte{
		0xd3, 0x37, 0xe6, 0xac,
		0x10, 0x00, 0x08, 0x40,
		0x00, 0x00, 0x08, 0x40,
		0x00, 0x01, 0x00, 0x00,
		0x40, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xfb, 0x3f,
		0x00, 0x02, 0x00, 0x00,
		0x20, 0x00, 0x00, 0x00,
	}
	got, err := DecodeHeader(raw)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if diff := cmp.Diff(goodHeader, got); diff != "" {
		t.Errorf("DecodeHeader diff (-want +got):\n%s", diff)
	}
	enc, err := goodHeader.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if !bytes.Equal(enc, raw) {
		t.Errorf("MarshalBinary() = %x, want %x", enc, raw)
	}

	for _, n := range []int{0, 1, HeaderSize - 1} {
		if _, err := DecodeHeader(raw[:n]); !errors.Is(err, ErrTruncatedHeader) {
			t.Errorf("DecodeHeader(%d bytes) = %v, want ErrTruncatedHeader", n, err)
		}
	}
}

func TestReadHeader(t *testing.T) {
	raw := buildFlash(t, goodHeader)
	dev := flash.NewDevice(flash.NewMemory(raw))

	got, err := ReadHeader(dev, testArea, testHeaderOffset)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if diff := cmp.Diff(goodHeader, got); diff != "" {
		t.Errorf("ReadHeader diff (-want +got):\n%s", diff)
	}

	if _, err := ReadHeader(dev, testArea, testArea.Size-HeaderSize+1); !errors.Is(err, ErrMapping) {
		t.Errorf("ReadHeader past end of area = %v, want ErrMapping", err)
	}
	if diff := cmp.Diff(flash.Stats{Maps: 1, Unmaps: 1}, dev.Stats()); diff != "" {
		t.Errorf("Stats diff (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	modify := func(f func(h *LoadHeader)) LoadHeader {
		h := goodHeader
		f(&h)
		return h
	}
	for _, test := range []struct {
		desc      string
		h         LoadHeader
		wantCheck Check
	}{
		{desc: "valid", h: goodHeader},
		{
			desc:      "magic off by one bit",
			h:         modify(func(h *LoadHeader) { h.Magic = HeaderMagic ^ 1 }),
			wantCheck: HeaderMagicMismatch,
		}, {
			desc:      "bad magic reported before bad regions",
			h:         LoadHeader{Magic: 0xdeadbeef, IRAMDestAddr: 1, IRAMSize: 1},
			wantCheck: HeaderMagicMismatch,
		}, {
			desc:      "IRAM one byte past end",
			h:         modify(func(h *LoadHeader) { h.IRAMDestAddr = 0x400A0000 - 0x40 + 1 }),
			wantCheck: InstrRegionInvalid,
		}, {
			desc:      "IRAM in DRAM",
			h:         modify(func(h *LoadHeader) { h.IRAMDestAddr = 0x3FFB1000 }),
			wantCheck: InstrRegionInvalid,
		}, {
			desc: "IRAM wraps address space",
			h: modify(func(h *LoadHeader) {
				h.IRAMDestAddr = 0xFFFFFFF0
				h.IRAMSize = 0x20
			}),
			wantCheck: InstrRegionInvalid,
		}, {
			desc: "IRAM size wraps back into IRAM",
			h: modify(func(h *LoadHeader) {
				h.IRAMDestAddr = 0x40080000
				h.IRAMSize = 0xC0000000
			}),
			wantCheck: InstrRegionInvalid,
		}, {
			desc:      "DRAM one byte before start",
			h:         modify(func(h *LoadHeader) { h.DRAMDestAddr = 0x3FFADFFF }),
			wantCheck: DataRegionInvalid,
		}, {
			desc:      "DRAM in IRAM",
			h:         modify(func(h *LoadHeader) { h.DRAMDestAddr = 0x40090000 }),
			wantCheck: DataRegionInvalid,
		}, {
			desc: "DRAM wraps address space",
			h: modify(func(h *LoadHeader) {
				h.DRAMDestAddr = 0xFFFFFFF0
				h.DRAMSize = 0x20
			}),
			wantCheck: DataRegionInvalid,
		}, {
			desc:      "entry in DRAM",
			h:         modify(func(h *LoadHeader) { h.EntryAddr = 0x3FFB0000 }),
			wantCheck: EntryPointInvalid,
		}, {
			desc:      "entry at IRAM end",
			h:         modify(func(h *LoadHeader) { h.EntryAddr = 0x400A0000 }),
			wantCheck: EntryPointInvalid,
		}, {
			desc: "empty segments anywhere",
			h: modify(func(h *LoadHeader) {
				h.IRAMDestAddr, h.IRAMSize = 0, 0
				h.DRAMDestAddr, h.DRAMSize = 0xFFFFFFFF, 0
			}),
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			acc, err := Validate(test.h, memory.ESP32)
			if test.wantCheck == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want success", err)
				}
				if !acc.Verdict().IsTrue() {
					t.Error("accepted header has a false verdict")
				}
				if got, want := acc.Entry.Addr(), test.h.EntryAddr; !acc.Entry.Valid() || got != want {
					t.Errorf("Entry = %v, want %#x", acc.Entry, want)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if verr.Check != test.wantCheck {
				t.Errorf("failed check %v, want %v", verr.Check, test.wantCheck)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("ValidationError does not match ErrValidation")
			}
			if !strings.Contains(err.Error(), test.wantCheck.String()) {
				t.Errorf("error %q does not name %q", err, test.wantCheck)
			}
			if acc.Verdict().IsTrue() || acc.Entry.Valid() {
				t.Error("rejected header returned a usable Accepted")
			}
		})
	}
}

// flakyClassifier answers true to the first n queries of one kind, and
// then defers to the layout. It stands in for a check whose outcome was
// corrupted while it was first evaluated.
type flakyClassifier struct {
	memory.Layout
	class memory.Class
	ranges bool
	n      int
}

func (f *flakyClassifier) flip(c memory.Class, ranges bool) bool {
	if c != f.class || ranges != f.ranges || f.n == 0 {
		return false
	}
	f.n--
	return true
}

func (f *flakyClassifier) InClass(addr uint32, c memory.Class) bool {
	return f.flip(c, false) || f.Layout.InClass(addr, c)
}

func (f *flakyClassifier) RangeInClass(dest, size uint32, c memory.Class) bool {
	return f.flip(c, true) || f.Layout.RangeInClass(dest, size, c)
}

func TestValidateReevaluatesChecks(t *testing.T) {
	for _, test := range []struct {
		desc string
		h    LoadHeader
		c    *flakyClassifier
	}{
		{
			desc: "IRAM region",
			h:    LoadHeader{Magic: HeaderMagic, EntryAddr: 0x40080000, IRAMDestAddr: 0x3FFB0000, IRAMSize: 0x10},
			c:    &flakyClassifier{Layout: memory.ESP32, class: memory.InstructionRAM, ranges: true, n: 2},
		}, {
			desc: "DRAM region",
			h:    LoadHeader{Magic: HeaderMagic, EntryAddr: 0x40080000, DRAMDestAddr: 0x40080000, DRAMSize: 0x10},
			c:    &flakyClassifier{Layout: memory.ESP32, class: memory.DataRAM, ranges: true, n: 2},
		}, {
			desc: "entry point",
			h:    LoadHeader{Magic: HeaderMagic, EntryAddr: 0x3FFB0000},
			c:    &flakyClassifier{Layout: memory.ESP32, class: memory.InstructionRAM, n: 3},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			acc, err := Validate(test.h, test.c)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Check != IncompleteValidation {
				t.Fatalf("Validate() = %v, want %v failure", err, IncompleteValidation)
			}
			if acc.Verdict().IsTrue() || acc.Entry.Valid() {
				t.Error("header accepted after a check changed its answer")
			}
		})
	}
}

func TestLoadSegmentIsByteExact(t *testing.T) {
	for _, size := range []uint32{0, 1, 0x10000} {
		t.Run(sizeName(size), func(t *testing.T) {
			raw := make([]byte, testFlashSize)
			src := pattern(int(size), 0x5a)
			copy(raw[testArea.Offset+0x400:], src)
			dev := flash.NewDevice(flash.NewMemory(raw))
			ram := memory.NewRAM(memory.ESP32)
			const dest = 0x3FFB0000

			if err := LoadSegment(dev, testArea, 0x400, size, dest, ram); err != nil {
				t.Fatalf("LoadSegment: %v", err)
			}
			got, err := ram.Read(dest, size)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !bytes.Equal(got, src) {
				t.Error("destination differs from source")
			}
			s := dev.Stats()
			if s.Maps != s.Unmaps {
				t.Errorf("%d mappings but %d releases", s.Maps, s.Unmaps)
			}
		})
	}
}

func sizeName(n uint32) string {
	switch n {
	case 0:
		return "empty"
	case 1:
		return "one byte"
	default:
		return "large"
	}
}

func TestLoadSegmentReleasesOnCopyFailure(t *testing.T) {
	raw := make([]byte, testFlashSize)
	m := countingMapper(t, raw, 1)
	ram := memory.NewRAM(memory.ESP32)
	err := LoadSegment(m, testArea, 0, 0x10, 0x10, ram)
	if !errors.Is(err, ErrCopy) {
		t.Errorf("LoadSegment to unbacked address = %v, want ErrCopy", err)
	}
}

func TestBoot(t *testing.T) {
	for _, test := range []struct {
		desc string
		h    LoadHeader
		// wantMaps is the number of views the boot should acquire and release.
		wantMaps int
		// wantHalt names the check in the halt reason, empty if the boot
		// should reach the jump.
		wantHalt   string
		wantLoaded []uint32
	}{
		{
			desc:       "scenario A: valid header",
			h:          goodHeader,
			wantMaps:   3,
			wantLoaded: []uint32{goodHeader.DRAMDestAddr, goodHeader.IRAMDestAddr},
		}, {
			desc:     "scenario B: bad magic",
			h:        LoadHeader{Magic: HeaderMagic ^ 1},
			wantMaps: 1,
			wantHalt: "header magic",
		}, {
			desc: "scenario C: IRAM one byte past end",
			h: func() LoadHeader {
				h := goodHeader
				h.IRAMDestAddr = 0x400A0000 - h.IRAMSize + 1
				return h
			}(),
			wantMaps: 1,
			wantHalt: "IRAM region",
		}, {
			desc: "scenario D: empty DRAM segment",
			h: func() LoadHeader {
				h := goodHeader
				h.DRAMSize = 0
				return h
			}(),
			wantMaps:   2,
			wantLoaded: []uint32{goodHeader.IRAMDestAddr},
		}, {
			desc: "DRAM region",
			h: func() LoadHeader {
				h := goodHeader
				h.DRAMDestAddr = 0xFFFFFFF0
				return h
			}(),
			wantMaps: 1,
			wantHalt: "DRAM region",
		}, {
			desc: "entry point",
			h: func() LoadHeader {
				h := goodHeader
				h.EntryAddr = goodHeader.DRAMDestAddr
				return h
			}(),
			wantMaps: 1,
			wantHalt: "entry point",
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			raw := buildFlash(t, test.h)
			m := countingMapper(t, raw, test.wantMaps)
			ram := memory.NewRAM(memory.ESP32)
			h := &recordingHalter{}
			l := newTestLoader(m, ram, h)

			errLines := glog.Stats.Error.Lines()
			r := runBoot(l, 0, testHeaderOffset)
			errLines = glog.Stats.Error.Lines() - errLines

			if test.wantHalt != "" {
				if errLines != 1 {
					t.Errorf("logged %d error lines, want 1", errLines)
				}
				hs, ok := r.(haltSignal)
				if !ok {
					t.Fatalf("Boot ended with %v, want halt", r)
				}
				if !strings.Contains(hs.reason.Error(), test.wantHalt) {
					t.Errorf("halt reason %q does not name %q", hs.reason, test.wantHalt)
				}
				if len(h.reasons) != 1 {
					t.Errorf("halted %d times, want 1", len(h.reasons))
				}
				if got := ram.Written(); len(got) != 0 {
					t.Errorf("RAM written at %x before halt", got)
				}
				return
			}

			js, ok := r.(jumpSignal)
			if !ok {
				t.Fatalf("Boot ended with %v, want jump", r)
			}
			if got, want := js.entry.Addr(), test.h.EntryAddr; got != want {
				t.Errorf("jumped to %#x, want %#x", got, want)
			}
			if len(h.reasons) != 0 {
				t.Errorf("halted with %v", h.reasons)
			}
			if diff := cmp.Diff(test.wantLoaded, ram.Written()); diff != "" {
				t.Errorf("loaded segments diff (-want +got):\n%s", diff)
			}
			for _, s := range test.h.Segments() {
				got, err := ram.Read(s.Dest, s.Size)
				if err != nil {
					t.Fatalf("Read(%s): %v", s.Name, err)
				}
				want := raw[testArea.Offset+s.FlashOffset : testArea.Offset+s.FlashOffset+s.Size]
				if !bytes.Equal(got, want) {
					t.Errorf("%s segment differs from flash", s.Name)
				}
			}
		})
	}
}

func TestBootLoadsDataBeforeInstructions(t *testing.T) {
	raw := buildFlash(t, goodHeader)
	ctrl := gomock.NewController(t)
	dev := flash.NewDevice(flash.NewMemory(raw))
	m := flash.NewMockMapper(ctrl)
	gomock.InOrder(
		m.EXPECT().Map(testArea, uint32(testHeaderOffset), uint32(HeaderSize)).DoAndReturn(dev.Map),
		m.EXPECT().Unmap(gomock.Any()).DoAndReturn(dev.Unmap),
		m.EXPECT().Map(testArea, goodHeader.DRAMFlashOffset, goodHeader.DRAMSize).DoAndReturn(dev.Map),
		m.EXPECT().Unmap(gomock.Any()).DoAndReturn(dev.Unmap),
		m.EXPECT().Map(testArea, goodHeader.IRAMFlashOffset, goodHeader.IRAMSize).DoAndReturn(dev.Map),
		m.EXPECT().Unmap(gomock.Any()).DoAndReturn(dev.Unmap),
	)
	l := newTestLoader(m, memory.NewRAM(memory.ESP32), &recordingHalter{})
	if r := runBoot(l, 0, testHeaderOffset); r == nil {
		t.Fatal("Boot returned")
	} else if _, ok := r.(jumpSignal); !ok {
		t.Fatalf("Boot ended with %v, want jump", r)
	}
}

type write struct {
	dest uint32
	size int
}

// recordingWriter notes every write before passing it on.
type recordingWriter struct {
	memory.Writer
	writes []write
}

func (r *recordingWriter) WriteAt(dest uint32, b []byte) error {
	r.writes = append(r.writes, write{dest: dest, size: len(b)})
	return r.Writer.WriteAt(dest, b)
}

func TestBootCopiesEmptyDataSegmentFirst(t *testing.T) {
	h := goodHeader
	h.DRAMSize = 0
	raw := buildFlash(t, h)
	w := &recordingWriter{Writer: memory.NewRAM(memory.ESP32)}
	l := newTestLoader(countingMapper(t, raw, 2), w, &recordingHalter{})

	if _, ok := runBoot(l, 0, testHeaderOffset).(jumpSignal); !ok {
		t.Fatal("Boot did not reach the jump")
	}
	want := []write{
		{dest: h.DRAMDestAddr, size: 0},
		{dest: h.IRAMDestAddr, size: int(h.IRAMSize)},
	}
	if diff := cmp.Diff(want, w.writes, cmp.AllowUnexported(write{})); diff != "" {
		t.Errorf("writes diff (-want +got):\n%s", diff)
	}
}

func TestBootHaltsWhenEntryReturns(t *testing.T) {
	raw := buildFlash(t, goodHeader)
	h := &recordingHalter{}
	l := newTestLoader(flash.NewDevice(flash.NewMemory(raw)), memory.NewRAM(memory.ESP32), h)
	var jumped memory.Entry
	l.Jumper = JumperFunc(func(e memory.Entry) { jumped = e })

	r := runBoot(l, 0, testHeaderOffset)
	hs, ok := r.(haltSignal)
	if !ok {
		t.Fatalf("Boot ended with %v, want halt", r)
	}
	if !errors.Is(hs.reason, ErrUnreachableReturn) {
		t.Errorf("halt reason %v, want ErrUnreachableReturn", hs.reason)
	}
	if jumped.Addr() != goodHeader.EntryAddr {
		t.Errorf("jumped to %v, want %#x", jumped, goodHeader.EntryAddr)
	}
}

func TestBootFatalErrors(t *testing.T) {
	mapErr := errors.New("mmu exhausted")
	for _, test := range []struct {
		desc    string
		slot    int
		setup   func(m *flash.MockMapper)
		wantErr error
	}{
		{
			desc:    "unknown slot",
			slot:    3,
			setup:   func(m *flash.MockMapper) {},
			wantErr: ErrSlotResolution,
		}, {
			desc: "header mapping fails",
			setup: func(m *flash.MockMapper) {
				m.EXPECT().Map(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, mapErr)
			},
			wantErr: ErrMapping,
		}, {
			desc: "segment mapping fails",
			setup: func(m *flash.MockMapper) {
				dev := flash.NewDevice(flash.NewMemory(buildFlash(t, goodHeader)))
				gomock.InOrder(
					m.EXPECT().Map(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(dev.Map),
					m.EXPECT().Unmap(gomock.Any()).DoAndReturn(dev.Unmap),
					m.EXPECT().Map(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, mapErr),
				)
			},
			wantErr: ErrMapping,
		}, {
			desc: "short header view",
			setup: func(m *flash.MockMapper) {
				dev := flash.NewDevice(flash.NewMemory(make([]byte, testFlashSize)))
				m.EXPECT().Map(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
					func(a flash.Area, off, size uint32) (flash.View, error) {
						return dev.Map(a, off, size-1)
					})
				m.EXPECT().Unmap(gomock.Any()).DoAndReturn(dev.Unmap)
			},
			wantErr: ErrTruncatedHeader,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := flash.NewMockMapper(ctrl)
			test.setup(m)
			h := &recordingHalter{}
			ram := memory.NewRAM(memory.ESP32)
			l := newTestLoader(m, ram, h)

			r := runBoot(l, test.slot, testHeaderOffset)
			hs, ok := r.(haltSignal)
			if !ok {
				t.Fatalf("Boot ended with %v, want halt", r)
			}
			if !errors.Is(hs.reason, test.wantErr) {
				t.Errorf("halt reason %v, want %v", hs.reason, test.wantErr)
			}
			if test.wantErr == ErrMapping && !errors.Is(hs.reason, mapErr) {
				t.Errorf("halt reason %v does not carry the mapping error", hs.reason)
			}
			if len(ram.Written()) != 0 {
				t.Error("RAM written before halt")
			}
		})
	}
}

func TestLoadDoesNotHalt(t *testing.T) {
	raw := buildFlash(t, LoadHeader{Magic: 0})
	h := &recordingHalter{}
	l := newTestLoader(flash.NewDevice(flash.NewMemory(raw)), memory.NewRAM(memory.ESP32), h)
	if _, err := l.Load(0, testHeaderOffset); !errors.Is(err, ErrValidation) {
		t.Errorf("Load() = %v, want ErrValidation", err)
	}
	if len(h.reasons) != 0 {
		t.Errorf("Load halted: %v", h.reasons)
	}
}
