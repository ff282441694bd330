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

package flash

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

//go:generate mockgen -self_package github.com/transparency-dev/espboot/flash -package flash -destination mock_flash.go github.com/transparency-dev/espboot/flash Mapper

var (
	// ErrOutOfRange is returned when a mapping would extend outside its area.
	ErrOutOfRange = errors.New("mapping outside of flash area")
	// ErrMappingBusy is returned when a mapping is requested while another
	// one is still outstanding.
	ErrMappingBusy = errors.New("a flash mapping is already outstanding")
	// ErrNotMapped is returned when releasing a View which is not the
	// outstanding mapping of the Device.
	ErrNotMapped = errors.New("view is not mapped")
)

// View is a read-only window onto flash contents.
//
// The slice returned by Bytes must not be modified, and must not be used
// after the View has been released.
type View interface {
	Bytes() []byte
}

// Mapper hands out Views onto the contents of flash areas.
type Mapper interface {
	// Map returns a View of size bytes at offset off within area a.
	Map(a Area, off, size uint32) (View, error)
	// Unmap releases a View returned by Map.
	Unmap(v View) error
}

// Backend provides raw access to a flash device.
type Backend interface {
	// Map makes size bytes at absolute offset off readable, returning them
	// along with a func which releases them.
	Map(off uint64, size uint32) ([]byte, func() error, error)
	// Size is the capacity of the device in bytes.
	Size() uint64
}

// Stats counts the mappings made through a Device.
type Stats struct {
	Maps   int
	Unmaps int
}

// Device is a Mapper over a Backend.
//
// Like the mapping facility of the boot ROMs it models, a Device allows only
// one outstanding View at a time.
type Device struct {
	b Backend

	mu    sync.Mutex
	cur   *view
	stats Stats
}

var _ Mapper = &Device{}

// NewDevice returns a Device backed by b.
func NewDevice(b Backend) *Device {
	return &Device{b: b}
}

type view struct {
	buf     []byte
	release func() error
}

func (v *view) Bytes() []byte {
	return v.buf
}

// Map implements Mapper.
func (d *Device) Map(a Area, off, size uint32) (View, error) {
	end := uint64(off) + uint64(size)
	if end > uint64(a.Size) {
		return nil, fmt.Errorf("map %#x+%#x in %v: %w", off, size, a, ErrOutOfRange)
	}
	abs := uint64(a.Offset) + uint64(off)
	if abs+uint64(size) > d.b.Size() {
		return nil, fmt.Errorf("map %#x+%#x in %v: past end of flash: %w", off, size, a, ErrOutOfRange)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur != nil {
		return nil, ErrMappingBusy
	}
	buf, release, err := d.b.Map(abs, size)
	if err != nil {
		return nil, fmt.Errorf("map %#x+%#x: %w", abs, size, err)
	}
	d.cur = &view{buf: buf, release: release}
	d.stats.Maps++
	glog.V(2).Infof("flash: mapped %#x+%#x (%v)", abs, size, a)
	return d.cur, nil
}

// Unmap implements Mapper.
func (d *Device) Unmap(v View) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vv, ok := v.(*view)
	if !ok || vv == nil || vv != d.cur {
		return ErrNotMapped
	}
	d.cur = nil
	d.stats.Unmaps++
	vv.buf = nil
	if vv.release != nil {
		return vv.release()
	}
	return nil
}

// Stats returns the number of mappings made and released so far.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
