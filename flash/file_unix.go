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

//go:build unix

package flash

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a Backend over a flash image file.
//
// Each mapping is a read-only mmap of the pages covering the requested
// range, released again on unmap.
type File struct {
	f    *os.File
	size uint64
}

var _ Backend = &File{}

// OpenFile opens the flash image at path.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flash image: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat flash image: %w", err)
	}
	return &File{f: f, size: uint64(fi.Size())}, nil
}

// Map implements Backend.
func (b *File) Map(off uint64, size uint32) ([]byte, func() error, error) {
	if off+uint64(size) > b.size {
		return nil, nil, fmt.Errorf("%#x+%#x past end of flash at %#x: %w", off, size, b.size, ErrOutOfRange)
	}
	if size == 0 {
		return []byte{}, nil, nil
	}
	page := uint64(os.Getpagesize())
	base := off &^ (page - 1)
	skip := off - base
	m, err := unix.Mmap(int(b.f.Fd()), int64(base), int(skip+uint64(size)), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: %w", err)
	}
	return m[skip:], func() error { return unix.Munmap(m) }, nil
}

// Size implements Backend.
func (b *File) Size() uint64 {
	return b.size
}

// Close closes the underlying file.
func (b *File) Close() error {
	return b.f.Close()
}
