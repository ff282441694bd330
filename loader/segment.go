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
	"fmt"

	"github.com/transparency-dev/espboot/flash"
	"github.com/transparency-dev/espboot/memory"
)

// LoadSegment copies size bytes at offset off within area a to dest.
//
// dest must already have been accepted by Validate. An empty segment maps
// nothing and hands w an empty write. The mapping is always released before
// LoadSegment returns.
func LoadSegment(m flash.Mapper, a flash.Area, off, size, dest uint32, w memory.Writer) (err error) {
	if size == 0 {
		if err := w.WriteAt(dest, nil); err != nil {
			return fmt.Errorf("%w: empty segment at %#x: %w", ErrCopy, dest, err)
		}
		return nil
	}
	v, err := m.Map(a, off, size)
	if err != nil {
		return fmt.Errorf("%w: segment at %#x: %w", ErrMapping, off, err)
	}
	defer func() {
		if uerr := m.Unmap(v); uerr != nil && err == nil {
			err = fmt.Errorf("%w: releasing segment at %#x: %w", ErrMapping, off, uerr)
		}
	}()

	b := v.Bytes()
	if uint64(len(b)) != uint64(size) {
		return fmt.Errorf("%w: segment at %#x: mapped %d bytes, want %d", ErrMapping, off, len(b), size)
	}
	if err := w.WriteAt(dest, b); err != nil {
		return fmt.Errorf("%w: %d bytes to %#x: %w", ErrCopy, size, dest, err)
	}
	return nil
}
