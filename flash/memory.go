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

import "fmt"

// Memory is a Backend over a byte slice.
type Memory struct {
	data []byte
}

var _ Backend = &Memory{}

// NewMemory returns a Backend serving data.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

// Map implements Backend.
func (m *Memory) Map(off uint64, size uint32) ([]byte, func() error, error) {
	end := off + uint64(size)
	if end > uint64(len(m.data)) {
		return nil, nil, fmt.Errorf("%#x+%#x past end of flash at %#x: %w", off, size, len(m.data), ErrOutOfRange)
	}
	return m.data[off:end:end], nil, nil
}

// Size implements Backend.
func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}
