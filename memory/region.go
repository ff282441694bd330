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

package memory

import "fmt"

// Region is the address range [Start, Start+Size).
//
// A region may end exactly at the top of the 32-bit address space.
type Region struct {
	Start uint32
	Size  uint32
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.end())
}

// end is one past the last address, which may be 1<<32.
func (r Region) end() uint64 {
	return uint64(r.Start) + uint64(r.Size)
}

// Contains reports whether addr lies in r.
func (r Region) Contains(addr uint32) bool {
	return addr >= r.Start && uint64(addr) < r.end()
}

// Overlaps reports whether r and o share any address.
func (r Region) Overlaps(o Region) bool {
	return uint64(r.Start) < o.end() && uint64(o.Start) < r.end()
}
