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

// Entry is an execution start address which has been checked to lie in
// instruction memory.
//
// The zero Entry is not a valid start address, and the only way to obtain a
// non-zero Entry outside this package is through a Verifier, so code which
// jumps to an Entry cannot be handed an unchecked integer by mistake.
type Entry struct {
	addr  uint32
	valid bool
}

// Addr returns the entry address.
func (e Entry) Addr() uint32 {
	return e.addr
}

// Valid reports whether e was produced by a successful check.
func (e Entry) Valid() bool {
	return e.valid
}

func (e Entry) String() string {
	if !e.valid {
		return "<invalid entry>"
	}
	return fmt.Sprintf("%#x", e.addr)
}

// Verifier mints Entry values for addresses in instruction memory.
type Verifier struct {
	c Classifier
}

// NewVerifier returns a Verifier which consults c.
func NewVerifier(c Classifier) Verifier {
	return Verifier{c: c}
}

// Entry returns addr as an Entry if it lies in instruction memory.
func (v Verifier) Entry(addr uint32) (Entry, bool) {
	if v.c == nil || !v.c.InClass(addr, InstructionRAM) {
		return Entry{}, false
	}
	return Entry{addr: addr, valid: true}, true
}
