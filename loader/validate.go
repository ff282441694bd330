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
	"github.com/transparency-dev/espboot/fih"
	"github.com/transparency-dev/espboot/memory"
)

// numChecks is the number of checks Validate must pass.
const numChecks = 4

// Accepted is a load header which passed validation.
type Accepted struct {
	// Header is the validated header.
	Header LoadHeader
	// Entry is the checked entry point.
	Entry memory.Entry

	verdict fih.Bool
}

// Verdict returns the encoded outcome of the validation which produced a.
// It is True only for values returned by a successful Validate.
func (a Accepted) Verdict() fih.Bool {
	return a.verdict
}

// Validate checks that h is a load header built for this loader and that
// everything it asks to be written or executed lies in the right class of
// memory according to c.
//
// Checks run in a fixed order and stop at the first failure, which is
// returned as a *ValidationError:
//   - the magic must be HeaderMagic
//   - the IRAM segment destination must lie entirely in instruction RAM
//   - the DRAM segment destination must lie entirely in data RAM
//   - the entry point must lie in instruction RAM
//
// Every encoded check result is folded into the verdict, and a passed check
// is only counted through a second test of its result. Once all checks have
// passed they are evaluated again from scratch, so skipping any single
// comparison or branch still leaves the verdict false.
func Validate(h LoadHeader, c memory.Classifier) (Accepted, error) {
	entry, entryOK := memory.NewVerifier(c).Entry(h.EntryAddr)
	checks := []struct {
		check Check
		eval  func() fih.Bool
	}{
		{HeaderMagicMismatch, func() fih.Bool {
			return fih.Eq(h.Magic, HeaderMagic)
		}},
		{InstrRegionInvalid, func() fih.Bool {
			return fih.Verify(func() bool {
				return c.RangeInClass(h.IRAMDestAddr, h.IRAMSize, memory.InstructionRAM)
			})
		}},
		{DataRegionInvalid, func() fih.Bool {
			return fih.Verify(func() bool {
				return c.RangeInClass(h.DRAMDestAddr, h.DRAMSize, memory.DataRAM)
			})
		}},
		{EntryPointInvalid, func() fih.Bool {
			return fih.Verify(func() bool {
				return entryOK && entry.Addr() == h.EntryAddr && c.InClass(h.EntryAddr, memory.InstructionRAM)
			})
		}},
	}

	verdict := fih.True
	passed := uint32(0)
	for _, ck := range checks {
		rc := ck.eval()
		if !rc.IsTrue() {
			return Accepted{}, &ValidationError{Check: ck.check, Header: h}
		}
		verdict = fih.And(verdict, rc)
		if rc.IsTrue() {
			passed++
		}
	}

	again := fih.True
	for _, ck := range checks {
		again = fih.And(again, ck.eval())
	}
	verdict = fih.And(verdict, fih.And(again, fih.Eq(passed, numChecks)))
	if !verdict.IsTrue() {
		return Accepted{}, &ValidationError{Check: IncompleteValidation, Header: h}
	}
	return Accepted{Header: h, Entry: entry, verdict: verdict}, nil
}
