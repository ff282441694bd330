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

// Package fih provides fault injection hardened primitives for the boot path.
//
// Results of security checks are carried as encoded values rather than plain
// bools, and every check is evaluated more than once, so that a single
// glitched comparison or skipped branch is not enough to turn a failure into
// a success.
package fih

const (
	positive = 0x1AAAAAAA
	negative = 0x15555555
	mask     = 0xA5C35A3C
)

// Bool is an encoded boolean.
//
// The zero value is neither True nor False, and is never treated as true.
type Bool struct {
	val uint32
	msk uint32
}

var (
	// True is the encoded success value.
	True = Bool{val: positive, msk: positive ^ mask}
	// False is the encoded failure value.
	False = Bool{val: negative, msk: negative ^ mask}
)

// FromBool encodes b.
func FromBool(b bool) Bool {
	r := False
	if b {
		r = True
	}
	return r
}

// Valid reports whether the value and its mask still agree.
func (b Bool) Valid() bool {
	return b.val^b.msk == mask
}

// IsTrue returns true only for an intact True.
func (b Bool) IsTrue() bool {
	if !b.Valid() {
		return false
	}
	if b.val != positive {
		return false
	}
	if b.msk^mask != positive {
		return false
	}
	return true
}

// And returns True only if both a and b are intact Trues.
func And(a, b Bool) Bool {
	if !a.IsTrue() || !b.IsTrue() {
		return False
	}
	return True
}

// Eq compares a and b twice using different operations.
func Eq(a, b uint32) Bool {
	r := FromBool(a == b)
	if a^b != 0 {
		return False
	}
	return r
}

// Verify evaluates pred twice. The result is True only if the encoded first
// evaluation and the second evaluation both hold.
func Verify(pred func() bool) Bool {
	r := FromBool(pred())
	if !r.IsTrue() {
		return False
	}
	if !pred() {
		return False
	}
	return r
}

// String implements fmt.Stringer.
func (b Bool) String() string {
	switch {
	case b.IsTrue():
		return "true"
	case b == False:
		return "false"
	default:
		return "corrupt"
	}
}
