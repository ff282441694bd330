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

	"github.com/golang/glog"
	"github.com/transparency-dev/espboot/console"
	"github.com/transparency-dev/espboot/fih"
	"github.com/transparency-dev/espboot/memory"
)

// Jumper hands the CPU over to a loaded application.
//
// Jump must not return. Implementations are the single place where an
// address is turned into executing code.
type Jumper interface {
	Jump(e memory.Entry)
}

// JumperFunc adapts a func to the Jumper interface.
type JumperFunc func(e memory.Entry)

// Jump calls f(e).
func (f JumperFunc) Jump(e memory.Entry) {
	f(e)
}

// Transfer waits for the console to finish transmitting and then jumps to e.
//
// Transfer never returns: should the jump come back, the device is halted
// via h with ErrUnreachableReturn.
func Transfer(p console.Port, policy console.DrainPolicy, j Jumper, e memory.Entry, h fih.Halter) {
	if p != nil {
		if err := console.WaitTransmitIdle(p, policy); err != nil {
			glog.Warningf("console drain: %v", err)
		}
	}
	if !e.Valid() {
		fih.Panic(h, fmt.Errorf("%w: refusing to jump to %v", ErrValidation, e))
	}

	j.Jump(e)

	err := fmt.Errorf("%w: %v", ErrUnreachableReturn, e)
	glog.Errorf("%v. Aborting", err)
	fih.Panic(h, err)
}
