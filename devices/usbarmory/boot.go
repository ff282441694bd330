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

//go:build tamago && arm

package usbarmory

import (
	"log"

	"github.com/transparency-dev/espboot/memory"
	"github.com/usbarmory/tamago/arm"
	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"
)

// defined in boot.s
func exec(entry uint32)
func svc()

// Jumper starts loaded images from supervisor mode.
type Jumper struct{}

// Jump implements loader.Jumper.
func (Jumper) Jump(e memory.Entry) {
	if !e.Valid() {
		return
	}
	entry := e.Addr()

	arm.SystemExceptionHandler = func(n int) {
		if n != arm.SUPERVISOR {
			panic("unhandled exception")
		}

		log.Printf("espboot: starting image@%x\n", entry)

		usbarmory.LED("blue", false)
		usbarmory.LED("white", false)

		imx6ul.ARM.FlushDataCache()
		imx6ul.ARM.DisableCache()

		exec(entry)
	}

	svc()
}
