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
	"time"

	"github.com/golang/glog"
	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
)

func blinkOnOff(led string, on, off time.Duration) {
	usbarmory.LED(led, true)
	<-time.After(on)
	usbarmory.LED(led, false)
	<-time.After(off)
}

// LEDHalter signals the reason for halting on the board LEDs, forever.
type LEDHalter struct{}

// Halt implements fih.Halter.
func (LEDHalter) Halt(reason error) {
	code := HaltCode(reason)
	glog.V(1).Infof("halting with blink code %d: %v", code, reason)
	glog.Flush()

	on, off := 200*time.Millisecond, 300*time.Millisecond
	space := 300 * time.Millisecond

	for {
		usbarmory.LED("blue", true)
		usbarmory.LED("white", true)

		<-time.After(space)
		usbarmory.LED("blue", false)
		<-time.After(space)

		for i := 0; i < code; i++ {
			blinkOnOff("blue", on, off)
		}
		usbarmory.LED("blue", false)
		usbarmory.LED("white", false)
		<-time.After(2 * space)
	}
}
