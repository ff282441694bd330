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

package fih

import (
	"github.com/golang/glog"
)

// Halter stops the device.
//
// Implementations must never return from Halt.
type Halter interface {
	Halt(reason error)
}

// HalterFunc adapts a func to the Halter interface.
type HalterFunc func(reason error)

// Halt calls f(reason).
func (f HalterFunc) Halt(reason error) {
	f(reason)
}

// Panic stops the device via h and never returns.
//
// If h.Halt does return, which can only happen through a broken Halter or a
// glitched return, it is called a second time and the caller then spins
// forever.
func Panic(h Halter, reason error) {
	h.Halt(reason)
	h.Halt(reason)
	Spin()
}

// Spin loops forever.
func Spin() {
	for {
	}
}

// SpinHalter flushes the logs and spins forever. Reporting the reason is
// left to the caller.
type SpinHalter struct{}

// Halt implements Halter.
func (SpinHalter) Halt(reason error) {
	glog.V(1).Infof("halting: %v", reason)
	glog.Flush()
	Spin()
}
