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

// Package console deals with the diagnostic serial console of a device.
package console

import (
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// ErrDrainTimeout is returned when the transmitter did not go idle within
// the allowed number of polls.
var ErrDrainTimeout = errors.New("console transmitter did not drain")

// DefaultMaxSpins is the number of status polls allowed when draining if a
// DrainPolicy does not say otherwise.
const DefaultMaxSpins = 1 << 20

// Port is the transmit side of a console.
type Port interface {
	// TxIdle reports whether the transmitter has no pending bytes. It may
	// make progress towards idleness as a side effect.
	TxIdle() bool
}

// DrainPolicy bounds the wait for a Port to go idle.
type DrainPolicy struct {
	// MaxSpins is the number of times the port status is polled after the
	// first check. Zero means DefaultMaxSpins.
	MaxSpins uint64
}

// WaitTransmitIdle polls p until it reports that it is idle, or the policy's
// spin budget is exhausted. There is no delay between polls.
func WaitTransmitIdle(p Port, policy DrainPolicy) error {
	spins := policy.MaxSpins
	if spins == 0 {
		spins = DefaultMaxSpins
	}
	op := func() error {
		if !p.TxIdle() {
			return ErrDrainTimeout
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, spins)); err != nil {
		return fmt.Errorf("gave up after %d polls: %w", spins+1, err)
	}
	return nil
}
