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

package console

import (
	"bufio"
	"io"
)

// Buffered is a host Port which queues output until it is drained.
type Buffered struct {
	w *bufio.Writer
}

var _ Port = &Buffered{}

// NewBuffered returns a Port writing to w.
func NewBuffered(w io.Writer) *Buffered {
	return &Buffered{w: bufio.NewWriter(w)}
}

// Write queues p for transmission.
func (b *Buffered) Write(p []byte) (int, error) {
	return b.w.Write(p)
}

// TxIdle flushes queued output and reports whether nothing remains.
func (b *Buffered) TxIdle() bool {
	if err := b.w.Flush(); err != nil {
		return false
	}
	return b.w.Buffered() == 0
}
