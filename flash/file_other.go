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

//go:build !unix

package flash

import (
	"fmt"
	"os"
)

// File is a Backend over a flash image file, read into memory when opened.
type File struct {
	*Memory
}

var _ Backend = &File{}

// OpenFile reads the flash image at path.
func OpenFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flash image: %w", err)
	}
	return &File{Memory: NewMemory(b)}, nil
}

// Close implements io.Closer.
func (b *File) Close() error {
	return nil
}
