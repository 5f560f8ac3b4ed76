// Copyright 2024 The Memfs Authors.
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

package vfile

import (
	"fmt"
	"sync"
)

// Whence selects the origin a Seek offset is relative to.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// FileHandle is open-file state: a File (guaranteed DataFile) plus a
// non-negative seek cursor. FileHandle takes ownership of the File
// reference passed to NewHandle; the caller must not also release it.
type FileHandle struct {
	mu     sync.Mutex
	file   File
	cursor int // GUARDED_BY(mu)
}

// NewHandle creates a FileHandle over file (which must be a DataFile) with
// the cursor positioned at zero.
func NewHandle(file File) *FileHandle {
	if !file.IsDataFile() {
		panic("vfile: NewHandle requires a DataFile")
	}
	return &FileHandle{file: file}
}

// Read reads from the underlying inode at the current cursor and advances
// the cursor by the number of bytes read.
func (h *FileHandle) Read(buf []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.file.InodeRef().Read(h.cursor, buf)
	h.cursor += n
	return n
}

// Write writes to the underlying inode at the current cursor and advances
// the cursor by the number of bytes written.
func (h *FileHandle) Write(buf []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.file.InodeRef().Write(h.cursor, buf)
	h.cursor += n
	return n
}

// Seek repositions the cursor relative to whence and returns the new
// cursor. A resulting negative cursor is a fatal misuse.
func (h *FileHandle) Seek(offset int, whence Whence) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var next int
	switch whence {
	case SeekSet:
		next = offset
	case SeekCur:
		next = h.cursor + offset
	case SeekEnd:
		next = h.file.InodeRef().Size() + offset
	default:
		panic(fmt.Sprintf("vfile: unknown whence %d", whence))
	}

	if next < 0 {
		panic(fmt.Sprintf("vfile: seek produced negative cursor %d", next))
	}

	h.cursor = next
	return h.cursor
}

// Close releases the handle's reference to its underlying File. After
// Close, the handle must not be used again.
func (h *FileHandle) Close() {
	h.mu.Lock()
	file := h.file
	h.file = File{}
	h.mu.Unlock()

	file.Release()
}
