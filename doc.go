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

// Package memfs implements an in-memory, single-process, POSIX-flavored
// file store: open/read/write/seek/close/unlink over a flat directory of
// paged inodes.
//
// The primary element of interest is Process, which owns a current
// directory and a descriptor table and exposes the POSIX-style API. File
// contents are addressed through a two-level (singly- and
// doubly-indirect) page index rather than a flat byte slice, so a file's
// memory footprint stays proportional to its size; see internal/inode for
// the paging math and internal/vfile for the reference-counted File
// variant shared between directory entries and open handles.
//
// This package models filesystem internals for learning purposes. It does
// not persist to disk, does not support concurrent access from multiple
// goroutines, and has no notion of permissions, symlinks, or nested
// directories.
package memfs
