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

// Package vfile implements the File tagged variant shared between directory
// entries and open handles, the DirectoryContent it can wrap, and the
// FileHandle that layers a seek cursor over it.
package vfile

import (
	"fmt"
	"sync"

	"github.com/jacobsa/memfs/internal/inode"
)

// Kind discriminates the payload a File wraps.
type Kind int

const (
	// Empty carries no payload. It is only ever produced by a failed
	// directory lookup; it is never installed as a directory entry.
	Empty Kind = iota
	DataFile
	Directory
)

// core is the shared, reference-counted referent behind every clone of a
// File. Exactly one core backs a given inode or directory's worth of
// clones; two Files compare equal by referent identity iff they share a
// core.
type core struct {
	mu sync.Mutex

	// refs is the number of live File clones pointing at this core.
	//
	// GUARDED_BY(mu)
	refs int

	in  *inode.Inode
	dir *DirectoryContent

	// onFinalRelease, if non-nil, runs exactly once, the moment refs drops
	// to zero. Process.Open uses it to run Inode.Close as the payload's
	// destructor; tests use it to observe that the destructor ran.
	onFinalRelease func()
}

// File is a cheap, cloneable shared reference to a DataFile's Inode, a
// Directory's DirectoryContent, or nothing (Empty). The zero value is
// Empty.
type File struct {
	kind Kind
	c    *core
}

// NewDataFile wraps in in a new File with an initial reference count of
// one. The caller owns that reference and must eventually release it
// (directly, or by handing the File to something that will, such as a
// FileHandle or a DirectoryContent entry).
func NewDataFile(in *inode.Inode) File {
	return File{kind: DataFile, c: &core{refs: 1, in: in}}
}

// NewDir wraps a fresh, empty DirectoryContent in a new File with an
// initial reference count of one. parent is accepted for interface
// symmetry with the source's File::new_dir but unused: this spec does not
// install "." or ".." entries.
func NewDir(parent *File) File {
	_ = parent
	return File{kind: Directory, c: &core{refs: 1, dir: newDirectoryContent()}}
}

// IsEmpty reports whether f is the Empty variant.
func (f File) IsEmpty() bool { return f.kind == Empty }

// IsDir reports whether f is the Directory variant.
func (f File) IsDir() bool { return f.kind == Directory }

// IsDataFile reports whether f is the DataFile variant.
func (f File) IsDataFile() bool { return f.kind == DataFile }

// SameReferent reports whether f and g are clones of the same underlying
// payload.
func (f File) SameReferent(g File) bool {
	return f.kind != Empty && f.c == g.c
}

// OnFinalRelease registers a callback to run exactly once, when the last
// clone of f is released. It must be called before any clone of f is made
// or released, and only makes sense for non-Empty Files.
func (f File) OnFinalRelease(fn func()) {
	if f.kind == Empty {
		panic("vfile: OnFinalRelease called on Empty file")
	}
	f.c.onFinalRelease = fn
}

// Clone returns a new File sharing f's referent, bumping its reference
// count. Cloning never clones the payload itself. Cloning Empty returns
// Empty.
func (f File) Clone() File {
	if f.kind == Empty {
		return f
	}

	f.c.mu.Lock()
	f.c.refs++
	f.c.mu.Unlock()

	return File{kind: f.kind, c: f.c}
}

// Release drops this File's reference to its referent. Once the last
// clone is released, the payload is detached from the core (allowing the
// garbage collector to reclaim it) and any registered OnFinalRelease
// callback runs exactly once. Releasing Empty is a no-op.
func (f File) Release() {
	if f.kind == Empty {
		return
	}

	f.c.mu.Lock()
	if f.c.refs <= 0 {
		f.c.mu.Unlock()
		panic("vfile: over-release of file referent")
	}
	f.c.refs--
	last := f.c.refs == 0
	var onFinal func()
	if last {
		onFinal = f.c.onFinalRelease
		f.c.in = nil
		f.c.dir = nil
	}
	f.c.mu.Unlock()

	if last && onFinal != nil {
		onFinal()
	}
}

// InodeRef returns the underlying Inode. It panics if f is not a DataFile.
func (f File) InodeRef() *inode.Inode {
	if f.kind != DataFile {
		panic(fmt.Sprintf("vfile: InodeRef called on non-data-file (kind %d)", f.kind))
	}
	return f.c.in
}

// DirRef returns the underlying DirectoryContent. It panics if f is not a
// Directory.
func (f File) DirRef() *DirectoryContent {
	if f.kind != Directory {
		panic(fmt.Sprintf("vfile: DirRef called on non-directory (kind %d)", f.kind))
	}
	return f.c.dir
}
