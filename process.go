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

package memfs

import (
	"fmt"
	"time"

	"github.com/jacobsa/memfs/internal/inode"
	"github.com/jacobsa/memfs/internal/slab"
	"github.com/jacobsa/memfs/internal/vfile"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// Process is the top-level client object: it owns a current directory and
// a descriptor table, and exposes the open/read/write/seek/close/unlink
// API described in the package doc comment.
//
// A Process is not safe for concurrent use from multiple goroutines — see
// the package-level Non-goals. Its InvariantMutex checks the descriptor
// accounting on every lock and unlock; it does not detect re-entrant
// locking, and a second Lock from a goroutine already holding it blocks
// rather than panics.
type Process struct {
	clock timeutil.Clock

	// pageAlloc backs every Inode this Process creates, when non-nil.
	pageAlloc *slab.Allocator[inode.Page]

	mu syncutil.InvariantMutex

	// cwd is always the Directory variant.
	//
	// GUARDED_BY(mu)
	cwd vfile.File

	// GUARDED_BY(mu)
	fdTable map[FileDescriptor]*vfile.FileHandle

	// free holds descriptors 3..MaxFDs not currently present in fdTable, in
	// LIFO order: the most recently closed descriptor is handed out next.
	//
	// INVARIANT: every descriptor in fdTable is absent from free and vice
	// versa; the union is {3..MaxFDs}.
	//
	// GUARDED_BY(mu)
	free []FileDescriptor
}

// NewProcess creates a Process with an empty current directory, backing
// every Inode's pages with ordinary heap allocation.
func NewProcess() *Process {
	return NewProcessWithClockAndSlab(timeutil.RealClock(), nil)
}

// NewProcessWithSlab creates a Process whose Inodes serve page buffers
// from pageAlloc, following the allocator-taking constructor seen in the
// source's benchmark harness (see SPEC_FULL.md §4.1).
func NewProcessWithSlab(pageAlloc *slab.Allocator[inode.Page]) *Process {
	return NewProcessWithClockAndSlab(timeutil.RealClock(), pageAlloc)
}

// NewProcessWithClockAndSlab is the fully-parameterized constructor used
// directly by tests that need a deterministic clock.
func NewProcessWithClockAndSlab(clock timeutil.Clock, pageAlloc *slab.Allocator[inode.Page]) *Process {
	p := &Process{
		clock:     clock,
		pageAlloc: pageAlloc,
		cwd:       vfile.NewDir(nil),
		fdTable:   make(map[FileDescriptor]*vfile.FileHandle),
	}
	p.free = make([]FileDescriptor, 0, MaxFDs-2)
	for fd := FileDescriptor(3); fd <= MaxFDs; fd++ {
		p.free = append(p.free, fd)
	}
	p.mu = syncutil.NewInvariantMutex(p.checkInvariants)

	return p
}

func (p *Process) checkInvariants() {
	if len(p.fdTable)+len(p.free) != MaxFDs-2 {
		panic(fmt.Sprintf(
			"memfs: descriptor accounting broken: %d open + %d free != %d",
			len(p.fdTable), len(p.free), MaxFDs-2))
	}
}

// popFD pops the next descriptor from the free pool, LIFO. It panics if the
// pool is exhausted — descriptor exhaustion is a fatal condition per
// SPEC_FULL.md §7.
//
// LOCKS_REQUIRED(p.mu)
func (p *Process) popFD() FileDescriptor {
	n := len(p.free)
	if n == 0 {
		panic("memfs: descriptor table exhausted")
	}

	fd := p.free[n-1]
	p.free = p.free[:n-1]
	return fd
}

// pushFD returns fd to the free pool.
//
// LOCKS_REQUIRED(p.mu)
func (p *Process) pushFD(fd FileDescriptor) {
	p.free = append(p.free, fd)
}

func (p *Process) newInode() *inode.Inode {
	return inode.NewWithAllocator(p.clock, p.pageAlloc)
}

// Open looks path up in the current directory. If it names a DataFile, a
// new handle is installed and its descriptor returned. If it names a
// Directory, ErrIsDirectory (-1) is returned. If it is absent: when flags
// has O_CREAT set, a fresh, empty file is created, inserted, and opened;
// otherwise ErrNotFound (-2) is returned.
func (p *Process) Open(path string, flags OpenFlag) FileDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := p.cwd.DirRef()

	file, ok := dir.Get(path)
	if !ok {
		if flags&O_CREAT == 0 {
			return ErrNotFound
		}

		in := p.newInode()
		file = vfile.NewDataFile(in)
		file.OnFinalRelease(in.Close)
		dir.Insert(path, file.Clone())
	}

	if file.IsDir() {
		file.Release()
		return ErrIsDirectory
	}

	fd := p.popFD()
	p.fdTable[fd] = vfile.NewHandle(file)

	getLogger().Printf("open(%q, %#x) -> fd %d", path, flags, fd)

	return fd
}

// handle looks fd up in the descriptor table. Using an unknown fd is a
// programming error and is fatal.
//
// LOCKS_REQUIRED(p.mu)
func (p *Process) handle(fd FileDescriptor) *vfile.FileHandle {
	h, ok := p.fdTable[fd]
	if !ok {
		panic(fmt.Sprintf("memfs: unknown file descriptor %d", fd))
	}
	return h
}

// Read reads into buf from fd at its current cursor, advancing the cursor,
// and returns the number of bytes read.
func (p *Process) Read(fd FileDescriptor, buf []byte) int {
	p.mu.Lock()
	h := p.handle(fd)
	p.mu.Unlock()

	return h.Read(buf)
}

// Write writes buf to fd at its current cursor, advancing the cursor, and
// returns the number of bytes written.
func (p *Process) Write(fd FileDescriptor, buf []byte) int {
	p.mu.Lock()
	h := p.handle(fd)
	p.mu.Unlock()

	return h.Write(buf)
}

// Seek repositions fd's cursor relative to whence and returns the new
// cursor.
func (p *Process) Seek(fd FileDescriptor, offset int, whence vfile.Whence) int {
	p.mu.Lock()
	h := p.handle(fd)
	p.mu.Unlock()

	return h.Seek(offset, whence)
}

// Close removes fd from the descriptor table, releasing its reference to
// the underlying file, and returns the descriptor to the free pool.
func (p *Process) Close(fd FileDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.handle(fd)
	delete(p.fdTable, fd)
	p.pushFD(fd)

	h.Close()
}

// Unlink removes the directory entry for path, if any. It is a no-op if
// path is absent. Open handles referencing the same file are unaffected:
// the underlying Inode lives on until its last reference is released.
func (p *Process) Unlink(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cwd.DirRef().Remove(path)
}

// Mkdir installs an empty Directory entry under name in the current
// directory, returning false if name is already present. This does not
// change the Process's current directory or introduce a nested hierarchy
// — both remain out of scope (see SPEC_FULL.md §11) — it only makes
// Directory entries reachable by Open so that scenario 5 of the testable
// properties (opening a directory returns -1) is exercisable.
func (p *Process) Mkdir(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := p.cwd.DirRef()
	if existing, ok := dir.Get(name); ok {
		existing.Release()
		return false
	}

	dir.Insert(name, vfile.NewDir(&p.cwd))
	return true
}

// Readdir lists the names of every entry in the current directory, in
// unspecified order.
func (p *Process) Readdir() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cwd.DirRef().Names()
}

// Stat reports whether path exists and, if so, its size and timestamps.
// It does not consume a descriptor. isDir is true when path names a
// Directory, in which case size and the timestamps are zero values.
func (p *Process) Stat(path string) (size int, create, access, modify time.Time, isDir, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	file, found := p.cwd.DirRef().Get(path)
	if !found {
		return 0, time.Time{}, time.Time{}, time.Time{}, false, false
	}
	defer file.Release()

	if file.IsDir() {
		return 0, time.Time{}, time.Time{}, time.Time{}, true, true
	}

	in := file.InodeRef()
	create, access, modify = in.Stat()
	return in.Size(), create, access, modify, false, true
}

// Stats reports the slab allocator's outstanding/capacity counters backing
// this Process's Inodes, or the zero value if it was constructed without
// one.
func (p *Process) Stats() slab.Stats {
	if p.pageAlloc == nil {
		return slab.Stats{}
	}
	return p.pageAlloc.Stat()
}
