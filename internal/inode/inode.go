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

// Package inode implements the paged byte-storage object that backs every
// regular file: a singly-indirect and doubly-indirect page index, lazily
// allocated, addressed the way a Unix inode addresses its data blocks.
package inode

import (
	"fmt"
	"time"

	"github.com/jacobsa/memfs/internal/slab"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// Inode is a byte-addressable content store with metadata. It must be
// created with New or NewWithAllocator; the zero value is not usable.
type Inode struct {
	clock timeutil.Clock

	// pageAlloc backs page buffers when non-nil; otherwise pages come from
	// the general heap. Inner tlists always come from the heap.
	pageAlloc *slab.Allocator[Page]

	mu syncutil.InvariantMutex

	// INVARIANT: size is one past the highest byte ever written.
	size int // GUARDED_BY(mu)

	single tlist       // GUARDED_BY(mu)
	double doubleTList  // GUARDED_BY(mu)

	createTime time.Time // GUARDED_BY(mu)
	accessTime time.Time // GUARDED_BY(mu)
	modTime    time.Time // GUARDED_BY(mu)
}

// New creates an empty inode with size zero, backed entirely by heap
// allocation for its page buffers.
func New(clock timeutil.Clock) *Inode {
	return NewWithAllocator(clock, nil)
}

// NewWithAllocator creates an empty inode whose page buffers are served
// from pageAlloc when non-nil, following the allocator-taking Proc
// constructor in the source's benchmark harness.
func NewWithAllocator(clock timeutil.Clock, pageAlloc *slab.Allocator[Page]) *Inode {
	now := clock.Now()
	in := &Inode{
		clock:      clock,
		pageAlloc:  pageAlloc,
		createTime: now,
		accessTime: now,
		modTime:    now,
	}
	in.mu = syncutil.NewInvariantMutex(in.checkInvariants)
	return in
}

func (in *Inode) checkInvariants() {
	if in.size < 0 {
		panic(fmt.Sprintf("inode: negative size %d", in.size))
	}
}

// getOrAllocPage returns the page at index num, allocating it (and, for the
// doubly-indirect range, its containing inner tlist) on first touch.
//
// LOCKS_REQUIRED(in.mu)
func (in *Inode) getOrAllocPage(num int) *Page {
	loc, ok := locate(num)
	if !ok {
		panic("Maximum file size exceeded!")
	}

	var slot **pageHandle
	if !loc.double {
		slot = &in.single[loc.innerSlot]
	} else {
		inner := in.double[loc.outerSlot]
		if inner == nil {
			inner = &tlist{}
			in.double[loc.outerSlot] = inner
		}
		slot = &inner[loc.innerSlot]
	}

	if *slot == nil {
		ph := newPageHandle(in.pageAlloc)
		*slot = &ph
	}

	return (*slot).p
}

// getPage returns the page at index num, or nil if it has never been
// written. existsRange reports whether num is even addressable; when false
// the caller panics with the read-path diagnostic ("page does not exist").
//
// LOCKS_REQUIRED(in.mu)
func (in *Inode) getPage(num int) (pg *Page, existsRange bool) {
	loc, ok := locate(num)
	if !ok {
		return nil, false
	}

	if !loc.double {
		h := in.single[loc.innerSlot]
		if h == nil {
			return nil, true
		}
		return h.p, true
	}

	inner := in.double[loc.outerSlot]
	if inner == nil {
		return nil, true
	}

	h := inner[loc.innerSlot]
	if h == nil {
		return nil, true
	}
	return h.p, true
}

// Write copies data into the inode starting at offset, allocating pages as
// needed, and returns the number of bytes written (always len(data) unless
// it would exceed MaxFileSize, in which case Write panics).
func (in *Inode) Write(offset int, data []byte) (written int) {
	in.mu.Lock()
	defer in.mu.Unlock()

	blockOffset := offset % PageSize
	start := offset / PageSize
	blocksToActOn := ceilDiv(blockOffset+len(data), PageSize)

	for i := 0; i < blocksToActOn; i++ {
		if blockOffset != 0 && i > 0 {
			blockOffset = 0
		}

		var numBytes int
		if i == blocksToActOn-1 {
			numBytes = len(data) - written
		} else {
			numBytes = PageSize - blockOffset
		}

		pg := in.getOrAllocPage(start + i)
		copy(pg[blockOffset:blockOffset+numBytes], data[written:written+numBytes])

		written += numBytes
	}

	lastByte := offset + written
	if in.size < lastByte {
		in.size = lastByte
	}

	now := in.clock.Now()
	in.modTime = now
	in.accessTime = now

	return written
}

// Read copies up to len(buf) bytes into buf starting at offset and returns
// the number of bytes read. Reading a page that was never written, while
// still within the inode's declared size, is a fatal domain error: it
// indicates the caller performed a sparse read it had no business doing.
func (in *Inode) Read(offset int, buf []byte) (read int) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	blockOffset := offset % PageSize
	start := offset / PageSize
	blocksToActOn := ceilDiv(blockOffset+len(buf), PageSize)

	for i := 0; i < blocksToActOn; i++ {
		if blockOffset != 0 && i > 0 {
			blockOffset = 0
		}

		var numBytes int
		if i == blocksToActOn-1 {
			numBytes = len(buf) - read
		} else {
			numBytes = PageSize - blockOffset
		}

		pg, existsRange := in.getPage(start + i)
		if !existsRange {
			panic("page does not exist")
		}
		if pg == nil {
			panic("Empty data.")
		}

		copy(buf[read:read+numBytes], pg[blockOffset:blockOffset+numBytes])

		read += numBytes
	}

	return read
}

// Size returns the inode's current logical size.
func (in *Inode) Size() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.size
}

// Stat returns the inode's create, access, and modify times.
func (in *Inode) Stat() (create, access, modify time.Time) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.createTime, in.accessTime, in.modTime
}

// Close returns every page this inode ever allocated to its backing
// allocator, if any. It is the inode's destructor, run by vfile's
// OnFinalRelease hook the moment the last File clone pointing at this
// inode is released — Go has no Drop, so the caller must invoke it
// explicitly rather than relying on the garbage collector to notice a
// slab slot has gone dark.
func (in *Inode) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.single {
		if h := in.single[i]; h != nil {
			h.release()
			in.single[i] = nil
		}
	}

	for i := range in.double {
		inner := in.double[i]
		if inner == nil {
			continue
		}
		for j := range inner {
			if h := inner[j]; h != nil {
				h.release()
				inner[j] = nil
			}
		}
		in.double[i] = nil
	}
}
