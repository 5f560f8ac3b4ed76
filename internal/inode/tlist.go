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

package inode

import "github.com/jacobsa/memfs/internal/slab"

const (
	// PageSize is the size in bytes of a single page of inode content.
	PageSize = 4096

	// ListSize is the fixed capacity of a TList: the number of slots in
	// both the singly- and doubly-indirect block index.
	ListSize = 256

	// MaxFileSize is the largest offset (exclusive) a page index can address:
	// PageSize * ListSize direct bytes, plus PageSize * ListSize^2 indirect
	// bytes.
	MaxFileSize = PageSize*ListSize + PageSize*ListSize*ListSize
)

// Page is a single fixed-size content buffer. New pages are zero-filled,
// but the inode gives no meaning to bytes it has not written. It is
// exported so that callers of NewWithAllocator can share a single
// slab.Allocator[Page] across many Inodes.
type Page [PageSize]byte

// pageHandle is either a heap-owned page or a slab-owned one; both satisfy
// the same access pattern (a *Page), so Inode doesn't need to care which.
type pageHandle struct {
	p *Page
	h *slab.CountedHandle[Page] // nil when not slab-backed
}

func newPageHandle(alloc *slab.Allocator[Page]) pageHandle {
	if alloc == nil {
		return pageHandle{p: &Page{}}
	}

	h := alloc.Alloc(Page{})
	return pageHandle{p: h.Value(), h: h}
}

func (ph pageHandle) release() {
	if ph.h != nil {
		ph.h.Release()
	}
}

// tlist is a fixed-capacity array of ListSize optional slots, used as both
// the singly-indirect and (one level of) the doubly-indirect block index.
type tlist [ListSize]*pageHandle

// doubleTList is the doubly-indirect index: ListSize slots, each lazily
// pointing at its own inner tlist.
type doubleTList [ListSize]*tlist

func ceilDiv(x, y int) int {
	return (x + y - 1) / y
}

// pageLocation describes where page number n lives in the two-level index.
type pageLocation struct {
	double    bool
	outerSlot int // valid only if double
	innerSlot int
}

// locate computes the location of page n. ok is false when n lies at or past
// MaxFileSize / PageSize; the caller then panics with a context-appropriate
// message (write vs. read use different diagnostics).
func locate(n int) (loc pageLocation, ok bool) {
	if n >= ListSize+ListSize*ListSize {
		return pageLocation{}, false
	}

	if n < ListSize {
		return pageLocation{double: false, innerSlot: n}, true
	}

	doubleEntry := n - ListSize
	return pageLocation{
		double:    true,
		outerSlot: doubleEntry / ListSize,
		innerSlot: doubleEntry % ListSize,
	}, true
}
