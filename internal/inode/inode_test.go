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

import (
	"crypto/rand"
	"testing"

	"github.com/jacobsa/memfs/internal/slab"
	"github.com/jacobsa/timeutil"
	"github.com/kylelemons/godebug/pretty"
)

func randBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

func assertBufEq(t *testing.T, want, got []byte) {
	t.Helper()
	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("buffers differ (-want +got):\n%s", diff)
	}
}

func TestSimpleWrite(t *testing.T) {
	const size = 4096*8 + 3434

	data := randBytes(size)
	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	in := New(&clock)

	n := in.Write(0, data)
	if n != size {
		t.Fatalf("Write returned %d, want %d", n, size)
	}

	buf := make([]byte, size)
	read := in.Read(0, buf)
	if read != size {
		t.Fatalf("Read returned %d, want %d", read, size)
	}

	assertBufEq(t, data, buf)

	if got := in.Size(); got != size {
		t.Fatalf("Size() = %d, want %d", got, size)
	}

	create, _, _ := in.Stat()
	if !create.Equal(clock.Now()) {
		t.Fatalf("create time %v != clock time %v", create, clock.Now())
	}
}

func TestWriteAtOffsetWithinAPage(t *testing.T) {
	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	in := New(&clock)

	data := randBytes(100)
	in.Write(50, data)

	if got := in.Size(); got != 150 {
		t.Fatalf("Size() = %d, want 150", got)
	}

	buf := make([]byte, 100)
	in.Read(50, buf)
	assertBufEq(t, data, buf)
}

func TestSizeMonotonicity(t *testing.T) {
	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	in := New(&clock)

	in.Write(0, randBytes(1000))
	if got := in.Size(); got != 1000 {
		t.Fatalf("Size() = %d, want 1000", got)
	}

	// A write entirely within the existing size must not shrink it.
	in.Write(0, randBytes(10))
	if got := in.Size(); got != 1000 {
		t.Fatalf("Size() after small write = %d, want 1000 (monotonic)", got)
	}

	in.Write(2000, randBytes(5))
	if got := in.Size(); got != 2005 {
		t.Fatalf("Size() = %d, want 2005", got)
	}
}

func TestMaxSinglyIndirectSize(t *testing.T) {
	const size = PageSize * ListSize // 1,048,576 bytes

	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	in := New(&clock)

	data := randBytes(size)
	in.Write(0, data)

	buf := make([]byte, size)
	in.Read(0, buf)
	assertBufEq(t, data, buf)
}

func TestTwoRegionWriteAcrossIndirectBoundary(t *testing.T) {
	const regionSize = 2 * PageSize * ListSize

	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	in := New(&clock)

	first := randBytes(regionSize)
	in.Write(0, first)

	secondOffset := PageSize*257*ListSize - regionSize
	second := randBytes(regionSize)
	in.Write(secondOffset, second)

	buf1 := make([]byte, regionSize)
	in.Read(0, buf1)
	assertBufEq(t, first, buf1)

	buf2 := make([]byte, regionSize)
	in.Read(secondOffset, buf2)
	assertBufEq(t, second, buf2)
}

func TestExceedingMaximumSizePanics(t *testing.T) {
	const regionSize = 2 * PageSize * ListSize

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic writing past MaxFileSize")
		}
	}()

	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	in := New(&clock)

	offset := PageSize*257*ListSize + 1 - regionSize
	in.Write(offset, randBytes(regionSize))
}

func TestReadOfNeverWrittenPageWithinSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic reading an empty page")
		}
	}()

	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	in := New(&clock)

	// Writing at a page-boundary offset extends size past page 0 without
	// ever writing page 0; reading from page 0 must then panic.
	in.Write(PageSize, randBytes(10))
	buf := make([]byte, 10)
	in.Read(0, buf)
}

func TestReadAtMaxFileSizeBoundaryPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic reading past the addressable range")
		}
	}()

	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	in := New(&clock)

	buf := make([]byte, 1)
	in.Read(MaxFileSize+1, buf)
}

func TestNewWithAllocatorSharesPageSlab(t *testing.T) {
	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	alloc := slab.New[Page](4)

	in := NewWithAllocator(&clock, alloc)
	in.Write(0, randBytes(10))

	if got := alloc.Outstanding(); got != 1 {
		t.Fatalf("slab outstanding = %d, want 1 after one page touched", got)
	}

	in2 := NewWithAllocator(&clock, alloc)
	in2.Write(0, randBytes(10))

	if got := alloc.Outstanding(); got != 2 {
		t.Fatalf("slab outstanding = %d, want 2 after two inodes touched a page", got)
	}
}

func TestCloseReturnsSlabPagesAcrossBothIndirectionLevels(t *testing.T) {
	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	alloc := slab.New[Page](4)

	in := NewWithAllocator(&clock, alloc)
	in.Write(0, randBytes(10))                         // singly-indirect page
	in.Write(PageSize*ListSize, randBytes(10))          // doubly-indirect page

	if got := alloc.Outstanding(); got != 2 {
		t.Fatalf("slab outstanding = %d, want 2 before Close", got)
	}

	in.Close()

	if got := alloc.Outstanding(); got != 0 {
		t.Fatalf("slab outstanding = %d, want 0 after Close", got)
	}
}
