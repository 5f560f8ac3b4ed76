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
	"testing"

	"github.com/jacobsa/memfs/internal/inode"
	"github.com/jacobsa/timeutil"
)

func newTestInode() *inode.Inode {
	var clock timeutil.SimulatedClock
	clock.SetTime(timeutil.RealClock().Now())
	return inode.New(&clock)
}

func TestCloneSharesReferentAndComparesEqual(t *testing.T) {
	f := NewDataFile(newTestInode())
	g := f.Clone()

	if !f.SameReferent(g) {
		t.Fatalf("clone does not share referent")
	}

	f.Release()
	g.Release()
}

func TestReleaseRunsFinalizerExactlyOnce(t *testing.T) {
	f := NewDataFile(newTestInode())

	var count int
	f.OnFinalRelease(func() { count++ })

	g := f.Clone()
	f.Release()
	if count != 0 {
		t.Fatalf("finalizer ran before last release: count=%d", count)
	}

	g.Release()
	if count != 1 {
		t.Fatalf("finalizer ran %d times, want exactly 1", count)
	}
}

func TestOverReleasePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on over-release")
		}
	}()

	f := NewDataFile(newTestInode())
	f.Release()
	f.Release()
}

func TestInodeRefOnDirectoryPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic calling InodeRef on a directory")
		}
	}()

	d := NewDir(nil)
	d.InodeRef()
}

func TestDirRefOnDataFilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic calling DirRef on a data file")
		}
	}()

	f := NewDataFile(newTestInode())
	f.DirRef()
}

func TestEmptyFileReleaseIsNoOp(t *testing.T) {
	var empty File
	empty.Release() // must not panic
	if !empty.IsEmpty() {
		t.Fatalf("zero value File is not Empty")
	}
}

func TestDirectoryInsertGetRemove(t *testing.T) {
	d := NewDir(nil)

	child := NewDataFile(newTestInode())
	d.DirRef().Insert("a", child)

	got, ok := d.DirRef().Get("a")
	if !ok {
		t.Fatalf("Get(\"a\") not found after Insert")
	}
	if !got.SameReferent(child) {
		t.Fatalf("Get returned a different referent than inserted")
	}
	got.Release() // release the clone Get handed us

	if _, ok := d.DirRef().Get("missing"); ok {
		t.Fatalf("Get(\"missing\") unexpectedly found")
	}

	d.DirRef().Remove("a")
	if _, ok := d.DirRef().Get("a"); ok {
		t.Fatalf("entry still present after Remove")
	}

	// Removing an absent entry is a no-op.
	d.DirRef().Remove("a")
}

func TestDirectoryInsertReplacesAndReleasesOld(t *testing.T) {
	d := NewDir(nil)

	var oldReleased bool
	old := NewDataFile(newTestInode())
	old.OnFinalRelease(func() { oldReleased = true })
	d.DirRef().Insert("a", old)

	newer := NewDataFile(newTestInode())
	d.DirRef().Insert("a", newer)

	if !oldReleased {
		t.Fatalf("replaced entry was not released")
	}

	got, _ := d.DirRef().Get("a")
	if !got.SameReferent(newer) {
		t.Fatalf("Get returned the replaced entry, not the new one")
	}
	got.Release()
}

func TestDirectoryNames(t *testing.T) {
	d := NewDir(nil)
	d.DirRef().Insert("a", NewDataFile(newTestInode()))
	d.DirRef().Insert("b", NewDataFile(newTestInode()))

	names := d.DirRef().Names()
	if len(names) != 2 {
		t.Fatalf("Names() returned %d entries, want 2", len(names))
	}
}
