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

import "github.com/jacobsa/syncutil"

// DirectoryContent is a mapping from name to File. Keys are unique;
// insertion order is irrelevant. No "." or ".." entries are installed by
// this package.
type DirectoryContent struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	entries map[string]File
}

// newDirectoryContent creates an empty, ready-to-use DirectoryContent.
func newDirectoryContent() *DirectoryContent {
	d := &DirectoryContent{entries: make(map[string]File)}
	d.mu = syncutil.NewInvariantMutex(d.checkInvariants)
	return d
}

func (d *DirectoryContent) checkInvariants() {
	// No structural invariant beyond "entries is a valid map", which the
	// Go type system already guarantees.
}

// Insert installs file under name, releasing any entry it replaces. The
// DirectoryContent takes ownership of the reference embodied by file; the
// caller must not also release it.
func (d *DirectoryContent) Insert(name string, file File) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.entries[name]; ok {
		old.Release()
	}
	d.entries[name] = file
}

// Remove deletes the entry for name, if any, releasing the
// DirectoryContent's reference to it. It is a no-op if name is absent.
func (d *DirectoryContent) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	old, ok := d.entries[name]
	if !ok {
		return
	}
	delete(d.entries, name)
	old.Release()
}

// Get returns a clone of the File stored under name, or (Empty, false) if
// absent. The returned File is a new, independently-owned reference.
func (d *DirectoryContent) Get(name string) (File, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	f, ok := d.entries[name]
	if !ok {
		return File{}, false
	}
	return f.Clone(), true
}

// Names returns the names of every entry, in unspecified order.
func (d *DirectoryContent) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	return names
}
