// Copyright 2026 The xkern Authors.
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

// Package pgalloc allocates physical page frames. It tracks main RAM, which is
// simulated by host memory, and device register windows, which are claimed by
// physical address only and never scrubbed.
//
// Every frame in use records the PID that owns it.
package pgalloc

import (
	"fmt"

	"github.com/google/btree"
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
)

// Window is a named range of physical device registers.
type Window struct {
	Name string        `toml:"name" yaml:"name"`
	Base hostarch.Addr `toml:"base" yaml:"base"`
	Size uint64        `toml:"size" yaml:"size"`
}

// frame is the allocation record of one physical page.
type frame struct {
	used bool

	// owner is the PID whose ownership records hold the page.
	owner xous.PID
}

// region is a contiguous physical range with host backing.
type region struct {
	name   string
	base   hostarch.Addr
	mem    []byte
	frames []frame
	typ    hostarch.MemoryType
}

func (r *region) addrRange() hostarch.AddrRange {
	return hostarch.AddrRange{Start: r.base, End: r.base + hostarch.Addr(len(r.mem))}
}

func (r *region) index(phys hostarch.Addr) int {
	return int((phys - r.base) >> hostarch.PageShift)
}

// Allocator is a physical frame allocator.
type Allocator struct {
	ram     region
	windows []region

	// free is the set of free RAM frame indices. Allocation always takes
	// the lowest free frame.
	free *btree.BTreeG[int]
}

// New returns an Allocator for size bytes of RAM at base and the given device
// windows. All ranges must be page aligned and must not overlap.
func New(base hostarch.Addr, size uint64, windows []Window) (*Allocator, error) {
	if !base.IsPageAligned() || !hostarch.IsPageAligned(size) || size == 0 {
		return nil, fmt.Errorf("RAM %v+%#x is not page aligned", base, size)
	}
	if _, ok := base.AddLength(size); !ok {
		return nil, fmt.Errorf("RAM %v+%#x overflows", base, size)
	}
	mem, err := mapHostMemory(size)
	if err != nil {
		return nil, err
	}
	a := &Allocator{
		ram: region{
			name:   "ram",
			base:   base,
			mem:    mem,
			frames: make([]frame, hostarch.Pages(size)),
			typ:    hostarch.MemoryTypeWriteBack,
		},
		free: btree.NewOrderedG[int](32),
	}
	for i := range a.ram.frames {
		a.free.ReplaceOrInsert(i)
	}

	seen := []hostarch.AddrRange{a.ram.addrRange()}
	for _, w := range windows {
		ar, ok := w.Base.ToRange(w.Size)
		if !ok || !ar.IsPageAligned() || w.Size == 0 {
			a.Release()
			return nil, fmt.Errorf("device window %q %v+%#x is not a valid page aligned range", w.Name, w.Base, w.Size)
		}
		for _, s := range seen {
			if s.Overlaps(ar) {
				a.Release()
				return nil, fmt.Errorf("device window %q %v overlaps %v", w.Name, ar, s)
			}
		}
		seen = append(seen, ar)
		a.windows = append(a.windows, region{
			name:   w.Name,
			base:   w.Base,
			mem:    make([]byte, w.Size),
			frames: make([]frame, hostarch.Pages(w.Size)),
			typ:    hostarch.MemoryTypeUncached,
		})
	}
	return a, nil
}

// Release returns the host memory backing RAM. The Allocator must not be used
// afterwards.
func (a *Allocator) Release() error {
	mem := a.ram.mem
	a.ram.mem = nil
	return unmapHostMemory(mem)
}

// regionFor returns the region containing phys, or nil.
func (a *Allocator) regionFor(phys hostarch.Addr) *region {
	if a.ram.addrRange().Contains(phys) {
		return &a.ram
	}
	for i := range a.windows {
		if a.windows[i].addrRange().Contains(phys) {
			return &a.windows[i]
		}
	}
	return nil
}

// lookup returns the region and frame record of page aligned phys.
func (a *Allocator) lookup(phys hostarch.Addr) (*region, *frame, error) {
	if !phys.IsPageAligned() {
		return nil, nil, kernerr.BadAlignment
	}
	r := a.regionFor(phys)
	if r == nil {
		return nil, nil, kernerr.BadAddress
	}
	return r, &r.frames[r.index(phys)], nil
}

// IsMainMemory returns true if phys lies in RAM.
func (a *Allocator) IsMainMemory(phys hostarch.Addr) bool {
	return a.ram.addrRange().Contains(phys)
}

// MemoryType returns the memory type of phys. Addresses outside every region
// are reported as uncached.
func (a *Allocator) MemoryType(phys hostarch.Addr) hostarch.MemoryType {
	if r := a.regionFor(phys); r != nil {
		return r.typ
	}
	return hostarch.MemoryTypeUncached
}

// FreeCount returns the number of free RAM frames.
func (a *Allocator) FreeCount() int {
	return a.free.Len()
}

// Allocate allocates n RAM frames for owner, lowest address first. It
// allocates all frames or none. The frames are not zeroed.
func (a *Allocator) Allocate(n int, owner xous.PID) ([]hostarch.Addr, error) {
	if n > a.free.Len() {
		return nil, kernerr.OutOfMemory
	}
	frames := make([]hostarch.Addr, 0, n)
	for len(frames) < n {
		idx, _ := a.free.DeleteMin()
		a.ram.frames[idx] = frame{used: true, owner: owner}
		frames = append(frames, a.ram.base+hostarch.Addr(idx)<<hostarch.PageShift)
	}
	return frames, nil
}

// Claim claims the n frames starting at phys for owner. The frames must all
// lie in one region and be unused. It claims all frames or none.
func (a *Allocator) Claim(phys hostarch.Addr, n int, owner xous.PID) ([]hostarch.Addr, error) {
	r, _, err := a.lookup(phys)
	if err != nil {
		return nil, err
	}
	ar, ok := phys.ToRange(uint64(n) << hostarch.PageShift)
	if !ok || !r.addrRange().IsSupersetOf(ar) {
		return nil, kernerr.BadAddress
	}
	first := r.index(phys)
	for i := first; i < first+n; i++ {
		if r.frames[i].used {
			return nil, kernerr.MemoryInUse
		}
	}
	frames := make([]hostarch.Addr, 0, n)
	for i := first; i < first+n; i++ {
		r.frames[i] = frame{used: true, owner: owner}
		if r == &a.ram {
			a.free.Delete(i)
		}
		frames = append(frames, r.base+hostarch.Addr(i)<<hostarch.PageShift)
	}
	return frames, nil
}

// Free releases the frame at phys.
func (a *Allocator) Free(phys hostarch.Addr) error {
	r, f, err := a.lookup(phys)
	if err != nil {
		return err
	}
	if !f.used {
		return kernerr.BadAddress
	}
	*f = frame{}
	if r == &a.ram {
		a.free.ReplaceOrInsert(r.index(phys))
	}
	return nil
}

// SetOwner records pid as the owner of the frame at phys.
func (a *Allocator) SetOwner(phys hostarch.Addr, pid xous.PID) error {
	_, f, err := a.lookup(phys)
	if err != nil {
		return err
	}
	if !f.used {
		return kernerr.BadAddress
	}
	f.owner = pid
	return nil
}

// Owner returns the owner of the frame at phys. ok is false if the frame is
// not in use.
func (a *Allocator) Owner(phys hostarch.Addr) (pid xous.PID, ok bool) {
	_, f, err := a.lookup(phys)
	if err != nil || !f.used {
		return 0, false
	}
	return f.owner, true
}

// Bytes returns the host memory backing the page at phys.
func (a *Allocator) Bytes(phys hostarch.Addr) ([]byte, error) {
	r, _, err := a.lookup(phys)
	if err != nil {
		return nil, err
	}
	off := uint64(phys - r.base)
	return r.mem[off : off+hostarch.PageSize], nil
}

// Zero zero-fills the RAM page at phys. Device pages are left untouched.
func (a *Allocator) Zero(phys hostarch.Addr) error {
	r, _, err := a.lookup(phys)
	if err != nil {
		return err
	}
	if !r.typ.ZeroFillable() {
		return nil
	}
	b, _ := a.Bytes(phys)
	clear(b)
	return nil
}
