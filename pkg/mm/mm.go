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

// Package mm provides the per-process virtual address spaces of the kernel.
//
// Lock order: none. The memory manager is owned by the kernel and is only
// ever used by the syscall being executed.
package mm

import (
	"fmt"

	"github.com/google/btree"
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/pgalloc"
)

// PageState describes how an address space holds a mapped page.
type PageState uint8

const (
	// Owned pages belong to the address space.
	Owned PageState = iota

	// Lent pages belong to the address space but are borrowed by another
	// process. They are inaccessible until returned.
	Lent

	// Borrowed pages belong to another address space and are held for the
	// duration of a borrow.
	Borrowed
)

func (s PageState) String() string {
	switch s {
	case Owned:
		return "Owned"
	case Lent:
		return "Lent"
	case Borrowed:
		return "Borrowed"
	default:
		return fmt.Sprintf("PageState(%d)", s)
	}
}

// PTE is a page table entry.
type PTE struct {
	Virt  hostarch.Addr
	Phys  hostarch.Addr
	Flags xous.MemoryFlags
	State PageState
}

func ptesLess(a, b PTE) bool {
	return a.Virt < b.Virt
}

// AddressSpace is the page table of a process.
type AddressSpace struct {
	pid  xous.PID
	ptes *btree.BTreeG[PTE]
}

// Config holds address space layout and limits.
type Config struct {
	// MmapBase and MmapEnd bound the addresses chosen for mappings that do
	// not ask for a specific address.
	MmapBase hostarch.Addr
	MmapEnd  hostarch.Addr

	// MaxPagesPerProcess limits the number of page table entries of one
	// address space.
	MaxPagesPerProcess int
}

// MemoryManager owns all address spaces and the physical allocator behind
// them.
type MemoryManager struct {
	conf   Config
	pa     *pgalloc.Allocator
	spaces map[xous.PID]*AddressSpace
}

// New returns a MemoryManager allocating frames from pa.
func New(conf Config, pa *pgalloc.Allocator) *MemoryManager {
	return &MemoryManager{
		conf:   conf,
		pa:     pa,
		spaces: make(map[xous.PID]*AddressSpace),
	}
}

// Allocator returns the physical allocator.
func (mm *MemoryManager) Allocator() *pgalloc.Allocator {
	return mm.pa
}

// NewAddressSpace creates an empty address space for pid.
func (mm *MemoryManager) NewAddressSpace(pid xous.PID) error {
	if _, ok := mm.spaces[pid]; ok {
		return fmt.Errorf("address space for PID %d already exists", pid)
	}
	mm.spaces[pid] = &AddressSpace{pid: pid, ptes: btree.NewG(32, ptesLess)}
	return nil
}

func (mm *MemoryManager) space(pid xous.PID) (*AddressSpace, error) {
	as, ok := mm.spaces[pid]
	if !ok {
		return nil, kernerr.ProcessNotFound
	}
	return as, nil
}

// Release tears down the address space of pid. Frames lent to or borrowed
// from another process are left to the borrow protocol.
func (mm *MemoryManager) Release(pid xous.PID) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	var ferr error
	as.ptes.Ascend(func(pte PTE) bool {
		if pte.State == Owned {
			if err := mm.pa.Free(pte.Phys); err != nil && ferr == nil {
				ferr = fmt.Errorf("freeing %v mapped at %v: %w", pte.Phys, pte.Virt, err)
			}
		}
		return true
	})
	delete(mm.spaces, pid)
	return ferr
}

// Translate returns the page table entry of the page containing virt.
func (mm *MemoryManager) Translate(pid xous.PID, virt hostarch.Addr) (PTE, bool) {
	as, ok := mm.spaces[pid]
	if !ok {
		return PTE{}, false
	}
	return as.ptes.Get(PTE{Virt: virt.RoundDown()})
}

// MappedPages returns the number of pages mapped in the address space of pid.
func (mm *MemoryManager) MappedPages(pid xous.PID) int {
	as, ok := mm.spaces[pid]
	if !ok {
		return 0
	}
	return as.ptes.Len()
}

// IsMainMemory returns true if phys is backed by RAM.
func (mm *MemoryManager) IsMainMemory(phys hostarch.Addr) bool {
	return mm.pa.IsMainMemory(phys)
}

// pagesOf returns the page addresses of r.
func pagesOf(r xous.MemoryRange) []hostarch.Addr {
	n := hostarch.Pages(r.Size)
	pages := make([]hostarch.Addr, n)
	for i := range pages {
		pages[i] = r.Base + hostarch.Addr(i)<<hostarch.PageShift
	}
	return pages
}

// checkRange validates that r is a non-empty page aligned range that does
// not wrap.
func checkRange(r xous.MemoryRange) error {
	if !r.IsPageAligned() {
		return kernerr.BadAlignment
	}
	if r.Size == 0 {
		return kernerr.BadAddress
	}
	if _, ok := r.Base.AddLength(r.Size); !ok {
		return kernerr.BadAddress
	}
	return nil
}

// findFree returns the lowest address of n free pages within the mmap area.
func (mm *MemoryManager) findFree(as *AddressSpace, n int) (hostarch.Addr, error) {
	size := uint64(n) << hostarch.PageShift
	cur := mm.conf.MmapBase
	as.ptes.AscendGreaterOrEqual(PTE{Virt: cur}, func(pte PTE) bool {
		if pte.Virt >= cur+hostarch.Addr(size) {
			return false
		}
		cur = pte.Virt + hostarch.PageSize
		return true
	})
	if end, ok := cur.AddLength(size); !ok || end > mm.conf.MmapEnd {
		return 0, kernerr.OutOfMemory
	}
	return cur, nil
}

// checkFree validates that n pages may be added at virt, or anywhere if virt
// is zero. It returns the chosen address.
func (mm *MemoryManager) checkFree(as *AddressSpace, virt hostarch.Addr, n int) (hostarch.Addr, error) {
	if mm.conf.MaxPagesPerProcess > 0 && as.ptes.Len()+n > mm.conf.MaxPagesPerProcess {
		return 0, kernerr.OutOfMemory
	}
	if virt == 0 {
		return mm.findFree(as, n)
	}
	end, ok := virt.AddLength(uint64(n) << hostarch.PageShift)
	if !ok {
		return 0, kernerr.BadAddress
	}
	inUse := false
	as.ptes.AscendRange(PTE{Virt: virt}, PTE{Virt: end}, func(PTE) bool {
		inUse = true
		return false
	})
	if inUse {
		return 0, kernerr.MemoryInUse
	}
	return virt, nil
}

// MapRange maps size bytes into the address space of pid. A zero phys
// allocates fresh, unzeroed RAM; otherwise the frames at phys are claimed,
// in RAM or in a device window. A zero virt picks the lowest free range in
// the mmap area. Either everything is mapped or nothing is.
func (mm *MemoryManager) MapRange(pid xous.PID, phys, virt hostarch.Addr, size uint64, flags xous.MemoryFlags) (xous.MemoryRange, error) {
	as, err := mm.space(pid)
	if err != nil {
		return xous.MemoryRange{}, err
	}
	if !phys.IsPageAligned() || !virt.IsPageAligned() || !hostarch.IsPageAligned(size) {
		return xous.MemoryRange{}, kernerr.BadAlignment
	}
	if size == 0 {
		return xous.MemoryRange{}, kernerr.BadAddress
	}
	n := hostarch.Pages(size)
	base, err := mm.checkFree(as, virt, n)
	if err != nil {
		return xous.MemoryRange{}, err
	}
	r := xous.MemoryRange{Base: base, Size: size}
	if err := checkRange(r); err != nil {
		return xous.MemoryRange{}, err
	}

	var frames []hostarch.Addr
	if phys == 0 {
		frames, err = mm.pa.Allocate(n, pid)
	} else {
		frames, err = mm.pa.Claim(phys, n, pid)
	}
	if err != nil {
		return xous.MemoryRange{}, err
	}
	for i, page := range pagesOf(r) {
		as.ptes.ReplaceOrInsert(PTE{Virt: page, Phys: frames[i], Flags: flags})
	}
	return r, nil
}

// ReserveRange backs the fixed range [virt, virt+size) of pid with fresh,
// zeroed RAM.
func (mm *MemoryManager) ReserveRange(pid xous.PID, virt hostarch.Addr, size uint64, flags xous.MemoryFlags) error {
	if virt == 0 {
		return kernerr.BadAddress
	}
	r, err := mm.MapRange(pid, 0, virt, size, flags)
	if err != nil {
		return err
	}
	return mm.ZeroRange(pid, r)
}

// UnmapPage removes the page at virt from the address space of pid and frees
// its frame.
func (mm *MemoryManager) UnmapPage(pid xous.PID, virt hostarch.Addr) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	if !virt.IsPageAligned() {
		return kernerr.BadAlignment
	}
	pte, ok := as.ptes.Get(PTE{Virt: virt})
	if !ok {
		return kernerr.BadAddress
	}
	if pte.State != Owned {
		return kernerr.MemoryInUse
	}
	if err := mm.pa.Free(pte.Phys); err != nil {
		return err
	}
	as.ptes.Delete(pte)
	return nil
}

// lookupRange returns the entries of r, which must all be mapped in state.
func (mm *MemoryManager) lookupRange(as *AddressSpace, r xous.MemoryRange, state PageState) ([]PTE, error) {
	if err := checkRange(r); err != nil {
		return nil, err
	}
	if hostarch.Pages(r.Size) > as.ptes.Len() {
		return nil, kernerr.BadAddress
	}
	pages := pagesOf(r)
	ptes := make([]PTE, 0, len(pages))
	for _, page := range pages {
		pte, ok := as.ptes.Get(PTE{Virt: page})
		if !ok {
			return nil, kernerr.BadAddress
		}
		if pte.State != state {
			return nil, kernerr.MemoryInUse
		}
		ptes = append(ptes, pte)
	}
	return ptes, nil
}

// UnmapRange removes every page of r from the address space of pid. Nothing
// is removed unless every page is mapped and owned.
func (mm *MemoryManager) UnmapRange(pid xous.PID, r xous.MemoryRange) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	ptes, err := mm.lookupRange(as, r, Owned)
	if err != nil {
		return err
	}
	for _, pte := range ptes {
		if err := mm.pa.Free(pte.Phys); err != nil {
			return err
		}
		as.ptes.Delete(pte)
	}
	return nil
}

// ZeroRange zero-fills the RAM pages of r. Device pages are not touched.
func (mm *MemoryManager) ZeroRange(pid xous.PID, r xous.MemoryRange) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	ptes, err := mm.lookupRange(as, r, Owned)
	if err != nil {
		return err
	}
	for _, pte := range ptes {
		if err := mm.pa.Zero(pte.Phys); err != nil {
			return err
		}
	}
	return nil
}

// HandPageToUser records pid as the owner of the frame mapped at virt.
func (mm *MemoryManager) HandPageToUser(pid xous.PID, virt hostarch.Addr) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	pte, ok := as.ptes.Get(PTE{Virt: virt})
	if !ok {
		return kernerr.BadAddress
	}
	return mm.pa.SetOwner(pte.Phys, pid)
}
