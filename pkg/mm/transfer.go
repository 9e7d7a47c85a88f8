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

package mm

import (
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
)

// Transfer describes frames in flight between two address spaces.
type Transfer struct {
	// Frames are the physical pages, in address order.
	Frames []hostarch.Addr

	// Origin is the range the frames came from in the sending process.
	Origin xous.MemoryRange

	// Flags are the sender's page flags.
	Flags xous.MemoryFlags
}

// CheckOwned validates that every page of r is mapped and owned by pid, so
// that it may be lent or moved.
func (mm *MemoryManager) CheckOwned(pid xous.PID, r xous.MemoryRange) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	_, err = mm.lookupRange(as, r, Owned)
	return err
}

func transferOf(r xous.MemoryRange, ptes []PTE) Transfer {
	t := Transfer{Origin: r, Flags: ptes[0].Flags}
	for _, pte := range ptes {
		t.Frames = append(t.Frames, pte.Phys)
	}
	return t
}

// Lend marks r as lent. The pages stay mapped in pid but are inaccessible
// until Unlend.
func (mm *MemoryManager) Lend(pid xous.PID, r xous.MemoryRange) (Transfer, error) {
	as, err := mm.space(pid)
	if err != nil {
		return Transfer{}, err
	}
	ptes, err := mm.lookupRange(as, r, Owned)
	if err != nil {
		return Transfer{}, err
	}
	for _, pte := range ptes {
		pte.State = Lent
		as.ptes.ReplaceOrInsert(pte)
	}
	return transferOf(r, ptes), nil
}

// Unlend ends a loan: the pages of r are accessible to pid again and its
// ownership records are restored.
func (mm *MemoryManager) Unlend(pid xous.PID, r xous.MemoryRange) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	ptes, err := mm.lookupRange(as, r, Lent)
	if err != nil {
		return err
	}
	for _, pte := range ptes {
		pte.State = Owned
		as.ptes.ReplaceOrInsert(pte)
		if err := mm.pa.SetOwner(pte.Phys, pid); err != nil {
			return err
		}
	}
	return nil
}

// Detach removes r from pid without freeing its frames, for a move.
func (mm *MemoryManager) Detach(pid xous.PID, r xous.MemoryRange) (Transfer, error) {
	as, err := mm.space(pid)
	if err != nil {
		return Transfer{}, err
	}
	ptes, err := mm.lookupRange(as, r, Owned)
	if err != nil {
		return Transfer{}, err
	}
	for _, pte := range ptes {
		as.ptes.Delete(pte)
	}
	return transferOf(r, ptes), nil
}

// CheckAttach validates that n pages could be attached to pid.
func (mm *MemoryManager) CheckAttach(pid xous.PID, n int) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	_, err = mm.checkFree(as, 0, n)
	return err
}

// Attach maps the frames of t into pid at the lowest free address of the
// mmap area and records pid as their owner. A borrowed attachment keeps its
// pages in the Borrowed state; an immutable one also drops write access.
func (mm *MemoryManager) Attach(pid xous.PID, t Transfer, kind xous.MessageKind) (xous.MemoryRange, error) {
	as, err := mm.space(pid)
	if err != nil {
		return xous.MemoryRange{}, err
	}
	base, err := mm.checkFree(as, 0, len(t.Frames))
	if err != nil {
		return xous.MemoryRange{}, err
	}
	state, flags := Owned, t.Flags
	switch kind {
	case xous.MutableBorrow:
		state = Borrowed
	case xous.ImmutableBorrow:
		state = Borrowed
		flags &^= xous.MemoryWrite
	}
	r := xous.MemoryRange{Base: base, Size: uint64(len(t.Frames)) << hostarch.PageShift}
	for i, page := range pagesOf(r) {
		as.ptes.ReplaceOrInsert(PTE{Virt: page, Phys: t.Frames[i], Flags: flags, State: state})
		if err := mm.pa.SetOwner(t.Frames[i], pid); err != nil {
			return xous.MemoryRange{}, err
		}
	}
	return r, nil
}

// Unattach removes the borrowed range r from pid and returns its frames.
func (mm *MemoryManager) Unattach(pid xous.PID, r xous.MemoryRange) ([]hostarch.Addr, error) {
	as, err := mm.space(pid)
	if err != nil {
		return nil, err
	}
	ptes, err := mm.lookupRange(as, r, Borrowed)
	if err != nil {
		return nil, err
	}
	frames := make([]hostarch.Addr, 0, len(ptes))
	for _, pte := range ptes {
		as.ptes.Delete(pte)
		frames = append(frames, pte.Phys)
	}
	return frames, nil
}

// FreeFrames frees frames that no address space maps any more, such as those
// of a move that was never delivered.
func (mm *MemoryManager) FreeFrames(frames []hostarch.Addr) error {
	for _, phys := range frames {
		if err := mm.pa.Free(phys); err != nil {
			return err
		}
	}
	return nil
}

// access walks the pages covering [addr, addr+n), checking that each is
// accessible with want, and calls fn with the host bytes of each piece.
func (mm *MemoryManager) access(pid xous.PID, addr hostarch.Addr, n int, want xous.MemoryFlags, fn func(off int, b []byte)) error {
	as, err := mm.space(pid)
	if err != nil {
		return err
	}
	end, ok := addr.AddLength(uint64(n))
	if !ok {
		return kernerr.BadAddress
	}
	type piece struct {
		off int
		b   []byte
	}
	var pieces []piece
	for cur := addr; cur < end; {
		pte, ok := as.ptes.Get(PTE{Virt: cur.RoundDown()})
		if !ok {
			return kernerr.BadAddress
		}
		if pte.State == Lent || pte.Flags&want != want {
			return kernerr.AccessDenied
		}
		page, err := mm.pa.Bytes(pte.Phys)
		if err != nil {
			return err
		}
		start := int(cur.PageOffset())
		stop := hostarch.PageSize
		if next := cur.RoundDown() + hostarch.PageSize; next > end {
			stop = start + int(end-cur)
		}
		pieces = append(pieces, piece{off: int(cur - addr), b: page[start:stop]})
		cur += hostarch.Addr(stop - start)
	}
	for _, p := range pieces {
		fn(p.off, p.b)
	}
	return nil
}

// ReadAt copies len(dst) bytes at addr in pid into dst. It fails without
// copying anything if any page is unmapped, lent or not readable.
func (mm *MemoryManager) ReadAt(pid xous.PID, addr hostarch.Addr, dst []byte) error {
	return mm.access(pid, addr, len(dst), xous.MemoryRead, func(off int, b []byte) {
		copy(dst[off:], b)
	})
}

// WriteAt copies src to addr in pid. It fails without writing anything if
// any page is unmapped, lent or not writable.
func (mm *MemoryManager) WriteAt(pid xous.PID, addr hostarch.Addr, src []byte) error {
	return mm.access(pid, addr, len(src), xous.MemoryWrite, func(off int, b []byte) {
		copy(b, src[off:])
	})
}

// Reader returns a xous.MemoryReader over the address space of pid.
func (mm *MemoryManager) Reader(pid xous.PID) xous.MemoryReader {
	return processMemory{mm: mm, pid: pid}
}

type processMemory struct {
	mm  *MemoryManager
	pid xous.PID
}

// ReadAt implements xous.MemoryReader.ReadAt.
func (p processMemory) ReadAt(addr hostarch.Addr, dst []byte) error {
	return p.mm.ReadAt(p.pid, addr, dst)
}
