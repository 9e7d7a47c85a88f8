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

package kernel

import (
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
)

// IncreaseHeap grows the heap of t by delta bytes of zeroed memory mapped
// with flags.
func (t *Task) IncreaseHeap(delta uint64, flags xous.MemoryFlags) error {
	if !hostarch.IsPageAligned(delta) {
		return kernerr.BadAlignment
	}
	p := t.Process()
	if delta == 0 {
		return nil
	}
	if delta > p.heapMax-p.heapSize {
		return kernerr.OutOfMemory
	}
	top := p.heapBase + hostarch.Addr(p.heapSize)
	if err := t.k.mm.ReserveRange(p.pid, top, delta, flags); err != nil {
		return err
	}
	p.heapSize += delta
	return nil
}

// DecreaseHeap shrinks the heap of t by delta bytes, unmapping its top
// pages.
func (t *Task) DecreaseHeap(delta uint64) error {
	if !hostarch.IsPageAligned(delta) {
		return kernerr.BadAlignment
	}
	p := t.Process()
	if delta == 0 {
		return nil
	}
	if delta > p.heapSize {
		return kernerr.OutOfMemory
	}
	top := p.heapBase + hostarch.Addr(p.heapSize-delta)
	err := t.k.mm.UnmapRange(p.pid, xous.MemoryRange{Base: top, Size: delta})
	if err == kernerr.MemoryInUse {
		// Part of the heap is lent out.
		return err
	}
	if err != nil {
		t.k.Fatalf("unmapping heap %v+%#x of PID%d: %v", top, delta, p.pid, err)
	}
	p.heapSize -= delta
	return nil
}

// CheckOutsideHeap returns BadAddress if r intersects the heap of t. Heap
// pages leave the process only through DecreaseHeap.
func (t *Task) CheckOutsideHeap(r xous.MemoryRange) error {
	p := t.Process()
	if p.heapSize == 0 {
		return nil
	}
	heap := xous.MemoryRange{Base: p.heapBase, Size: p.heapSize}.AddrRange()
	ar, ok := r.Base.ToRange(r.Size)
	if !ok {
		ar.End = ^hostarch.Addr(0)
	}
	if heap.Overlaps(ar) {
		return kernerr.BadAddress
	}
	return nil
}
