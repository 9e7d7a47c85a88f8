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
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/pgalloc"
)

const (
	page     = hostarch.PageSize
	ramBase  = hostarch.Addr(0x4000_0000)
	mmapBase = hostarch.Addr(0x6000_0000)
)

func newTestMM(t *testing.T, pages int, pids ...xous.PID) *MemoryManager {
	t.Helper()
	pa, err := pgalloc.New(ramBase, uint64(pages)*page, nil)
	if err != nil {
		t.Fatalf("pgalloc.New failed: %v", err)
	}
	t.Cleanup(func() { pa.Release() })
	mm := New(Config{MmapBase: mmapBase, MmapEnd: mmapBase + 0x100000, MaxPagesPerProcess: 16}, pa)
	for _, pid := range pids {
		if err := mm.NewAddressSpace(pid); err != nil {
			t.Fatalf("NewAddressSpace(%d) failed: %v", pid, err)
		}
	}
	return mm
}

func TestMapRangePicksLowestFreeAddress(t *testing.T) {
	mm := newTestMM(t, 8, 2)
	first, err := mm.MapRange(2, 0, 0, 2*page, xous.MemoryReadWrite)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	if _, err := mm.MapRange(2, 0, mmapBase+3*page, page, xous.MemoryReadWrite); err != nil {
		t.Fatalf("MapRange at fixed address failed: %v", err)
	}
	if err := mm.UnmapRange(2, first); err != nil {
		t.Fatalf("UnmapRange failed: %v", err)
	}
	// A one page hole at the start fits; a three page mapping must go past
	// the fixed page.
	small, err := mm.MapRange(2, 0, 0, page, xous.MemoryRead)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	big, err := mm.MapRange(2, 0, 0, 3*page, xous.MemoryRead)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	want := []xous.MemoryRange{
		{Base: mmapBase, Size: page},
		{Base: mmapBase + 4*page, Size: 3 * page},
	}
	if diff := cmp.Diff(want, []xous.MemoryRange{small, big}); diff != "" {
		t.Errorf("placement mismatch (-want +got):\n%s", diff)
	}
}

func TestMapRangeErrorsLeaveNoTrace(t *testing.T) {
	mm := newTestMM(t, 2, 2)
	for _, tc := range []struct {
		name string
		phys hostarch.Addr
		virt hostarch.Addr
		size uint64
		want error
	}{
		{"unaligned size", 0, 0, page + 1, kernerr.BadAlignment},
		{"unaligned virt", 0, mmapBase + 1, page, kernerr.BadAlignment},
		{"zero size", 0, 0, 0, kernerr.BadAddress},
		{"no frames", 0, 0, 3 * page, kernerr.OutOfMemory},
		{"unbacked phys", 0x1000, 0, page, kernerr.BadAddress},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mm.MapRange(2, tc.phys, tc.virt, tc.size, xous.MemoryRead); err != tc.want {
				t.Errorf("MapRange err = %v, want %v", err, tc.want)
			}
			if n := mm.MappedPages(2); n != 0 {
				t.Errorf("MappedPages = %d after failure, want 0", n)
			}
			if n := mm.Allocator().FreeCount(); n != 2 {
				t.Errorf("FreeCount = %d after failure, want 2", n)
			}
		})
	}
}

func TestMapRangeOverlap(t *testing.T) {
	mm := newTestMM(t, 4, 2)
	if _, err := mm.MapRange(2, 0, 0x10000, 2*page, xous.MemoryRead); err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	if _, err := mm.MapRange(2, 0, 0x10000+page, page, xous.MemoryRead); err != kernerr.MemoryInUse {
		t.Errorf("overlapping MapRange err = %v, want %v", err, kernerr.MemoryInUse)
	}
}

func TestReserveRangeZeroes(t *testing.T) {
	mm := newTestMM(t, 2, 2, 3)
	r, err := mm.MapRange(2, 0, 0, page, xous.MemoryReadWrite)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	if err := mm.WriteAt(2, r.Base, []byte("secret")); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if err := mm.UnmapRange(2, r); err != nil {
		t.Fatalf("UnmapRange failed: %v", err)
	}
	if err := mm.ReserveRange(3, 0x2000_0000, page, xous.MemoryReadWrite); err != nil {
		t.Fatalf("ReserveRange failed: %v", err)
	}
	got := make([]byte, 6)
	if err := mm.ReadAt(3, 0x2000_0000, got); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if !bytes.Equal(got, make([]byte, 6)) {
		t.Errorf("reserved page holds stale data %q", got)
	}
}

func TestAccessChecks(t *testing.T) {
	mm := newTestMM(t, 4, 2)
	ro, err := mm.MapRange(2, 0, 0, page, xous.MemoryRead)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	if err := mm.WriteAt(2, ro.Base, []byte{1}); err != kernerr.AccessDenied {
		t.Errorf("write to read-only page err = %v, want %v", err, kernerr.AccessDenied)
	}
	if err := mm.ReadAt(2, ro.Base+page, make([]byte, 1)); err != kernerr.BadAddress {
		t.Errorf("read of unmapped page err = %v, want %v", err, kernerr.BadAddress)
	}

	rw, err := mm.MapRange(2, 0, 0, 2*page, xous.MemoryReadWrite)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	data := []byte("crosses a page boundary")
	addr := rw.Base + page - 5
	if err := mm.WriteAt(2, addr, data); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	got := make([]byte, len(data))
	if err := mm.ReadAt(2, addr, got); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadAt = %q, want %q", got, data)
	}
}

func TestLendAndReturn(t *testing.T) {
	mm := newTestMM(t, 4, 2, 3)
	r, err := mm.MapRange(2, 0, 0x10000, page, xous.MemoryReadWrite)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	if err := mm.WriteAt(2, r.Base, []byte("ping")); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}

	tr, err := mm.Lend(2, r)
	if err != nil {
		t.Fatalf("Lend failed: %v", err)
	}
	if err := mm.ReadAt(2, r.Base, make([]byte, 4)); err != kernerr.AccessDenied {
		t.Errorf("sender read of lent page err = %v, want %v", err, kernerr.AccessDenied)
	}
	if err := mm.UnmapPage(2, r.Base); err != kernerr.MemoryInUse {
		t.Errorf("UnmapPage of lent page err = %v, want %v", err, kernerr.MemoryInUse)
	}

	got, err := mm.Attach(3, tr, xous.MutableBorrow)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if owner, _ := mm.Allocator().Owner(tr.Frames[0]); owner != 3 {
		t.Errorf("owner during borrow = %d, want 3", owner)
	}
	if err := mm.WriteAt(3, got.Base, []byte("pong")); err != nil {
		t.Fatalf("receiver WriteAt failed: %v", err)
	}
	if _, err := mm.Unattach(3, got); err != nil {
		t.Fatalf("Unattach failed: %v", err)
	}
	if err := mm.Unlend(2, r); err != nil {
		t.Fatalf("Unlend failed: %v", err)
	}

	buf := make([]byte, 4)
	if err := mm.ReadAt(2, r.Base, buf); err != nil {
		t.Fatalf("ReadAt after return failed: %v", err)
	}
	if string(buf) != "pong" {
		t.Errorf("ReadAt after return = %q, want %q", buf, "pong")
	}
	if owner, _ := mm.Allocator().Owner(tr.Frames[0]); owner != 2 {
		t.Errorf("owner after return = %d, want 2", owner)
	}
	if n := mm.MappedPages(3); n != 0 {
		t.Errorf("receiver still maps %d pages", n)
	}
}

func TestImmutableBorrowIsReadOnly(t *testing.T) {
	mm := newTestMM(t, 4, 2, 3)
	r, err := mm.MapRange(2, 0, 0, page, xous.MemoryReadWrite)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	tr, err := mm.Lend(2, r)
	if err != nil {
		t.Fatalf("Lend failed: %v", err)
	}
	got, err := mm.Attach(3, tr, xous.ImmutableBorrow)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := mm.WriteAt(3, got.Base, []byte{1}); err != kernerr.AccessDenied {
		t.Errorf("write to immutable borrow err = %v, want %v", err, kernerr.AccessDenied)
	}
}

func TestMoveAndRelease(t *testing.T) {
	mm := newTestMM(t, 4, 2, 3)
	r, err := mm.MapRange(2, 0, 0, 2*page, xous.MemoryReadWrite)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	tr, err := mm.Detach(2, r)
	if err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if _, ok := mm.Translate(2, r.Base); ok {
		t.Errorf("moved page is still mapped in the sender")
	}
	if _, err := mm.Attach(3, tr, xous.Move); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := mm.Release(3); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if n := mm.Allocator().FreeCount(); n != 4 {
		t.Errorf("FreeCount = %d after release, want 4", n)
	}
}

func TestReleaseSkipsLoans(t *testing.T) {
	mm := newTestMM(t, 4, 2, 3)
	r, err := mm.MapRange(2, 0, 0, page, xous.MemoryReadWrite)
	if err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	tr, err := mm.Lend(2, r)
	if err != nil {
		t.Fatalf("Lend failed: %v", err)
	}
	if _, err := mm.Attach(3, tr, xous.MutableBorrow); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := mm.Release(3); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, ok := mm.Allocator().Owner(tr.Frames[0]); !ok {
		t.Errorf("borrowed frame was freed by the borrower's release")
	}
}

func TestMaxPagesPerProcess(t *testing.T) {
	mm := newTestMM(t, 32, 2)
	if _, err := mm.MapRange(2, 0, 0, 16*page, xous.MemoryRead); err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}
	if _, err := mm.MapRange(2, 0, 0, page, xous.MemoryRead); err != kernerr.OutOfMemory {
		t.Errorf("MapRange past the limit err = %v, want %v", err, kernerr.OutOfMemory)
	}
}

func TestHugeFixedRanges(t *testing.T) {
	pa, err := pgalloc.New(ramBase, 8*page, nil)
	if err != nil {
		t.Fatalf("pgalloc.New failed: %v", err)
	}
	t.Cleanup(func() { pa.Release() })
	mm := New(Config{MmapBase: mmapBase, MmapEnd: mmapBase + 0x100000}, pa)
	if err := mm.NewAddressSpace(2); err != nil {
		t.Fatalf("NewAddressSpace failed: %v", err)
	}
	if _, err := mm.MapRange(2, 0, mmapBase, page, xous.MemoryReadWrite); err != nil {
		t.Fatalf("MapRange failed: %v", err)
	}

	top := ^hostarch.Addr(0) &^ (page - 1)
	if _, err := mm.MapRange(2, 0, top, 1<<40, xous.MemoryRead); err != kernerr.BadAddress {
		t.Errorf("MapRange wrapping the address space err = %v, want %v", err, kernerr.BadAddress)
	}
	if _, err := mm.MapRange(2, 0, mmapBase-page, 1<<40, xous.MemoryRead); err != kernerr.MemoryInUse {
		t.Errorf("MapRange over a mapped page err = %v, want %v", err, kernerr.MemoryInUse)
	}
	if _, err := mm.MapRange(2, 0, mmapBase+page, 1<<40, xous.MemoryRead); err != kernerr.OutOfMemory {
		t.Errorf("MapRange larger than RAM err = %v, want %v", err, kernerr.OutOfMemory)
	}
	if err := mm.UnmapRange(2, xous.MemoryRange{Base: mmapBase, Size: 1 << 40}); err != kernerr.BadAddress {
		t.Errorf("UnmapRange beyond the mapping err = %v, want %v", err, kernerr.BadAddress)
	}
	if got := mm.MappedPages(2); got != 1 {
		t.Errorf("%d pages mapped, want 1", got)
	}
}
