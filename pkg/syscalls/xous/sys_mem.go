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

package xous

import (
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/kernel"
)

// MapMemory implements the MapMemory syscall.
func MapMemory(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.MapMemory)
	if !args.Phys.IsPageAligned() || !args.Virt.IsPageAligned() || !hostarch.IsPageAligned(args.Size) {
		return xous.Result{}, nil, kernerr.BadAlignment
	}
	if args.Size == 0 {
		return xous.Result{}, nil, kernerr.BadAddress
	}
	if err := t.CheckUserRange(args.Virt, args.Size); err != nil {
		return xous.Result{}, nil, err
	}

	mm := t.MemoryManager()
	r, err := mm.MapRange(t.PID(), args.Phys, args.Virt, args.Size, args.Flags)
	if err != nil {
		return xous.Result{}, nil, err
	}
	if args.Phys == 0 || mm.IsMainMemory(args.Phys) {
		if err := mm.ZeroRange(t.PID(), r); err != nil {
			t.Kernel().Fatalf("zeroing new mapping %v of PID%d: %v", r, t.PID(), err)
		}
	}
	for page := r.Base; page < r.Base+hostarch.Addr(r.Size); page += hostarch.PageSize {
		if err := mm.HandPageToUser(t.PID(), page); err != nil {
			t.Kernel().Fatalf("handing page %v to PID%d: %v", page, t.PID(), err)
		}
	}
	return xous.RangeResult(r), nil, nil
}

// UnmapMemory implements the UnmapMemory syscall.
func UnmapMemory(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	r := call.(xous.UnmapMemory).Range
	if !r.IsPageAligned() {
		return xous.Result{}, nil, kernerr.BadAlignment
	}
	if r.Base == 0 || r.Size == 0 {
		return xous.Result{}, nil, kernerr.BadAddress
	}
	if err := t.CheckUserRange(r.Base, r.Size); err != nil {
		return xous.Result{}, nil, err
	}
	if err := t.CheckOutsideHeap(r); err != nil {
		return xous.Result{}, nil, err
	}
	if err := t.MemoryManager().UnmapRange(t.PID(), r); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}

// IncreaseHeap implements the IncreaseHeap syscall.
func IncreaseHeap(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.IncreaseHeap)
	if err := t.IncreaseHeap(args.Delta, args.Flags); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}

// DecreaseHeap implements the DecreaseHeap syscall.
func DecreaseHeap(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	if err := t.DecreaseHeap(call.(xous.DecreaseHeap).Delta); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}
