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

// stackAlign is the alignment required of initial stack pointers.
const stackAlign = 16

// SwitchTo implements the SwitchTo syscall.
func SwitchTo(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.SwitchTo)
	ctrl, err := t.SwitchTo(args.PID, args.TID)
	return xous.Result{}, ctrl, err
}

// Yield implements the Yield syscall.
func Yield(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	ctrl, err := t.Yield()
	return xous.Result{}, ctrl, err
}

// WaitEvent implements the WaitEvent syscall.
func WaitEvent(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	ctrl, err := t.WaitEvent()
	return xous.Result{}, ctrl, err
}

// SpawnThread implements the SpawnThread syscall.
func SpawnThread(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.SpawnThread)
	if uint64(args.Stack)%stackAlign != 0 {
		return xous.Result{}, nil, kernerr.BadAlignment
	}
	if err := checkEntry(t, args.Entry, args.Stack); err != nil {
		return xous.Result{}, nil, err
	}
	tid, err := t.SpawnThread(args.Entry, args.Stack, args.Arg)
	if err != nil {
		return xous.Result{}, nil, err
	}
	return xous.ThreadIDResult(tid), nil, nil
}

// CreateProcess implements the CreateProcess syscall.
func CreateProcess(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.CreateProcess)
	if uint64(args.Stack)%stackAlign != 0 {
		return xous.Result{}, nil, kernerr.BadAlignment
	}
	if err := checkEntry(t, args.Entry, args.Stack); err != nil {
		return xous.Result{}, nil, err
	}
	pid, err := t.CreateProcess(args.Entry, args.Stack, args.Arg)
	if err != nil {
		return xous.Result{}, nil, err
	}
	return xous.ProcessIDResult(pid), nil, nil
}

// checkEntry validates the initial program counter and stack of a new
// context.
func checkEntry(t *kernel.Task, entry, stack hostarch.Addr) error {
	if err := t.CheckUserRange(entry, 1); err != nil {
		return err
	}
	return t.CheckUserRange(stack, 0)
}

// TerminateProcess implements the TerminateProcess syscall.
func TerminateProcess(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	ctrl, err := t.TerminateProcess(call.(xous.TerminateProcess).Code)
	return xous.Result{}, ctrl, err
}
