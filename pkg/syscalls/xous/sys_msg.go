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
	"xkern.dev/xkern/pkg/kernel"
)

// SendMessage implements the SendMessage syscall.
func SendMessage(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.SendMessage)
	return t.SendMessage(args.CID, args.Message)
}

// ReceiveMessage implements the ReceiveMessage syscall.
func ReceiveMessage(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	return t.ReceiveMessage(call.(xous.ReceiveMessage).SID)
}

// ReturnMemory implements the ReturnMemory syscall.
func ReturnMemory(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.ReturnMemory)
	if err := t.ReturnMemory(args.Sender, args.Range, args.Offset, args.Valid); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}

// ReturnScalar1 implements the ReturnScalar1 syscall.
func ReturnScalar1(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.ReturnScalar1)
	if err := t.ReturnScalar(args.Sender, []uintptr{args.Arg}); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}

// ReturnScalar2 implements the ReturnScalar2 syscall.
func ReturnScalar2(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.ReturnScalar2)
	if err := t.ReturnScalar(args.Sender, args.Args[:]); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}
