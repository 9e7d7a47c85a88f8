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

// ClaimInterrupt implements the ClaimInterrupt syscall.
func ClaimInterrupt(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	args := call.(xous.ClaimInterrupt)
	if err := t.ClaimInterrupt(args.IRQ, args.Callback, args.Arg); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}

// FreeInterrupt implements the FreeInterrupt syscall.
func FreeInterrupt(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	if err := t.FreeInterrupt(call.(xous.FreeInterrupt).IRQ); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}
