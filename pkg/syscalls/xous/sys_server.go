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

// CreateServer implements the CreateServer syscall.
func CreateServer(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	sid, err := t.CreateServer(call.(xous.CreateServer).Name)
	if err != nil {
		return xous.Result{}, nil, err
	}
	return xous.ServerIDResult(sid), nil, nil
}

// Connect implements the Connect syscall.
func Connect(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	cid, err := t.Connect(call.(xous.Connect).SID)
	if err != nil {
		return xous.Result{}, nil, err
	}
	return xous.ConnectionIDResult(cid), nil, nil
}

// Disconnect implements the Disconnect syscall.
func Disconnect(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	if err := t.Disconnect(call.(xous.Disconnect).CID); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}

// DestroyServer implements the DestroyServer syscall.
func DestroyServer(t *kernel.Task, call xous.SysCall) (xous.Result, *kernel.SyscallControl, error) {
	if err := t.DestroyServer(call.(xous.DestroyServer).SID); err != nil {
		return xous.Result{}, nil, err
	}
	return xous.Ok, nil, nil
}
