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
)

// TerminateProcess destroys the process of t and gives the CPU to its
// parent.
//
// Servers owned by the process are destroyed. Its blocking messages that no
// server has received are withdrawn, with borrowed memory returned so that
// it is freed with the address space; those already received are orphaned.
// Its connections and interrupt claims are dropped and its children are
// handed to its parent.
func (t *Task) TerminateProcess(code uintptr) (*SyscallControl, error) {
	k := t.k
	p := t.Process()
	ppid := t.parentOf("TerminateProcess")
	if _, _, err := k.resolve(ppid, xous.AnyContext); err != nil {
		return nil, err
	}
	t.Infof("Terminating with code %d", code)

	for _, sid := range k.ipc.ServersOwnedBy(p.pid) {
		if err := k.destroyServer(sid); err != nil {
			k.Fatalf("destroying server %v of terminating PID%d: %v", sid, p.pid, err)
		}
	}
	k.withdrawMessagesFrom(p.pid)
	k.ipc.DropProcess(p.pid)
	k.freeInterruptsOf(p.pid)
	for _, child := range k.procs {
		if child.ppid == p.pid {
			child.ppid = p.ppid
			t.Debugf("Reparented PID%d to PID%d", child.pid, p.ppid)
		}
	}
	if err := k.mm.Release(p.pid); err != nil {
		k.Fatalf("releasing address space of PID%d: %v", p.pid, err)
	}
	delete(k.procs, p.pid)
	k.curCtx = nil

	parent, c, err := k.resolve(ppid, xous.AnyContext)
	if err != nil {
		k.Fatalf("parent PID%d of terminated PID%d cannot run: %v", ppid, p.pid, err)
	}
	k.switchTo(parent, c, false, true)
	return CtrlDoExit, nil
}
