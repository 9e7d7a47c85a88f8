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
	"xkern.dev/xkern/pkg/hostarch"
)

// SpawnThread creates a Ready context in the process of t that starts at
// entry with stack sp and arg in its first argument register. It does not
// transfer control.
func (t *Task) SpawnThread(entry, sp hostarch.Addr, arg uintptr) (xous.TID, error) {
	p := t.Process()
	tid, err := p.freeTID(t.k.conf.MaxContexts)
	if err != nil {
		t.Debugf("SpawnThread: all %d contexts in use", t.k.conf.MaxContexts)
		return 0, err
	}
	p.newContext(tid, SavedRegisters{PC: entry, SP: sp, Args: [2]uintptr{arg}})
	t.Debugf("Spawned context %d at %v", tid, entry)
	return tid, nil
}

// CreateProcess creates a child of the process of t with an empty address
// space and a single Ready context that starts at entry. The child runs
// when its parent switches to it.
func (t *Task) CreateProcess(entry, sp hostarch.Addr, arg uintptr) (xous.PID, error) {
	pid, err := t.k.newPID()
	if err != nil {
		return 0, err
	}
	p, err := t.k.newProcess(pid, t.pid)
	if err != nil {
		return 0, err
	}
	p.newContext(1, SavedRegisters{PC: entry, SP: sp, Args: [2]uintptr{arg}})
	processCounter.Increment()
	t.Debugf("Created PID%d at %v", pid, entry)
	return pid, nil
}
