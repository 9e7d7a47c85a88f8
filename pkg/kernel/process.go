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
	"fmt"
	"sort"

	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/log"
)

// ContextState is the scheduling state of a context.
type ContextState int

const (
	// ContextReady contexts have never run or have been woken, and run
	// when activated.
	ContextReady ContextState = iota

	// ContextRunning is the state of the one context executing.
	ContextRunning

	// ContextParked contexts wait for a message, a reply or an event and
	// cannot be activated until woken.
	ContextParked

	// ContextSuspended contexts gave up the CPU voluntarily and may be
	// activated at any time.
	ContextSuspended
)

func (s ContextState) String() string {
	switch s {
	case ContextReady:
		return "Ready"
	case ContextRunning:
		return "Running"
	case ContextParked:
		return "Parked"
	case ContextSuspended:
		return "Suspended"
	default:
		return fmt.Sprintf("ContextState(%d)", int(s))
	}
}

// WaitReason is what a parked context waits for.
type WaitReason int

const (
	WaitNone WaitReason = iota
	WaitEvent
	WaitMessage
	WaitReply
)

func (w WaitReason) String() string {
	switch w {
	case WaitNone:
		return "None"
	case WaitEvent:
		return "Event"
	case WaitMessage:
		return "Message"
	case WaitReply:
		return "Reply"
	default:
		return fmt.Sprintf("WaitReason(%d)", int(w))
	}
}

// SavedRegisters is the user register state of a context that is not
// running.
type SavedRegisters struct {
	PC   hostarch.Addr
	SP   hostarch.Addr
	Args [2]uintptr
}

// SyscallReturn is the outcome of a syscall a context made before it lost
// the CPU. The context observes it when it next runs.
type SyscallReturn struct {
	Result xous.Result
	Err    error
}

// Context is a thread of execution.
type Context struct {
	tid   xous.TID
	state ContextState

	// wait and waitSID are valid while the context is parked. waitSID is
	// the server the context receives on or expects a reply from.
	wait    WaitReason
	waitSID xous.SID

	regs SavedRegisters

	// ret is the pending syscall return, or nil.
	ret *SyscallReturn
}

// TID returns the context number.
func (c *Context) TID() xous.TID { return c.tid }

// State returns the scheduling state.
func (c *Context) State() ContextState { return c.state }

// Wait returns what a parked context waits for.
func (c *Context) Wait() (WaitReason, xous.SID) { return c.wait, c.waitSID }

// Registers returns the saved registers.
func (c *Context) Registers() SavedRegisters { return c.regs }

// Pending returns the syscall return the context will observe when it runs.
func (c *Context) Pending() (SyscallReturn, bool) {
	if c.ret == nil {
		return SyscallReturn{}, false
	}
	return *c.ret, true
}

func (c *Context) runnable() bool {
	return c.state == ContextReady || c.state == ContextSuspended
}

func (c *Context) park(reason WaitReason, sid xous.SID) {
	c.state = ContextParked
	c.wait = reason
	c.waitSID = sid
	c.ret = nil
}

func (c *Context) suspend() {
	c.state = ContextSuspended
	c.ret = &SyscallReturn{Result: xous.Resume}
}

// wake makes a parked context ready with the given return.
func (c *Context) wake(ret SyscallReturn) {
	c.state = ContextReady
	c.wait = WaitNone
	c.waitSID = 0
	c.ret = &ret
}

// Process is an address space and the contexts running in it.
type Process struct {
	pid  xous.PID
	ppid xous.PID

	heapBase hostarch.Addr
	heapSize uint64
	heapMax  uint64

	contexts map[xous.TID]*Context

	// lastTID is the context that ran most recently.
	lastTID xous.TID
}

// PID returns the process ID.
func (p *Process) PID() xous.PID { return p.pid }

// PPID returns the parent process ID. It is zero only for the root.
func (p *Process) PPID() xous.PID { return p.ppid }

// Heap returns the heap as a memory range and the size it may grow to.
func (p *Process) Heap() (xous.MemoryRange, uint64) {
	return xous.MemoryRange{Base: p.heapBase, Size: p.heapSize}, p.heapMax
}

// Context returns context tid.
func (p *Process) Context(tid xous.TID) (*Context, bool) {
	c, ok := p.contexts[tid]
	return c, ok
}

// Contexts returns the context numbers in ascending order.
func (p *Process) Contexts() []xous.TID {
	tids := make([]xous.TID, 0, len(p.contexts))
	for tid := range p.contexts {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
	return tids
}

func (p *Process) newContext(tid xous.TID, regs SavedRegisters) *Context {
	c := &Context{tid: tid, state: ContextReady, regs: regs}
	p.contexts[tid] = c
	return c
}

// freeTID returns the lowest unused context number.
func (p *Process) freeTID(max int) (xous.TID, error) {
	for tid := xous.TID(1); int(tid) <= max; tid++ {
		if _, ok := p.contexts[tid]; !ok {
			return tid, nil
		}
	}
	return 0, kernerr.OutOfMemory
}

// selectContext picks the context to activate. tid 0 selects the context
// that ran last if it is runnable, else the lowest numbered runnable one.
func (p *Process) selectContext(tid xous.TID) (*Context, error) {
	if tid != xous.AnyContext {
		c, ok := p.contexts[tid]
		if !ok || !c.runnable() {
			return nil, kernerr.ProcessNotFound
		}
		return c, nil
	}
	if c, ok := p.contexts[p.lastTID]; ok && c.runnable() {
		return c, nil
	}
	for _, tid := range p.Contexts() {
		if c := p.contexts[tid]; c.runnable() {
			return c, nil
		}
	}
	return nil, kernerr.ProcessNotFound
}

func (k *Kernel) newProcess(pid, ppid xous.PID) (*Process, error) {
	if err := k.mm.NewAddressSpace(pid); err != nil {
		return nil, err
	}
	p := &Process{
		pid:      pid,
		ppid:     ppid,
		heapBase: k.conf.HeapBase,
		heapMax:  k.conf.HeapMax,
		contexts: make(map[xous.TID]*Context),
	}
	k.procs[pid] = p
	return p, nil
}

// newPID finds the next unused PID.
func (k *Kernel) newPID() (xous.PID, error) {
	max := xous.PID(k.conf.MaxProcesses)
	if len(k.procs) < k.conf.MaxProcesses {
		for i := xous.PID(1); i <= max; i++ {
			pid := (k.lastPID+i-1)%max + 1
			if _, ok := k.procs[pid]; !ok {
				k.lastPID = pid
				return pid, nil
			}
		}
	}
	log.Warningf("Process table exhausted at %d processes", len(k.procs))
	return 0, kernerr.OutOfMemory
}
