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
	"xkern.dev/xkern/pkg/log"
)

// resolve returns the process and context an activation of (pid, tid) would
// run, without changing any state.
func (k *Kernel) resolve(pid xous.PID, tid xous.TID) (*Process, *Context, error) {
	p, ok := k.procs[pid]
	if !ok {
		return nil, nil, kernerr.ProcessNotFound
	}
	c, err := p.selectContext(tid)
	if err != nil {
		return nil, nil, err
	}
	return p, c, nil
}

// ActivateProcessContext transfers the CPU to context tid of pid, or to the
// context selected by Process.selectContext if tid is zero. It returns the
// context that now runs.
//
// The target is resolved before anything changes: if it does not exist or
// cannot run, ActivateProcessContext fails with ProcessNotFound and the
// caller keeps running. Otherwise the caller is left Suspended, resumable
// with a ResumeProcess return, if canResume is set. If not, it is left
// Parked, in whatever wait the caller recorded, or waiting for an event.
//
// targetIsParent asserts that pid is the parent of the caller.
func (k *Kernel) ActivateProcessContext(pid xous.PID, tid xous.TID, canResume, targetIsParent bool) (xous.TID, error) {
	if targetIsParent && pid != k.cur.ppid {
		k.Fatalf("PID%d activating PID%d as its parent, but its parent is PID%d", k.cur.pid, pid, k.cur.ppid)
	}
	p, c, err := k.resolve(pid, tid)
	if err != nil {
		return 0, err
	}
	if caller := k.curCtx; caller != nil {
		switch {
		case canResume:
			caller.suspend()
		case caller.state == ContextRunning:
			caller.park(WaitEvent, 0)
		}
	}
	k.switchTo(p, c, canResume, targetIsParent)
	return c.tid, nil
}

// switchTo makes c of p the running context. The caller must already have
// left the Running state.
func (k *Kernel) switchTo(p *Process, c *Context, canResume, targetIsParent bool) {
	a := Activation{
		FromPID:        k.cur.pid,
		FromTID:        k.CurrentContextNr(),
		ToPID:          p.pid,
		ToTID:          c.tid,
		CanResume:      canResume,
		TargetIsParent: targetIsParent,
	}
	c.state = ContextRunning
	c.wait = WaitNone
	p.lastTID = c.tid
	k.cur, k.curCtx = p, c
	k.last = a
	k.activations++
	contextSwitchCounter.Increment()
	if log.IsLogging(log.Debug) {
		log.Debugf("Activate PID%d:%d -> PID%d:%d (resume=%t parent=%t)", a.FromPID, a.FromTID, a.ToPID, a.ToTID, canResume, targetIsParent)
	}
}

// parentOf returns the parent of the caller or fails the kernel if the
// caller is the root, which has no one to give the CPU to.
func (t *Task) parentOf(what string) xous.PID {
	p := t.Process()
	if p.ppid == 0 {
		t.k.Fatalf("%s from PID%d:%d, which has no parent", what, t.pid, t.tid)
	}
	return p.ppid
}

// Yield gives the CPU to the parent process. The caller resumes with
// ResumeProcess when it is next activated.
func (t *Task) Yield() (*SyscallControl, error) {
	ppid := t.parentOf("Yield")
	if _, err := t.k.ActivateProcessContext(ppid, xous.AnyContext, true, true); err != nil {
		return nil, err
	}
	return ctrlSwitched, nil
}

// WaitEvent parks the caller until an event wakes it and gives the CPU to
// the parent process.
func (t *Task) WaitEvent() (*SyscallControl, error) {
	if err := t.checkParentRunnable("WaitEvent"); err != nil {
		return nil, err
	}
	t.parkAndYieldToParent(WaitEvent, 0)
	return ctrlSwitched, nil
}

// SwitchTo gives the CPU to context tid of the child process pid. The caller
// resumes with ResumeProcess when it is next activated.
func (t *Task) SwitchTo(pid xous.PID, tid xous.TID) (*SyscallControl, error) {
	p, ok := t.k.procs[pid]
	if !ok {
		return nil, kernerr.ProcessNotFound
	}
	if p.ppid != t.pid {
		return nil, kernerr.ProcessNotChild
	}
	if _, err := t.k.ActivateProcessContext(pid, tid, true, false); err != nil {
		return nil, err
	}
	return ctrlSwitched, nil
}

// parkAndYieldToParent parks the caller, which must have checked that its
// parent can run, and gives the CPU to the parent.
func (t *Task) parkAndYieldToParent(reason WaitReason, sid xous.SID) {
	ppid := t.Process().ppid
	t.context().park(reason, sid)
	if _, err := t.k.ActivateProcessContext(ppid, xous.AnyContext, false, true); err != nil {
		t.k.Fatalf("parent PID%d of PID%d cannot run after it was resolved: %v", ppid, t.pid, err)
	}
}

// checkParentRunnable validates that the caller could give the CPU to its
// parent.
func (t *Task) checkParentRunnable(what string) error {
	_, _, err := t.k.resolve(t.parentOf(what), xous.AnyContext)
	return err
}
