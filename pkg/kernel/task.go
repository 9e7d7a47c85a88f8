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

	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/log"
	"xkern.dev/xkern/pkg/mm"
)

// Task is a handle on a context, used to make syscalls on its behalf. Only
// the task of the running context may make syscalls.
type Task struct {
	k   *Kernel
	pid xous.PID
	tid xous.TID
}

// Kernel returns the kernel the task runs in.
func (t *Task) Kernel() *Kernel { return t.k }

// PID returns the process of the task.
func (t *Task) PID() xous.PID { return t.pid }

// TID returns the context number of the task.
func (t *Task) TID() xous.TID { return t.tid }

// MemoryManager returns the kernel memory manager.
func (t *Task) MemoryManager() *mm.MemoryManager { return t.k.mm }

// IsRoot returns true if the task belongs to the root process.
func (t *Task) IsRoot() bool { return t.pid == xous.RootPID }

// IsRunning returns true if the task is the running context.
func (t *Task) IsRunning() bool {
	return t.k.curCtx != nil && t.k.cur.pid == t.pid && t.k.curCtx.tid == t.tid
}

// Process returns the process of the task.
func (t *Task) Process() *Process { return t.k.procs[t.pid] }

func (t *Task) context() *Context { return t.k.curCtx }

// TakePending returns and clears the pending return of the task, which a
// context observes when it resumes after losing the CPU.
func (t *Task) TakePending() (SyscallReturn, bool) {
	p, ok := t.k.procs[t.pid]
	if !ok {
		return SyscallReturn{}, false
	}
	c, ok := p.contexts[t.tid]
	if !ok || c.ret == nil {
		return SyscallReturn{}, false
	}
	ret := *c.ret
	c.ret = nil
	return ret, true
}

func (t *Task) logPrefix() string {
	return fmt.Sprintf("PID%d:%d ", t.pid, t.tid)
}

// Debugf logs at Debug with the task prefix.
func (t *Task) Debugf(format string, v ...any) {
	if log.IsLogging(log.Debug) {
		log.DebugfAtDepth(1, t.logPrefix()+format, v...)
	}
}

// Infof logs at Info with the task prefix.
func (t *Task) Infof(format string, v ...any) {
	if log.IsLogging(log.Info) {
		log.Log().InfofAtDepth(1, t.logPrefix()+format, v...)
	}
}

// Warningf logs at Warning with the task prefix.
func (t *Task) Warningf(format string, v ...any) {
	log.Log().WarningfAtDepth(1, t.logPrefix()+format, v...)
}

func (t *Task) strace(format string, v ...any) {
	if t.k.conf.Strace {
		log.Log().InfofAtDepth(1, t.logPrefix()+format, v...)
	} else if log.IsLogging(log.Debug) {
		log.DebugfAtDepth(1, t.logPrefix()+format, v...)
	}
}

// Syscall executes call on behalf of the running context. If the context
// loses the CPU, Syscall returns ResumeProcess and the outcome is delivered
// as the context's pending return when it runs again.
func (t *Task) Syscall(call xous.SysCall) (xous.Result, error) {
	if !t.IsRunning() {
		t.Warningf("Syscall %v from a context that is not running", call.Sysno())
		return xous.Result{}, kernerr.InternalError
	}
	t.context().ret = nil

	sysno := call.Sysno()
	t.strace("Syscall: %v %+v", sysno, call)
	syscallCounter.Increment(sysnoField(sysno))

	var (
		res  xous.Result
		ctrl *SyscallControl
		err  error
	)
	if fn := t.k.syscalls.Lookup(sysno); fn != nil {
		res, ctrl, err = fn(t, call)
	} else {
		res, err = t.k.syscalls.missing(t, sysno)
	}

	if ctrl.ContextSwitched() {
		if err != nil {
			t.k.Fatalf("syscall %v switched context and failed with %v", sysno, err)
		}
		t.strace("Syscall: %v switched to PID%d:%d", sysno, t.k.cur.pid, t.k.CurrentContextNr())
		return xous.Resume, nil
	}
	if err != nil {
		e := kernerr.ToErrno(err)
		if typed := kernerr.FromErrno(e); typed != err {
			t.Warningf("Syscall %v: %v translated to %v", sysno, err, e)
			err = typed
		}
		syscallErrorCounter.Increment(e.String())
		t.strace("Syscall: %v = error %v", sysno, e)
		return xous.Result{}, err
	}
	t.strace("Syscall: %v = %v", sysno, res)
	return res, nil
}

// SyscallRaw executes the syscall encoded in regs and encodes its outcome
// back into registers. Server names are read from the memory of the task.
func (t *Task) SyscallRaw(regs xous.Registers) xous.Registers {
	call, err := xous.Decode(regs, t.k.mm.Reader(t.pid))
	if err != nil {
		e := kernerr.ToErrno(err)
		syscallCounter.Increment(sysnoField(xous.Sysno(regs[0])))
		syscallErrorCounter.Increment(e.String())
		t.strace("Syscall: undecodable %v: %v", xous.Sysno(regs[0]), e)
		return xous.ErrorRegisters(e)
	}
	res, err := t.Syscall(call)
	if err != nil {
		return xous.ErrorRegisters(kernerr.ToErrno(err))
	}
	return res.Registers()
}

// CheckUserRange validates that a process may name [addr, addr+size). A zero
// addr is accepted, meaning the kernel picks one. The root may name any
// address.
func (t *Task) CheckUserRange(addr hostarch.Addr, size uint64) error {
	if t.IsRoot() || addr == 0 {
		return nil
	}
	end, ok := addr.AddLength(size)
	if !ok || addr >= t.k.conf.UserAreaEnd || end > t.k.conf.UserAreaEnd {
		return kernerr.BadAddress
	}
	return nil
}

// CopyIn reads len(dst) bytes of task memory at addr.
func (t *Task) CopyIn(addr hostarch.Addr, dst []byte) error {
	return t.k.mm.ReadAt(t.pid, addr, dst)
}

// CopyOut writes src to task memory at addr.
func (t *Task) CopyOut(addr hostarch.Addr, src []byte) error {
	return t.k.mm.WriteAt(t.pid, addr, src)
}
