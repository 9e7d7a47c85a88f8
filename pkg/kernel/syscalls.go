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
	"time"

	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/log"
)

// ABIXous names the native syscall ABI.
const ABIXous = "xous"

// SyscallControl is returned by syscalls to control the behavior of
// Task.Syscall.
type SyscallControl struct {
	// contextSwitched is set if the calling context is no longer running
	// when the syscall returns. Its outcome is then delivered as its
	// pending return when it is next activated.
	contextSwitched bool
}

var (
	// CtrlDoExit is returned by the implementations of the TerminateProcess
	// syscall. The calling process no longer exists.
	CtrlDoExit = &SyscallControl{contextSwitched: true}

	// ctrlSwitched is returned by syscalls that transferred control to
	// another context.
	ctrlSwitched = &SyscallControl{contextSwitched: true}
)

// ContextSwitched returns true if the calling context lost the CPU.
func (c *SyscallControl) ContextSwitched() bool {
	return c != nil && c.contextSwitched
}

// SyscallFn is a syscall implementation.
type SyscallFn func(t *Task, call xous.SysCall) (xous.Result, *SyscallControl, error)

// MissingFn is a syscall to be called when an implementation is missing.
type MissingFn func(t *Task, sysno xous.Sysno) (xous.Result, error)

// Syscall includes the syscall implementation and compatibility information.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation of the syscall.
	Fn SyscallFn

	// Note describes the behavior of the implementation, for the
	// syscall listing.
	Note string
}

// SyscallTable is a lookup table of system calls.
type SyscallTable struct {
	// ABI is the ABI this table implements.
	ABI string

	// Table is the collection of functions.
	Table map[xous.Sysno]Syscall

	// Missing is the function to call when a syscall is not defined in
	// Table. If nil, the syscall fails with UnhandledSyscall.
	Missing MissingFn
}

// allSyscallTables contains all known tables.
var allSyscallTables []*SyscallTable

// LookupSyscallTable returns the SyscallTable for the ABI, if it exists.
func LookupSyscallTable(abi string) (*SyscallTable, bool) {
	for _, s := range allSyscallTables {
		if s.ABI == abi {
			return s, true
		}
	}
	return nil, false
}

// RegisterSyscallTable registers a new syscall table for use by a Kernel.
func RegisterSyscallTable(s *SyscallTable) {
	if _, ok := LookupSyscallTable(s.ABI); ok {
		panic(fmt.Sprintf("Duplicate SyscallTable registered for ABI %q", s.ABI))
	}
	allSyscallTables = append(allSyscallTables, s)
}

// SyscallTables returns all registered syscall tables.
func SyscallTables() []*SyscallTable {
	return allSyscallTables
}

// Lookup returns the syscall implementation, if one exists.
func (s *SyscallTable) Lookup(sysno xous.Sysno) SyscallFn {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Fn
	}
	return nil
}

// Sysnos returns the numbers of the syscalls in the table, in ascending
// order.
func (s *SyscallTable) Sysnos() []xous.Sysno {
	nos := make([]xous.Sysno, 0, len(s.Table))
	for no := range s.Table {
		nos = append(nos, no)
	}
	sort.Slice(nos, func(i, j int) bool { return nos[i] < nos[j] })
	return nos
}

// missing dispatches a syscall the table does not implement.
func (s *SyscallTable) missing(t *Task, sysno xous.Sysno) (xous.Result, error) {
	if s.Missing != nil {
		return s.Missing(t, sysno)
	}
	unimplementedLogger.Warningf("PID%d:%d Unhandled syscall %v", t.pid, t.tid, sysno)
	return xous.Result{}, kernerr.UnhandledSyscall
}

// unimplementedLogger and queueFullLogger limit the warnings processes can
// trigger at will.
var (
	unimplementedLogger = log.BasicRateLimitedLogger(time.Second)
	queueFullLogger     = log.BasicRateLimitedLogger(time.Second)
)
