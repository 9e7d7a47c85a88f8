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

// Package kernel provides the process table, the scheduler and the IPC
// protocol of the kernel.
//
// The kernel runs on a single simulated core. Exactly one context is Running
// at any time, and control moves between contexts only when the running
// context makes a syscall. A Kernel is owned by its caller and is not safe for
// concurrent use; separate Kernels share nothing but metrics and logging.
package kernel

import (
	"fmt"
	"sort"

	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/kernel/ipc"
	"xkern.dev/xkern/pkg/log"
	"xkern.dev/xkern/pkg/mm"
	"xkern.dev/xkern/pkg/pgalloc"
)

// Config holds the parameters of a Kernel.
type Config struct {
	// RAMBase and RAMSize locate main memory in the physical address space.
	RAMBase hostarch.Addr
	RAMSize uint64

	// Windows are the device register ranges that may be mapped by
	// physical address.
	Windows []pgalloc.Window

	// UserAreaEnd is the first virtual address a process other than the
	// root may not map.
	UserAreaEnd hostarch.Addr

	// HeapBase is the virtual address of every process heap, and HeapMax
	// the size it may grow to.
	HeapBase hostarch.Addr
	HeapMax  uint64

	// MmapBase is the lowest virtual address chosen for mappings that do
	// not request one. Such mappings end below UserAreaEnd.
	MmapBase hostarch.Addr

	MaxProcesses       int
	MaxContexts        int
	MaxServers         int
	MaxConnections     int
	MaxPagesPerProcess int

	// QueueDepth bounds the undelivered messages of a server and
	// ReplySlots its unreplied blocking messages.
	QueueDepth int
	ReplySlots int

	// Interrupts is the number of interrupt lines.
	Interrupts int

	// SyscallTable dispatches syscalls. If nil, the table registered for
	// ABI is used.
	SyscallTable *SyscallTable
	ABI          string

	// Strace logs every syscall at Info rather than Debug.
	Strace bool
}

// DefaultConfig returns the default kernel parameters.
func DefaultConfig() Config {
	return Config{
		RAMBase:            0x4000_0000,
		RAMSize:            16 << 20,
		UserAreaEnd:        0xff00_0000,
		HeapBase:           0x2000_0000,
		HeapMax:            4 << 20,
		MmapBase:           0x6000_0000,
		MaxProcesses:       64,
		MaxContexts:        32,
		MaxServers:         128,
		MaxConnections:     32,
		MaxPagesPerProcess: 4096,
		QueueDepth:         8,
		ReplySlots:         16,
		Interrupts:         32,
		ABI:                ABIXous,
	}
}

// Validate checks that the configuration describes a usable kernel.
func (c *Config) Validate() error {
	for _, a := range []struct {
		name string
		v    uint64
	}{
		{"RAM base", uint64(c.RAMBase)},
		{"RAM size", c.RAMSize},
		{"user area end", uint64(c.UserAreaEnd)},
		{"heap base", uint64(c.HeapBase)},
		{"heap maximum", c.HeapMax},
		{"mmap base", uint64(c.MmapBase)},
	} {
		if !hostarch.IsPageAligned(a.v) {
			return fmt.Errorf("%s %#x is not page aligned", a.name, a.v)
		}
	}
	if c.RAMSize == 0 {
		return fmt.Errorf("no RAM configured")
	}
	if c.HeapBase == 0 {
		return fmt.Errorf("heap base must not be zero")
	}
	if heapEnd, ok := c.HeapBase.AddLength(c.HeapMax); !ok || heapEnd > c.MmapBase {
		return fmt.Errorf("heap %v+%#x overlaps the mmap area at %v", c.HeapBase, c.HeapMax, c.MmapBase)
	}
	if c.MmapBase >= c.UserAreaEnd {
		return fmt.Errorf("mmap base %v is not below the user area end %v", c.MmapBase, c.UserAreaEnd)
	}
	for _, l := range []struct {
		name string
		v    int
	}{
		{"processes", c.MaxProcesses},
		{"contexts", c.MaxContexts},
		{"servers", c.MaxServers},
		{"connections", c.MaxConnections},
		{"queue depth", c.QueueDepth},
		{"reply slots", c.ReplySlots},
		{"pages per process", c.MaxPagesPerProcess},
	} {
		if l.v <= 0 {
			return fmt.Errorf("limit on %s must be positive, got %d", l.name, l.v)
		}
	}
	if c.MaxServers > 0xffff || c.ReplySlots > 0xfffe {
		return fmt.Errorf("server table (%d) or reply slots (%d) exceed the identifier space", c.MaxServers, c.ReplySlots)
	}
	if c.Interrupts < 0 {
		return fmt.Errorf("negative interrupt count %d", c.Interrupts)
	}
	return nil
}

// InvariantViolation is the value the kernel panics with when its state is
// found to be inconsistent. The kernel must not be used after one.
type InvariantViolation struct {
	Message string
}

// Error implements error.Error.
func (v *InvariantViolation) Error() string {
	return "kernel invariant violated: " + v.Message
}

// Activation records one transfer of control.
type Activation struct {
	FromPID xous.PID
	FromTID xous.TID
	ToPID   xous.PID
	ToTID   xous.TID

	CanResume      bool
	TargetIsParent bool
}

// Kernel is the kernel state.
type Kernel struct {
	conf     Config
	syscalls *SyscallTable

	mm  *mm.MemoryManager
	ipc *ipc.Registry

	// procs is the process table.
	procs   map[xous.PID]*Process
	lastPID xous.PID

	// cur and curCtx are the running process and context. curCtx is nil
	// only while the running process is being torn down.
	cur    *Process
	curCtx *Context

	irqs []irqClaim

	// activations counts transfers of control; last is the most recent.
	activations uint64
	last        Activation
}

// New returns a Kernel whose root process is running.
func New(conf Config) (*Kernel, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	table := conf.SyscallTable
	if table == nil {
		abi := conf.ABI
		if abi == "" {
			abi = ABIXous
		}
		var ok bool
		if table, ok = LookupSyscallTable(abi); !ok {
			return nil, fmt.Errorf("no syscall table registered for ABI %q", abi)
		}
	}
	pa, err := pgalloc.New(conf.RAMBase, conf.RAMSize, conf.Windows)
	if err != nil {
		return nil, fmt.Errorf("creating page allocator: %w", err)
	}
	k := &Kernel{
		conf:     conf,
		syscalls: table,
		mm: mm.New(mm.Config{
			MmapBase:           conf.MmapBase,
			MmapEnd:            conf.UserAreaEnd,
			MaxPagesPerProcess: conf.MaxPagesPerProcess,
		}, pa),
		ipc: ipc.NewRegistry(ipc.Config{
			MaxServers:     conf.MaxServers,
			QueueDepth:     conf.QueueDepth,
			ReplySlots:     conf.ReplySlots,
			MaxConnections: conf.MaxConnections,
		}),
		procs: make(map[xous.PID]*Process),
		irqs:  make([]irqClaim, conf.Interrupts),
	}
	root, err := k.newProcess(xous.RootPID, 0)
	if err != nil {
		pa.Release()
		return nil, err
	}
	c := root.newContext(1, SavedRegisters{})
	c.state = ContextRunning
	root.lastTID = c.tid
	k.cur, k.curCtx = root, c
	k.lastPID = root.pid
	processCounter.Increment()
	log.Infof("Kernel started: %#x bytes of RAM at %v, %d device windows, syscall table %q", conf.RAMSize, conf.RAMBase, len(conf.Windows), table.ABI)
	return k, nil
}

// Release frees the host memory backing the kernel RAM.
func (k *Kernel) Release() error {
	return k.mm.Allocator().Release()
}

// Config returns the kernel parameters.
func (k *Kernel) Config() Config {
	return k.conf
}

// MemoryManager returns the memory manager.
func (k *Kernel) MemoryManager() *mm.MemoryManager {
	return k.mm
}

// Registry returns the server and connection registry.
func (k *Kernel) Registry() *ipc.Registry {
	return k.ipc
}

// SyscallTable returns the table syscalls are dispatched through.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.syscalls
}

// GetProcess returns the process pid.
func (k *Kernel) GetProcess(pid xous.PID) (*Process, error) {
	p, ok := k.procs[pid]
	if !ok {
		return nil, kernerr.ProcessNotFound
	}
	return p, nil
}

// Processes returns the PIDs of all processes in ascending order.
func (k *Kernel) Processes() []xous.PID {
	pids := make([]xous.PID, 0, len(k.procs))
	for pid := range k.procs {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// CurrentPID returns the PID of the running process.
func (k *Kernel) CurrentPID() xous.PID {
	return k.cur.pid
}

// CurrentContextNr returns the number of the running context.
func (k *Kernel) CurrentContextNr() xous.TID {
	if k.curCtx == nil {
		return 0
	}
	return k.curCtx.tid
}

// CurrentTask returns the running context.
func (k *Kernel) CurrentTask() *Task {
	return &Task{k: k, pid: k.cur.pid, tid: k.CurrentContextNr()}
}

// LastActivation returns the most recent transfer of control and the number
// of transfers so far.
func (k *Kernel) LastActivation() (Activation, uint64) {
	return k.last, k.activations
}

// Fatalf reports a violated kernel invariant and panics with an
// *InvariantViolation.
func (k *Kernel) Fatalf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	log.Traceback("Kernel invariant violated: %s", msg)
	panic(&InvariantViolation{Message: msg})
}
