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
	"fmt"

	"xkern.dev/xkern/pkg/hostarch"
)

// Sysno is a syscall number, passed in the first argument register.
type Sysno uintptr

// Syscall numbers.
const (
	SysMapMemory        Sysno = 1
	SysUnmapMemory      Sysno = 2
	SysIncreaseHeap     Sysno = 3
	SysDecreaseHeap     Sysno = 4
	SysSwitchTo         Sysno = 5
	SysClaimInterrupt   Sysno = 6
	SysFreeInterrupt    Sysno = 7
	SysYield            Sysno = 8
	SysWaitEvent        Sysno = 9
	SysReceiveMessage   Sysno = 10
	SysSendMessage      Sysno = 11
	SysSpawnThread      Sysno = 12
	SysCreateServer     Sysno = 13
	SysConnect          Sysno = 14
	SysDisconnect       Sysno = 15
	SysDestroyServer    Sysno = 16
	SysReturnMemory     Sysno = 17
	SysReturnScalar1    Sysno = 18
	SysReturnScalar2    Sysno = 19
	SysCreateProcess    Sysno = 20
	SysTerminateProcess Sysno = 21

	// MaxSysno is the largest syscall number.
	MaxSysno = SysTerminateProcess
)

// MaxServerName is the longest server name, in bytes.
const MaxServerName = 64

// SysCall is a decoded syscall request. The set of implementations is closed:
// every type below is a SysCall and nothing else is.
type SysCall interface {
	// Sysno returns the syscall number of the request.
	Sysno() Sysno

	isSysCall()
}

// MapMemory maps Size bytes at Virt, backed by the frames at Phys. A zero
// Phys allocates fresh RAM and a zero Virt lets the kernel pick an address.
type MapMemory struct {
	Phys  hostarch.Addr
	Virt  hostarch.Addr
	Size  uint64
	Flags MemoryFlags
}

// UnmapMemory removes a mapping created by MapMemory.
type UnmapMemory struct {
	Range MemoryRange
}

// IncreaseHeap grows the caller's heap by Delta bytes.
type IncreaseHeap struct {
	Delta uint64
	Flags MemoryFlags
}

// DecreaseHeap shrinks the caller's heap by Delta bytes.
type DecreaseHeap struct {
	Delta uint64
}

// SwitchTo transfers control to a context of a child process.
type SwitchTo struct {
	PID PID
	TID TID
}

// ClaimInterrupt registers the caller as the handler of IRQ. When it fires,
// a context of the caller runs Callback with (IRQ, Arg).
type ClaimInterrupt struct {
	IRQ      uint32
	Callback hostarch.Addr
	Arg      uintptr
}

// FreeInterrupt releases a claimed IRQ.
type FreeInterrupt struct {
	IRQ uint32
}

// Yield gives control back to the caller's parent.
type Yield struct{}

// WaitEvent parks the caller until an event (interrupt) readies it, then
// gives control to the parent.
type WaitEvent struct{}

// ReceiveMessage takes the next message for a server owned by the caller.
type ReceiveMessage struct {
	SID SID
}

// SendMessage sends a message on a connection.
type SendMessage struct {
	CID     CID
	Message Message
}

// SpawnThread creates a new context in the caller's process.
type SpawnThread struct {
	Entry hostarch.Addr
	Stack hostarch.Addr
	Arg   uintptr
}

// CreateServer registers a named server owned by the caller.
type CreateServer struct {
	Name string
}

// Connect returns a connection to a server.
type Connect struct {
	SID SID
}

// Disconnect drops one reference to a connection.
type Disconnect struct {
	CID CID
}

// DestroyServer unregisters a server owned by the caller.
type DestroyServer struct {
	SID SID
}

// ReturnMemory replies to a borrow, returning the lent range to its sender.
type ReturnMemory struct {
	Sender MessageSender
	Range  MemoryRange
	Offset uintptr
	Valid  uintptr
}

// ReturnScalar1 replies to a blocking scalar with one word.
type ReturnScalar1 struct {
	Sender MessageSender
	Arg    uintptr
}

// ReturnScalar2 replies to a blocking scalar with two words.
type ReturnScalar2 struct {
	Sender MessageSender
	Args   [2]uintptr
}

// CreateProcess creates a child of the caller with a single Ready context.
type CreateProcess struct {
	Entry hostarch.Addr
	Stack hostarch.Addr
	Arg   uintptr
}

// TerminateProcess ends the caller's process.
type TerminateProcess struct {
	Code uintptr
}

func (MapMemory) Sysno() Sysno        { return SysMapMemory }
func (UnmapMemory) Sysno() Sysno      { return SysUnmapMemory }
func (IncreaseHeap) Sysno() Sysno     { return SysIncreaseHeap }
func (DecreaseHeap) Sysno() Sysno     { return SysDecreaseHeap }
func (SwitchTo) Sysno() Sysno         { return SysSwitchTo }
func (ClaimInterrupt) Sysno() Sysno   { return SysClaimInterrupt }
func (FreeInterrupt) Sysno() Sysno    { return SysFreeInterrupt }
func (Yield) Sysno() Sysno            { return SysYield }
func (WaitEvent) Sysno() Sysno        { return SysWaitEvent }
func (ReceiveMessage) Sysno() Sysno   { return SysReceiveMessage }
func (SendMessage) Sysno() Sysno      { return SysSendMessage }
func (SpawnThread) Sysno() Sysno      { return SysSpawnThread }
func (CreateServer) Sysno() Sysno     { return SysCreateServer }
func (Connect) Sysno() Sysno          { return SysConnect }
func (Disconnect) Sysno() Sysno       { return SysDisconnect }
func (DestroyServer) Sysno() Sysno    { return SysDestroyServer }
func (ReturnMemory) Sysno() Sysno     { return SysReturnMemory }
func (ReturnScalar1) Sysno() Sysno    { return SysReturnScalar1 }
func (ReturnScalar2) Sysno() Sysno    { return SysReturnScalar2 }
func (CreateProcess) Sysno() Sysno    { return SysCreateProcess }
func (TerminateProcess) Sysno() Sysno { return SysTerminateProcess }

func (MapMemory) isSysCall()        {}
func (UnmapMemory) isSysCall()      {}
func (IncreaseHeap) isSysCall()     {}
func (DecreaseHeap) isSysCall()     {}
func (SwitchTo) isSysCall()         {}
func (ClaimInterrupt) isSysCall()   {}
func (FreeInterrupt) isSysCall()    {}
func (Yield) isSysCall()            {}
func (WaitEvent) isSysCall()        {}
func (ReceiveMessage) isSysCall()   {}
func (SendMessage) isSysCall()      {}
func (SpawnThread) isSysCall()      {}
func (CreateServer) isSysCall()     {}
func (Connect) isSysCall()          {}
func (Disconnect) isSysCall()       {}
func (DestroyServer) isSysCall()    {}
func (ReturnMemory) isSysCall()     {}
func (ReturnScalar1) isSysCall()    {}
func (ReturnScalar2) isSysCall()    {}
func (CreateProcess) isSysCall()    {}
func (TerminateProcess) isSysCall() {}

// AllSysCalls returns a zero value of every SysCall, in syscall number
// order.
func AllSysCalls() []SysCall {
	return []SysCall{
		MapMemory{},
		UnmapMemory{},
		IncreaseHeap{},
		DecreaseHeap{},
		SwitchTo{},
		ClaimInterrupt{},
		FreeInterrupt{},
		Yield{},
		WaitEvent{},
		ReceiveMessage{},
		SendMessage{},
		SpawnThread{},
		CreateServer{},
		Connect{},
		Disconnect{},
		DestroyServer{},
		ReturnMemory{},
		ReturnScalar1{},
		ReturnScalar2{},
		CreateProcess{},
		TerminateProcess{},
	}
}

var sysnoNames = map[Sysno]string{
	SysMapMemory:        "MapMemory",
	SysUnmapMemory:      "UnmapMemory",
	SysIncreaseHeap:     "IncreaseHeap",
	SysDecreaseHeap:     "DecreaseHeap",
	SysSwitchTo:         "SwitchTo",
	SysClaimInterrupt:   "ClaimInterrupt",
	SysFreeInterrupt:    "FreeInterrupt",
	SysYield:            "Yield",
	SysWaitEvent:        "WaitEvent",
	SysReceiveMessage:   "ReceiveMessage",
	SysSendMessage:      "SendMessage",
	SysSpawnThread:      "SpawnThread",
	SysCreateServer:     "CreateServer",
	SysConnect:          "Connect",
	SysDisconnect:       "Disconnect",
	SysDestroyServer:    "DestroyServer",
	SysReturnMemory:     "ReturnMemory",
	SysReturnScalar1:    "ReturnScalar1",
	SysReturnScalar2:    "ReturnScalar2",
	SysCreateProcess:    "CreateProcess",
	SysTerminateProcess: "TerminateProcess",
}

// String implements fmt.Stringer.String.
func (s Sysno) String() string {
	if name, ok := sysnoNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Sysno(%d)", uintptr(s))
}
