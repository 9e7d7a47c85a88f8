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

// Package xous provides the syscall table of the native ABI.
package xous

import (
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/kernel"
	"xkern.dev/xkern/pkg/syscalls"
)

// Table is the native syscall table, keyed by syscall number.
var Table = &kernel.SyscallTable{
	ABI: kernel.ABIXous,
	Table: map[xous.Sysno]kernel.Syscall{
		xous.SysMapMemory:        syscalls.Supported("MapMemory", MapMemory),
		xous.SysUnmapMemory:      syscalls.Supported("UnmapMemory", UnmapMemory),
		xous.SysIncreaseHeap:     syscalls.Supported("IncreaseHeap", IncreaseHeap),
		xous.SysDecreaseHeap:     syscalls.Supported("DecreaseHeap", DecreaseHeap),
		xous.SysSwitchTo:         syscalls.Supported("SwitchTo", SwitchTo),
		xous.SysClaimInterrupt:   syscalls.PartiallySupported("ClaimInterrupt", ClaimInterrupt, "Interrupts are raised by the host only."),
		xous.SysFreeInterrupt:    syscalls.Supported("FreeInterrupt", FreeInterrupt),
		xous.SysYield:            syscalls.Supported("Yield", Yield),
		xous.SysWaitEvent:        syscalls.PartiallySupported("WaitEvent", WaitEvent, "Only interrupts are events."),
		xous.SysReceiveMessage:   syscalls.Supported("ReceiveMessage", ReceiveMessage),
		xous.SysSendMessage:      syscalls.PartiallySupported("SendMessage", SendMessage, "No timeouts."),
		xous.SysSpawnThread:      syscalls.Supported("SpawnThread", SpawnThread),
		xous.SysCreateServer:     syscalls.Supported("CreateServer", CreateServer),
		xous.SysConnect:          syscalls.Supported("Connect", Connect),
		xous.SysDisconnect:       syscalls.Supported("Disconnect", Disconnect),
		xous.SysDestroyServer:    syscalls.Supported("DestroyServer", DestroyServer),
		xous.SysReturnMemory:     syscalls.Supported("ReturnMemory", ReturnMemory),
		xous.SysReturnScalar1:    syscalls.Supported("ReturnScalar1", ReturnScalar1),
		xous.SysReturnScalar2:    syscalls.Supported("ReturnScalar2", ReturnScalar2),
		xous.SysCreateProcess:    syscalls.Supported("CreateProcess", CreateProcess),
		xous.SysTerminateProcess: syscalls.Supported("TerminateProcess", TerminateProcess),
	},
}

func init() {
	kernel.RegisterSyscallTable(Table)
}
