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
	"xkern.dev/xkern/pkg/abi/xous/errno"
	"xkern.dev/xkern/pkg/errors"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
)

// Registers are the argument registers a0-a7. On entry a0 holds the syscall
// number; on return it holds the ResultKind.
type Registers [8]uintptr

// MemoryReader reads a process's memory. It is used to fetch syscall
// arguments passed by reference.
type MemoryReader interface {
	ReadAt(addr hostarch.Addr, dst []byte) error
}

// Decode decodes the syscall request held in regs. Arguments passed by
// reference are read through mem.
func Decode(regs Registers, mem MemoryReader) (SysCall, error) {
	a := func(i int) uintptr { return regs[i] }
	addr := func(i int) hostarch.Addr { return hostarch.Addr(regs[i]) }

	switch Sysno(regs[0]) {
	case SysMapMemory:
		return MapMemory{Phys: addr(1), Virt: addr(2), Size: uint64(a(3)), Flags: MemoryFlags(a(4))}, nil
	case SysUnmapMemory:
		return UnmapMemory{Range: MemoryRange{Base: addr(1), Size: uint64(a(2))}}, nil
	case SysIncreaseHeap:
		return IncreaseHeap{Delta: uint64(a(1)), Flags: MemoryFlags(a(2))}, nil
	case SysDecreaseHeap:
		return DecreaseHeap{Delta: uint64(a(1))}, nil
	case SysSwitchTo:
		return SwitchTo{PID: PID(a(1)), TID: TID(a(2))}, nil
	case SysClaimInterrupt:
		return ClaimInterrupt{IRQ: uint32(a(1)), Callback: addr(2), Arg: a(3)}, nil
	case SysFreeInterrupt:
		return FreeInterrupt{IRQ: uint32(a(1))}, nil
	case SysYield:
		return Yield{}, nil
	case SysWaitEvent:
		return WaitEvent{}, nil
	case SysReceiveMessage:
		return ReceiveMessage{SID: SID(a(1))}, nil
	case SysSendMessage:
		msg, err := decodeMessage(regs[2:])
		if err != nil {
			return nil, err
		}
		return SendMessage{CID: CID(a(1)), Message: msg}, nil
	case SysSpawnThread:
		return SpawnThread{Entry: addr(1), Stack: addr(2), Arg: a(3)}, nil
	case SysCreateServer:
		n := a(2)
		if n == 0 || n > MaxServerName {
			return nil, kernerr.InvalidString
		}
		buf := make([]byte, n)
		if err := mem.ReadAt(addr(1), buf); err != nil {
			return nil, err
		}
		return CreateServer{Name: string(buf)}, nil
	case SysConnect:
		return Connect{SID: SID(a(1))}, nil
	case SysDisconnect:
		return Disconnect{CID: CID(a(1))}, nil
	case SysDestroyServer:
		return DestroyServer{SID: SID(a(1))}, nil
	case SysReturnMemory:
		return ReturnMemory{
			Sender: MessageSender(a(1)),
			Range:  MemoryRange{Base: addr(2), Size: uint64(a(3))},
			Offset: a(4),
			Valid:  a(5),
		}, nil
	case SysReturnScalar1:
		return ReturnScalar1{Sender: MessageSender(a(1)), Arg: a(2)}, nil
	case SysReturnScalar2:
		return ReturnScalar2{Sender: MessageSender(a(1)), Args: [2]uintptr{a(2), a(3)}}, nil
	case SysCreateProcess:
		return CreateProcess{Entry: addr(1), Stack: addr(2), Arg: a(3)}, nil
	case SysTerminateProcess:
		return TerminateProcess{Code: a(1)}, nil
	default:
		return nil, kernerr.UnhandledSyscall
	}
}

// decodeMessage decodes kind, id and the four payload words.
func decodeMessage(w []uintptr) (Message, error) {
	m := Message{Kind: MessageKind(w[0]), ID: w[1]}
	if !m.Kind.Valid() {
		return Message{}, kernerr.InternalError
	}
	if m.Kind.IsMemory() {
		m.Buf = MemoryRange{Base: hostarch.Addr(w[2]), Size: uint64(w[3])}
		m.Offset = w[4]
		m.Valid = w[5]
	} else {
		copy(m.Args[:], w[2:6])
	}
	return m, nil
}

// encodeMessage is the inverse of decodeMessage.
func encodeMessage(m Message, w []uintptr) {
	w[0] = uintptr(m.Kind)
	w[1] = m.ID
	if m.Kind.IsMemory() {
		w[2] = uintptr(m.Buf.Base)
		w[3] = uintptr(m.Buf.Size)
		w[4] = m.Offset
		w[5] = m.Valid
	} else {
		copy(w[2:6], m.Args[:])
	}
}

// Registers encodes r into the return registers.
func (r Result) Registers() Registers {
	var regs Registers
	regs[0] = uintptr(r.Kind)
	switch r.Kind {
	case ResultMemoryRange:
		regs[1] = uintptr(r.Range.Base)
		regs[2] = uintptr(r.Range.Size)
	case ResultMessage:
		regs[1] = uintptr(r.Envelope.Sender)
		encodeMessage(r.Envelope.Body, regs[2:])
	default:
		regs[1] = r.Scalars[0]
		regs[2] = r.Scalars[1]
	}
	return regs
}

// ErrorRegisters encodes a failed syscall.
func ErrorRegisters(e errno.Errno) Registers {
	return Registers{uintptr(ResultError), uintptr(e)}
}

// DecodeResult decodes return registers. A ResultError is returned as the
// matching kernel error.
func DecodeResult(regs Registers) (Result, error) {
	r := Result{Kind: ResultKind(regs[0])}
	switch r.Kind {
	case ResultError:
		return Result{}, resultError(errno.Errno(regs[1]))
	case ResultOk, ResultResumeProcess:
	case ResultMemoryRange:
		r.Range = MemoryRange{Base: hostarch.Addr(regs[1]), Size: uint64(regs[2])}
	case ResultMessage:
		msg, err := decodeMessage(regs[2:])
		if err != nil {
			return Result{}, err
		}
		r.Envelope = MessageEnvelope{Sender: MessageSender(regs[1]), Body: msg}
	case ResultThreadID, ResultProcessID, ResultServerID, ResultConnectionID, ResultScalar1:
		r.Scalars[0] = regs[1]
	case ResultScalar2, ResultMemoryReturned:
		r.Scalars = [2]uintptr{regs[1], regs[2]}
	default:
		return Result{}, kernerr.InternalError
	}
	return r, nil
}

func resultError(e errno.Errno) error {
	var err *errors.Error = kernerr.FromErrno(e)
	if err == nil {
		return kernerr.InternalError
	}
	return err
}
