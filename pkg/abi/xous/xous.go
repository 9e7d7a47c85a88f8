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

// Package xous contains the definitions of the kernel ABI seen by processes:
// identifiers, syscall requests and results, message layouts and memory
// flags.
package xous

import (
	"fmt"
	"strings"

	"xkern.dev/xkern/pkg/hostarch"
)

// PID is a process identifier. Zero is never a valid PID.
type PID uint32

// RootPID is the PID of the first process. It has no parent.
const RootPID PID = 1

// TID is a context (thread) number, unique within its process. Context
// numbers start at 1; 0 means "any runnable context" when activating.
type TID uint32

// AnyContext asks ActivateProcessContext to pick a runnable context.
const AnyContext TID = 0

// SID is a server identifier. The low 16 bits index the server table and
// the high 16 bits carry a generation, so a SID that outlives its server is
// detected rather than aliased to a new one.
type SID uint32

// NewSID returns the SID for the given slot and generation.
func NewSID(index, generation uint16) SID {
	return SID(uint32(generation)<<16 | uint32(index))
}

// Index returns the server table slot of s.
func (s SID) Index() uint16 { return uint16(s) }

// Generation returns the generation of s.
func (s SID) Generation() uint16 { return uint16(s >> 16) }

// String implements fmt.Stringer.String.
func (s SID) String() string {
	return fmt.Sprintf("sid%d.%d", s.Index(), s.Generation())
}

// CID is a connection handle, meaningful only within the process that
// obtained it. Zero is never a valid CID.
type CID uint32

// MessageSender names the server and reply slot a message was delivered
// through. The receiver passes it back to reply.
type MessageSender uint64

// NewMessageSender returns the sender token for reply slot slot on server
// sid.
func NewMessageSender(sid SID, slot int) MessageSender {
	return MessageSender(uint64(sid)<<16 | uint64(uint16(slot)+1))
}

// SID returns the server the message was sent to.
func (m MessageSender) SID() SID { return SID(m >> 16) }

// Slot returns the reply slot, or -1 if the message expects no reply.
func (m MessageSender) Slot() int { return int(uint16(m)) - 1 }

// String implements fmt.Stringer.String.
func (m MessageSender) String() string {
	return fmt.Sprintf("%v/slot%d", m.SID(), m.Slot())
}

// NoReply is the slot value of messages that expect no reply.
const NoReply = -1

// MemoryFlags are the access permissions of a mapped page.
type MemoryFlags uint32

// Memory flags.
const (
	MemoryRead MemoryFlags = 1 << iota
	MemoryWrite
	MemoryExecute

	MemoryReadWrite = MemoryRead | MemoryWrite

	memoryFlagsMask = MemoryRead | MemoryWrite | MemoryExecute
)

// Valid returns true if f holds only known flags.
func (f MemoryFlags) Valid() bool {
	return f&^memoryFlagsMask == 0
}

// String implements fmt.Stringer.String.
func (f MemoryFlags) String() string {
	var b strings.Builder
	for _, p := range []struct {
		flag MemoryFlags
		c    byte
	}{{MemoryRead, 'r'}, {MemoryWrite, 'w'}, {MemoryExecute, 'x'}} {
		if f&p.flag != 0 {
			b.WriteByte(p.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// MemoryRange is a page-aligned region of a process address space.
type MemoryRange struct {
	Base hostarch.Addr
	Size uint64
}

// AddrRange returns r as [Base, Base+Size).
func (r MemoryRange) AddrRange() hostarch.AddrRange {
	return hostarch.AddrRange{Start: r.Base, End: r.Base + hostarch.Addr(r.Size)}
}

// IsPageAligned returns true if both the base and the size of r are page
// aligned.
func (r MemoryRange) IsPageAligned() bool {
	return r.Base.IsPageAligned() && hostarch.IsPageAligned(r.Size)
}

// String implements fmt.Stringer.String.
func (r MemoryRange) String() string {
	return fmt.Sprintf("%v+%#x", r.Base, r.Size)
}
