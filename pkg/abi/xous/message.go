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

import "fmt"

// MessageKind is the payload variant of a message.
type MessageKind uintptr

// Message kinds.
const (
	// Scalar carries an ID and four words. The sender never waits.
	Scalar MessageKind = iota + 1

	// BlockingScalar carries an ID and four words. The sender waits for a
	// ReturnScalar1 or ReturnScalar2 reply.
	BlockingScalar

	// Move transfers a memory range to the receiver permanently. The
	// sender never waits.
	Move

	// MutableBorrow lends a memory range to the receiver, which may write
	// it, until the receiver replies with ReturnMemory.
	MutableBorrow

	// ImmutableBorrow lends a memory range to the receiver, which may only
	// read it, until the receiver replies with ReturnMemory.
	ImmutableBorrow
)

// Valid returns true if k is a known message kind.
func (k MessageKind) Valid() bool {
	return k >= Scalar && k <= ImmutableBorrow
}

// IsBlocking returns true if a sender of this kind waits for a reply.
func (k MessageKind) IsBlocking() bool {
	switch k {
	case BlockingScalar, MutableBorrow, ImmutableBorrow:
		return true
	}
	return false
}

// IsMemory returns true if the message carries a memory range.
func (k MessageKind) IsMemory() bool {
	switch k {
	case Move, MutableBorrow, ImmutableBorrow:
		return true
	}
	return false
}

// IsBorrow returns true if the message lends its memory range.
func (k MessageKind) IsBorrow() bool {
	return k == MutableBorrow || k == ImmutableBorrow
}

// String implements fmt.Stringer.String.
func (k MessageKind) String() string {
	switch k {
	case Scalar:
		return "Scalar"
	case BlockingScalar:
		return "BlockingScalar"
	case Move:
		return "Move"
	case MutableBorrow:
		return "MutableBorrow"
	case ImmutableBorrow:
		return "ImmutableBorrow"
	default:
		return fmt.Sprintf("MessageKind(%d)", uintptr(k))
	}
}

// Message is an IPC payload.
type Message struct {
	Kind MessageKind

	// ID is the opcode, interpreted by the receiving server only.
	ID uintptr

	// Args is the payload of scalar messages.
	Args [4]uintptr

	// Buf is the range carried by memory messages. On the sending side it is
	// an address in the sender; once delivered it is the address the range
	// was mapped at in the receiver.
	Buf MemoryRange

	// Offset and Valid are hints for memory messages.
	Offset uintptr
	Valid  uintptr
}

// String implements fmt.Stringer.String.
func (m Message) String() string {
	if m.Kind.IsMemory() {
		return fmt.Sprintf("%v{id=%d buf=%v off=%d valid=%d}", m.Kind, m.ID, m.Buf, m.Offset, m.Valid)
	}
	return fmt.Sprintf("%v{id=%d args=%v}", m.Kind, m.ID, m.Args)
}

// MessageEnvelope is a message as seen by the receiver.
type MessageEnvelope struct {
	Sender MessageSender

	// From is the sending process. It is informational and is not part of
	// the register encoding.
	From PID

	Body Message
}
