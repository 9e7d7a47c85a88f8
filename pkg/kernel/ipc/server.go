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

package ipc

import (
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/mm"
)

// Queued is a message waiting in a server queue.
type Queued struct {
	// Envelope is the message as it will be delivered. For memory messages
	// Envelope.Body.Buf still names the range in the sender.
	Envelope xous.MessageEnvelope

	SenderPID xous.PID
	SenderTID xous.TID

	// Transfer holds the frames of memory messages.
	Transfer mm.Transfer
}

// PendingReply is a delivered or queued blocking message whose sender is
// waiting for a reply.
type PendingReply struct {
	SenderPID xous.PID
	SenderTID xous.TID
	Kind      xous.MessageKind

	// Transfer holds the lent frames of borrows.
	Transfer mm.Transfer

	// Delivered is set once the message has been handed to a server
	// context.
	Delivered bool

	// Mapped is the range of a delivered borrow in the server.
	Mapped xous.MemoryRange

	// Orphaned is set when the sender terminates before the reply.
	Orphaned bool
}

// Server is a named message endpoint owned by one process.
type Server struct {
	sid   xous.SID
	name  string
	owner xous.PID

	// queue holds undelivered messages, oldest first.
	queue      []Queued
	queueDepth int

	// available holds the contexts of the owner parked to receive, in
	// the order they parked.
	available []xous.TID

	// replies are the reply slots. A nil entry is free.
	replies []*PendingReply
}

func newServer(sid xous.SID, name string, owner xous.PID, queueDepth, replySlots int) *Server {
	return &Server{
		sid:        sid,
		name:       name,
		owner:      owner,
		queueDepth: queueDepth,
		replies:    make([]*PendingReply, replySlots),
	}
}

// SID returns the server ID.
func (s *Server) SID() xous.SID { return s.sid }

// Name returns the registered name.
func (s *Server) Name() string { return s.name }

// Owner returns the PID of the process that created the server.
func (s *Server) Owner() xous.PID { return s.owner }

// QueueLen returns the number of undelivered messages.
func (s *Server) QueueLen() int { return len(s.queue) }

// QueueFull returns true if QueueMessage would fail.
func (s *Server) QueueFull() bool { return len(s.queue) >= s.queueDepth }

// QueueMessage appends q to the queue.
func (s *Server) QueueMessage(q Queued) error {
	if s.QueueFull() {
		return kernerr.QueueFull
	}
	s.queue = append(s.queue, q)
	return nil
}

// PeekMessage returns the oldest queued message without removing it.
func (s *Server) PeekMessage() (*Queued, bool) {
	if len(s.queue) == 0 {
		return nil, false
	}
	return &s.queue[0], true
}

// TakeNextMessage removes and returns the oldest queued message.
func (s *Server) TakeNextMessage() (Queued, bool) {
	if len(s.queue) == 0 {
		return Queued{}, false
	}
	q := s.queue[0]
	s.queue[0] = Queued{}
	s.queue = s.queue[1:]
	return q, true
}

// RemoveMessages removes every queued message for which match returns true
// and returns them, oldest first.
func (s *Server) RemoveMessages(match func(q *Queued) bool) []Queued {
	var removed []Queued
	kept := s.queue[:0]
	for _, q := range s.queue {
		if match(&q) {
			removed = append(removed, q)
			continue
		}
		kept = append(kept, q)
	}
	clear(s.queue[len(kept):])
	s.queue = kept
	return removed
}

// ParkContext records tid as waiting for a message.
func (s *Server) ParkContext(tid xous.TID) {
	s.available = append(s.available, tid)
}

// AvailableContext returns the context that would receive the next message
// without removing it.
func (s *Server) AvailableContext() (xous.TID, bool) {
	if len(s.available) == 0 {
		return 0, false
	}
	return s.available[0], true
}

// TakeAvailableContext removes and returns the longest waiting context.
func (s *Server) TakeAvailableContext() (xous.TID, bool) {
	tid, ok := s.AvailableContext()
	if ok {
		s.available = s.available[1:]
	}
	return tid, ok
}

// UnparkContext forgets tid, returning true if it was waiting.
func (s *Server) UnparkContext(tid xous.TID) bool {
	for i, t := range s.available {
		if t == tid {
			s.available = append(s.available[:i], s.available[i+1:]...)
			return true
		}
	}
	return false
}

// AvailableContexts returns the waiting contexts, longest waiting first.
func (s *Server) AvailableContexts() []xous.TID {
	return append([]xous.TID(nil), s.available...)
}

// HasFreeReply returns true if AllocReply would succeed.
func (s *Server) HasFreeReply() bool {
	for _, r := range s.replies {
		if r == nil {
			return true
		}
	}
	return false
}

// AllocReply stores p in the lowest free reply slot and returns its index.
func (s *Server) AllocReply(p PendingReply) (int, error) {
	for i, r := range s.replies {
		if r == nil {
			s.replies[i] = &p
			return i, nil
		}
	}
	return 0, kernerr.QueueFull
}

// Reply returns the pending reply in slot. The returned value may be
// updated in place.
func (s *Server) Reply(slot int) (*PendingReply, error) {
	if slot < 0 || slot >= len(s.replies) || s.replies[slot] == nil {
		return nil, kernerr.BadAddress
	}
	return s.replies[slot], nil
}

// TakeReply frees slot and returns what it held.
func (s *Server) TakeReply(slot int) (PendingReply, error) {
	p, err := s.Reply(slot)
	if err != nil {
		return PendingReply{}, err
	}
	s.replies[slot] = nil
	return *p, nil
}

// PendingReplies returns the occupied slot indices in ascending order.
func (s *Server) PendingReplies() []int {
	var slots []int
	for i, r := range s.replies {
		if r != nil {
			slots = append(slots, i)
		}
	}
	return slots
}
