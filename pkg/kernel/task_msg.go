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
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/kernel/ipc"
	"xkern.dev/xkern/pkg/mm"
)

// CreateServer registers a server named name owned by the process of t.
func (t *Task) CreateServer(name string) (xous.SID, error) {
	sid, err := t.k.ipc.CreateServer(t.pid, name)
	if err != nil {
		return 0, err
	}
	t.Debugf("Created server %q as %v", name, sid)
	return sid, nil
}

// Connect opens a connection from the process of t to sid.
func (t *Task) Connect(sid xous.SID) (xous.CID, error) {
	return t.k.ipc.Connect(t.pid, sid)
}

// Disconnect closes a connection of the process of t.
func (t *Task) Disconnect(cid xous.CID) error {
	return t.k.ipc.Disconnect(t.pid, cid)
}

// wakeContext wakes context tid of pid, which must be parked for want. It
// returns false if the process no longer exists.
func (k *Kernel) wakeContext(pid xous.PID, tid xous.TID, want WaitReason, ret SyscallReturn) bool {
	p, ok := k.procs[pid]
	if !ok {
		return false
	}
	c, ok := p.contexts[tid]
	if !ok || c.state != ContextParked || c.wait != want {
		k.Fatalf("waking PID%d:%d for %v, but it is not waiting for it", pid, tid, want)
	}
	c.wake(ret)
	return true
}

// checkMessageMemory validates the range of a memory message of kind sent
// by t. Lent heap pages come back with the reply, but moved ones would not.
func (t *Task) checkMessageMemory(kind xous.MessageKind, r xous.MemoryRange) error {
	if !r.IsPageAligned() {
		return kernerr.BadAlignment
	}
	if r.Base == 0 || r.Size == 0 {
		return kernerr.BadAddress
	}
	if err := t.CheckUserRange(r.Base, r.Size); err != nil {
		return err
	}
	if kind == xous.Move {
		if err := t.CheckOutsideHeap(r); err != nil {
			return err
		}
	}
	return t.k.mm.CheckOwned(t.pid, r)
}

// SendMessage sends msg over connection cid.
//
// If a context of the server is waiting, the message is handed to it
// directly: memory is mapped into the server and the receiver becomes Ready.
// Otherwise the message is queued. Senders of Scalar and Move messages keep
// the CPU. Senders of blocking messages are parked until the reply, and the
// CPU goes to the receiver, or to the parent when the message was queued.
//
// All checks happen before any state changes, so a failed send has no
// effect.
func (t *Task) SendMessage(cid xous.CID, msg xous.Message) (xous.Result, *SyscallControl, error) {
	k := t.k
	if !msg.Kind.Valid() {
		return xous.Result{}, nil, kernerr.InternalError
	}
	s, err := k.ipc.ServerFromCID(t.pid, cid)
	if err != nil {
		return xous.Result{}, nil, err
	}
	pages := 0
	if msg.Kind.IsMemory() {
		if err := t.checkMessageMemory(msg.Kind, msg.Buf); err != nil {
			return xous.Result{}, nil, err
		}
		pages = hostarch.Pages(msg.Buf.Size)
	}
	blocking := msg.Kind.IsBlocking()
	receiver, direct := s.AvailableContext()
	if blocking && !direct {
		if err := t.checkParentRunnable("blocking SendMessage with no receiver"); err != nil {
			return xous.Result{}, nil, err
		}
	}
	if (!direct && s.QueueFull()) || (blocking && !s.HasFreeReply()) {
		queueFullCounter.Increment()
		queueFullLogger.Warningf("PID%d:%d Server %v (%q) is full, refusing %v", t.pid, t.tid, s.SID(), s.Name(), msg.Kind)
		return xous.Result{}, nil, kernerr.QueueFull
	}
	if direct && pages > 0 {
		if err := k.mm.CheckAttach(s.Owner(), pages); err != nil {
			return xous.Result{}, nil, err
		}
	}

	var tr mm.Transfer
	switch {
	case msg.Kind.IsBorrow():
		tr, err = k.mm.Lend(t.pid, msg.Buf)
	case msg.Kind == xous.Move:
		tr, err = k.mm.Detach(t.pid, msg.Buf)
	}
	if err != nil {
		k.Fatalf("taking validated range %v from PID%d: %v", msg.Buf, t.pid, err)
	}
	slot := xous.NoReply
	if blocking {
		slot, err = s.AllocReply(ipc.PendingReply{
			SenderPID: t.pid,
			SenderTID: t.tid,
			Kind:      msg.Kind,
			Transfer:  tr,
		})
		if err != nil {
			k.Fatalf("reply slot of %v vanished: %v", s.SID(), err)
		}
	}
	env := xous.MessageEnvelope{
		Sender: xous.NewMessageSender(s.SID(), slot),
		From:   t.pid,
		Body:   msg,
	}

	if !direct {
		if err := s.QueueMessage(ipc.Queued{Envelope: env, SenderPID: t.pid, SenderTID: t.tid, Transfer: tr}); err != nil {
			k.Fatalf("queue of %v filled up: %v", s.SID(), err)
		}
		if !blocking {
			return xous.Ok, nil, nil
		}
		t.parkAndYieldToParent(WaitReply, s.SID())
		return xous.Result{}, ctrlSwitched, nil
	}

	s.TakeAvailableContext()
	env = k.deliver(s, env, tr)
	k.wakeContext(s.Owner(), receiver, WaitMessage, SyscallReturn{Result: xous.MessageResult(env)})
	if !blocking {
		return xous.Ok, nil, nil
	}
	t.context().park(WaitReply, s.SID())
	if _, err := k.ActivateProcessContext(s.Owner(), receiver, false, false); err != nil {
		k.Fatalf("woken receiver PID%d:%d cannot run: %v", s.Owner(), receiver, err)
	}
	return xous.Result{}, ctrlSwitched, nil
}

// deliver maps the memory of env into the server owner and records the
// delivery in its reply slot. It returns the envelope as the receiver sees
// it.
func (k *Kernel) deliver(s *ipc.Server, env xous.MessageEnvelope, tr mm.Transfer) xous.MessageEnvelope {
	if env.Body.Kind.IsMemory() {
		r, err := k.mm.Attach(s.Owner(), tr, env.Body.Kind)
		if err != nil {
			k.Fatalf("mapping %v into PID%d: %v", env.Body.Buf, s.Owner(), err)
		}
		env.Body.Buf = r
	}
	if slot := env.Sender.Slot(); slot != xous.NoReply {
		p, err := s.Reply(slot)
		if err != nil {
			k.Fatalf("reply slot %d of %v vanished: %v", slot, s.SID(), err)
		}
		p.Delivered = true
		if p.Kind.IsBorrow() {
			p.Mapped = env.Body.Buf
		}
	}
	return env
}

// ReceiveMessage returns the next message for sid, which must be owned by
// the process of t. If none is queued, the context is parked on the server
// and the CPU goes to the parent.
func (t *Task) ReceiveMessage(sid xous.SID) (xous.Result, *SyscallControl, error) {
	k := t.k
	s, err := k.ipc.ServerMut(t.pid, sid)
	if err != nil {
		return xous.Result{}, nil, err
	}
	if q, ok := s.PeekMessage(); ok {
		if q.Envelope.Body.Kind.IsMemory() {
			if err := k.mm.CheckAttach(t.pid, len(q.Transfer.Frames)); err != nil {
				return xous.Result{}, nil, err
			}
		}
		next, _ := s.TakeNextMessage()
		return xous.MessageResult(k.deliver(s, next.Envelope, next.Transfer)), nil, nil
	}
	if err := t.checkParentRunnable("ReceiveMessage with no message"); err != nil {
		return xous.Result{}, nil, err
	}
	s.ParkContext(t.tid)
	t.parkAndYieldToParent(WaitMessage, sid)
	return xous.Result{}, ctrlSwitched, nil
}

// pendingReply resolves a sender token held by t.
func (t *Task) pendingReply(sender xous.MessageSender) (*ipc.Server, *ipc.PendingReply, error) {
	s, err := t.k.ipc.ServerMut(t.pid, sender.SID())
	if err != nil {
		return nil, nil, err
	}
	p, err := s.Reply(sender.Slot())
	if err != nil {
		return nil, nil, err
	}
	if !p.Delivered {
		return nil, nil, kernerr.BadAddress
	}
	return s, p, nil
}

// ReturnScalar answers a BlockingScalar message with one or two words. The
// parked sender becomes Ready with the reply as its return.
func (t *Task) ReturnScalar(sender xous.MessageSender, args []uintptr) error {
	s, p, err := t.pendingReply(sender)
	if err != nil {
		return err
	}
	if p.Kind != xous.BlockingScalar {
		return kernerr.BadAddress
	}
	reply, _ := s.TakeReply(sender.Slot())
	if reply.Orphaned {
		return kernerr.ProcessTerminated
	}
	res := xous.Scalar1Result(args[0])
	if len(args) > 1 {
		res = xous.Scalar2Result(args[0], args[1])
	}
	t.k.wakeContext(reply.SenderPID, reply.SenderTID, WaitReply, SyscallReturn{Result: res})
	return nil
}

// ReturnMemory answers a borrow. r must be the range the borrow was mapped
// at. The memory leaves the process of t and returns to the sender at its
// original address, and the sender becomes Ready with the offset and valid
// hints.
func (t *Task) ReturnMemory(sender xous.MessageSender, r xous.MemoryRange, offset, valid uintptr) error {
	k := t.k
	s, p, err := t.pendingReply(sender)
	if err != nil {
		return err
	}
	if !p.Kind.IsBorrow() || r != p.Mapped {
		return kernerr.BadAddress
	}
	frames, err := k.mm.Unattach(t.pid, r)
	if err != nil {
		return err
	}
	reply, _ := s.TakeReply(sender.Slot())
	if reply.Orphaned {
		if err := k.mm.FreeFrames(frames); err != nil {
			k.Fatalf("freeing memory of terminated PID%d: %v", reply.SenderPID, err)
		}
		return kernerr.ProcessTerminated
	}
	if err := k.mm.Unlend(reply.SenderPID, reply.Transfer.Origin); err != nil {
		k.Fatalf("restoring %v to PID%d: %v", reply.Transfer.Origin, reply.SenderPID, err)
	}
	k.wakeContext(reply.SenderPID, reply.SenderTID, WaitReply, SyscallReturn{Result: xous.MemoryReturnedResult(offset, valid)})
	return nil
}

// DestroyServer destroys sid, which must be owned by the process of t.
func (t *Task) DestroyServer(sid xous.SID) error {
	if _, err := t.k.ipc.ServerMut(t.pid, sid); err != nil {
		return err
	}
	t.Debugf("Destroying server %v", sid)
	return t.k.destroyServer(sid)
}

// destroyServer unregisters sid. Moved memory that was never received is
// freed. Senders waiting for a reply get their memory back and wake with
// ServerNotFound, and so do contexts waiting to receive.
func (k *Kernel) destroyServer(sid xous.SID) error {
	s, err := k.ipc.Remove(sid)
	if err != nil {
		return err
	}
	for {
		q, ok := s.TakeNextMessage()
		if !ok {
			break
		}
		if q.Envelope.Body.Kind == xous.Move {
			if err := k.mm.FreeFrames(q.Transfer.Frames); err != nil {
				k.Fatalf("freeing moved memory queued on %v: %v", sid, err)
			}
		}
	}
	for _, slot := range s.PendingReplies() {
		p, _ := s.TakeReply(slot)
		borrow := p.Kind.IsBorrow()
		if borrow && p.Delivered {
			if _, err := k.mm.Unattach(s.Owner(), p.Mapped); err != nil {
				k.Fatalf("unmapping borrow %v from PID%d: %v", p.Mapped, s.Owner(), err)
			}
		}
		if p.Orphaned {
			if borrow {
				if err := k.mm.FreeFrames(p.Transfer.Frames); err != nil {
					k.Fatalf("freeing memory of terminated PID%d: %v", p.SenderPID, err)
				}
			}
			continue
		}
		if borrow {
			if err := k.mm.Unlend(p.SenderPID, p.Transfer.Origin); err != nil {
				k.Fatalf("restoring %v to PID%d: %v", p.Transfer.Origin, p.SenderPID, err)
			}
		}
		k.wakeContext(p.SenderPID, p.SenderTID, WaitReply, SyscallReturn{Err: kernerr.ServerNotFound})
	}
	for _, tid := range s.AvailableContexts() {
		k.wakeContext(s.Owner(), tid, WaitMessage, SyscallReturn{Err: kernerr.ServerNotFound})
	}
	return nil
}

// withdrawMessagesFrom cancels the blocking messages of a terminating
// process. Queued ones are removed, with borrowed memory returned to pid;
// delivered ones are orphaned.
func (k *Kernel) withdrawMessagesFrom(pid xous.PID) {
	k.ipc.ForAllServers(func(s *ipc.Server) {
		withdrawn := s.RemoveMessages(func(q *ipc.Queued) bool {
			return q.SenderPID == pid && q.Envelope.Body.Kind.IsBlocking()
		})
		for _, q := range withdrawn {
			if _, err := s.TakeReply(q.Envelope.Sender.Slot()); err != nil {
				k.Fatalf("reply slot of queued message on %v vanished: %v", s.SID(), err)
			}
			if q.Envelope.Body.Kind.IsBorrow() {
				if err := k.mm.Unlend(pid, q.Transfer.Origin); err != nil {
					k.Fatalf("restoring %v to PID%d: %v", q.Transfer.Origin, pid, err)
				}
			}
		}
		for _, slot := range s.PendingReplies() {
			if p, _ := s.Reply(slot); p.SenderPID == pid {
				p.Orphaned = true
			}
		}
	})
}
