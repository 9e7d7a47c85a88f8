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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
)

func newTestRegistry() *Registry {
	return NewRegistry(Config{MaxServers: 2, QueueDepth: 2, ReplySlots: 1, MaxConnections: 2})
}

func TestCreateServerNames(t *testing.T) {
	for _, tc := range []struct {
		name string
		want error
	}{
		{name: "ticktimer", want: nil},
		{name: "", want: kernerr.InvalidString},
		{name: strings.Repeat("x", xous.MaxServerName), want: nil},
		{name: strings.Repeat("y", xous.MaxServerName+1), want: kernerr.InvalidString},
		{name: "bad\xff", want: kernerr.InvalidString},
	} {
		r := newTestRegistry()
		if _, err := r.CreateServer(2, tc.name); err != tc.want {
			t.Errorf("CreateServer(%q) err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestCreateServerExistsAndFull(t *testing.T) {
	r := newTestRegistry()
	sid, err := r.CreateServer(2, "a")
	if err != nil {
		t.Fatalf("CreateServer failed: %v", err)
	}
	if _, err := r.CreateServer(3, "a"); err != kernerr.ServerExists {
		t.Errorf("duplicate CreateServer err = %v, want %v", err, kernerr.ServerExists)
	}
	if got, ok := r.Lookup("a"); !ok || got != sid {
		t.Errorf("Lookup(a) = %v, %t, want %v, true", got, ok, sid)
	}
	if _, err := r.CreateServer(2, "b"); err != nil {
		t.Fatalf("CreateServer(b) failed: %v", err)
	}
	if _, err := r.CreateServer(2, "c"); err != kernerr.OutOfMemory {
		t.Errorf("CreateServer on a full registry err = %v, want %v", err, kernerr.OutOfMemory)
	}
	if got := r.ServerCount(); got != 2 {
		t.Errorf("ServerCount = %d, want 2", got)
	}
}

func TestStaleSID(t *testing.T) {
	r := newTestRegistry()
	old, _ := r.CreateServer(2, "a")
	cid, err := r.Connect(3, old)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := r.Remove(old); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := r.Server(old); err != kernerr.ServerNotFound {
		t.Errorf("Server(stale) err = %v, want %v", err, kernerr.ServerNotFound)
	}
	if _, err := r.ServerFromCID(3, cid); err != kernerr.ServerNotFound {
		t.Errorf("ServerFromCID(dangling) err = %v, want %v", err, kernerr.ServerNotFound)
	}

	// Reuse the slot. The old SID must not alias the new server.
	r.CreateServer(2, "b")
	fresh, _ := r.CreateServer(2, "a")
	if fresh == old {
		t.Fatalf("recreated server reused SID %v", old)
	}
	if _, err := r.Server(old); err != kernerr.ServerNotFound {
		t.Errorf("Server(stale) after reuse err = %v, want %v", err, kernerr.ServerNotFound)
	}
}

func TestServerMutOwner(t *testing.T) {
	r := newTestRegistry()
	sid, _ := r.CreateServer(2, "a")
	if _, err := r.ServerMut(2, sid); err != nil {
		t.Errorf("ServerMut by owner failed: %v", err)
	}
	if _, err := r.ServerMut(3, sid); err != kernerr.ServerNotFound {
		t.Errorf("ServerMut by other err = %v, want %v", err, kernerr.ServerNotFound)
	}
}

func TestConnectRefcount(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.CreateServer(2, "a")
	b, _ := r.CreateServer(2, "b")
	c1, err := r.Connect(3, a)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	c2, _ := r.Connect(3, a)
	if c1 != c2 {
		t.Errorf("second Connect = %d, want %d", c2, c1)
	}
	cb, _ := r.Connect(3, b)
	if diff := cmp.Diff([]xous.CID{c1, cb}, r.Connections(3)); diff != "" {
		t.Errorf("Connections mismatch (-want +got):\n%s", diff)
	}
	if err := r.Disconnect(3, c1); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if s, err := r.ServerFromCID(3, c1); err != nil || s.SID() != a {
		t.Errorf("ServerFromCID after one Disconnect = %v, %v, want %v", s, err, a)
	}
	r.Disconnect(3, c1)
	if _, err := r.ServerFromCID(3, c1); err != kernerr.ServerNotFound {
		t.Errorf("ServerFromCID after last Disconnect err = %v, want %v", err, kernerr.ServerNotFound)
	}
	if err := r.Disconnect(3, c1); err != kernerr.ServerNotFound {
		t.Errorf("Disconnect of a free CID err = %v, want %v", err, kernerr.ServerNotFound)
	}
	if _, err := r.ServerFromCID(4, c1); err != kernerr.ServerNotFound {
		t.Errorf("CID of another process resolved; err = %v", err)
	}
}

func TestQueueAndContexts(t *testing.T) {
	r := newTestRegistry()
	sid, _ := r.CreateServer(2, "a")
	s, _ := r.Server(sid)
	for i := 1; i <= 2; i++ {
		if err := s.QueueMessage(Queued{SenderPID: xous.PID(i + 2)}); err != nil {
			t.Fatalf("QueueMessage %d failed: %v", i, err)
		}
	}
	if err := s.QueueMessage(Queued{}); err != kernerr.QueueFull {
		t.Errorf("QueueMessage on a full queue err = %v, want %v", err, kernerr.QueueFull)
	}
	q, ok := s.TakeNextMessage()
	if !ok || q.SenderPID != 3 {
		t.Errorf("TakeNextMessage = %+v, %t, want sender 3", q, ok)
	}
	removed := s.RemoveMessages(func(q *Queued) bool { return q.SenderPID == 4 })
	if len(removed) != 1 || s.QueueLen() != 0 {
		t.Errorf("RemoveMessages(sender 4) = %d messages, queue %d, want 1, 0", len(removed), s.QueueLen())
	}

	s.ParkContext(1)
	s.ParkContext(2)
	if !s.UnparkContext(1) {
		t.Errorf("UnparkContext(1) = false, want true")
	}
	if tid, ok := s.TakeAvailableContext(); !ok || tid != 2 {
		t.Errorf("TakeAvailableContext = %d, %t, want 2, true", tid, ok)
	}
	if _, ok := s.TakeAvailableContext(); ok {
		t.Errorf("TakeAvailableContext on an empty set succeeded")
	}
}

func TestReplySlots(t *testing.T) {
	r := newTestRegistry()
	sid, _ := r.CreateServer(2, "a")
	s, _ := r.Server(sid)
	slot, err := s.AllocReply(PendingReply{SenderPID: 3, Kind: xous.BlockingScalar})
	if err != nil {
		t.Fatalf("AllocReply failed: %v", err)
	}
	if _, err := s.AllocReply(PendingReply{}); err != kernerr.QueueFull {
		t.Errorf("AllocReply with no free slot err = %v, want %v", err, kernerr.QueueFull)
	}
	p, err := s.TakeReply(slot)
	if err != nil || p.SenderPID != 3 {
		t.Errorf("TakeReply = %+v, %v, want sender 3", p, err)
	}
	if _, err := s.TakeReply(slot); err != kernerr.BadAddress {
		t.Errorf("TakeReply of a free slot err = %v, want %v", err, kernerr.BadAddress)
	}
	if !s.HasFreeReply() {
		t.Errorf("HasFreeReply = false after TakeReply")
	}
}
