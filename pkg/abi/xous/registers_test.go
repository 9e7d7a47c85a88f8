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
	"testing"

	"github.com/google/go-cmp/cmp"
	"xkern.dev/xkern/pkg/abi/xous/errno"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
)

type fakeMemory map[hostarch.Addr]string

func (f fakeMemory) ReadAt(addr hostarch.Addr, dst []byte) error {
	s, ok := f[addr]
	if !ok {
		return kernerr.BadAddress
	}
	copy(dst, s)
	return nil
}

func TestDecode(t *testing.T) {
	mem := fakeMemory{0x4000: "ticktimer"}
	for _, tc := range []struct {
		name string
		regs Registers
		want SysCall
		err  error
	}{
		{
			name: "map memory",
			regs: Registers{uintptr(SysMapMemory), 0, 0x1000, 0x2000, uintptr(MemoryReadWrite)},
			want: MapMemory{Virt: 0x1000, Size: 0x2000, Flags: MemoryReadWrite},
		},
		{
			name: "scalar send",
			regs: Registers{uintptr(SysSendMessage), 3, uintptr(Scalar), 9, 1, 2, 3, 4},
			want: SendMessage{CID: 3, Message: Message{Kind: Scalar, ID: 9, Args: [4]uintptr{1, 2, 3, 4}}},
		},
		{
			name: "borrow send",
			regs: Registers{uintptr(SysSendMessage), 3, uintptr(MutableBorrow), 1, 0x5000, 0x1000, 8, 16},
			want: SendMessage{CID: 3, Message: Message{
				Kind:   MutableBorrow,
				ID:     1,
				Buf:    MemoryRange{Base: 0x5000, Size: 0x1000},
				Offset: 8,
				Valid:  16,
			}},
		},
		{
			name: "bad message kind",
			regs: Registers{uintptr(SysSendMessage), 3, 99},
			err:  kernerr.InternalError,
		},
		{
			name: "create server reads name",
			regs: Registers{uintptr(SysCreateServer), 0x4000, 9},
			want: CreateServer{Name: "ticktimer"},
		},
		{
			name: "create server name too long",
			regs: Registers{uintptr(SysCreateServer), 0x4000, MaxServerName + 1},
			err:  kernerr.InvalidString,
		},
		{
			name: "create server unreadable name",
			regs: Registers{uintptr(SysCreateServer), 0x8000, 4},
			err:  kernerr.BadAddress,
		},
		{
			name: "unknown syscall",
			regs: Registers{uintptr(MaxSysno) + 1},
			err:  kernerr.UnhandledSyscall,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.regs, mem)
			if err != tc.err {
				t.Fatalf("Decode() err = %v, want %v", err, tc.err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeCoversEverySysno(t *testing.T) {
	mem := fakeMemory{0: "x"}
	for _, call := range AllSysCalls() {
		regs := Registers{uintptr(call.Sysno())}
		if call.Sysno() == SysCreateServer {
			regs[2] = 1
		}
		if call.Sysno() == SysSendMessage {
			regs[2] = uintptr(Scalar)
		}
		got, err := Decode(regs, mem)
		if err != nil {
			t.Errorf("Decode(%v) failed: %v", call.Sysno(), err)
			continue
		}
		if got.Sysno() != call.Sysno() {
			t.Errorf("Decode(%v) = %v", call.Sysno(), got.Sysno())
		}
	}
}

func TestResultRegisters(t *testing.T) {
	sender := NewMessageSender(NewSID(2, 1), 3)
	for _, r := range []Result{
		Ok,
		Resume,
		RangeResult(MemoryRange{Base: 0x6000_0000, Size: 0x3000}),
		ServerIDResult(NewSID(4, 7)),
		Scalar2Result(5, 6),
		MessageResult(MessageEnvelope{
			Sender: sender,
			Body:   Message{Kind: ImmutableBorrow, ID: 2, Buf: MemoryRange{Base: 0x1000, Size: 0x1000}},
		}),
	} {
		got, err := DecodeResult(r.Registers())
		if err != nil {
			t.Errorf("DecodeResult(%v) failed: %v", r, err)
			continue
		}
		if diff := cmp.Diff(r, got); diff != "" {
			t.Errorf("DecodeResult(%v) mismatch (-want +got):\n%s", r, diff)
		}
	}

	if _, err := DecodeResult(ErrorRegisters(errno.ServerQueueFull)); err != kernerr.QueueFull {
		t.Errorf("DecodeResult(QueueFull) err = %v, want %v", err, kernerr.QueueFull)
	}
}

func TestMessageSender(t *testing.T) {
	sid := NewSID(12, 3)
	s := NewMessageSender(sid, 5)
	if s.SID() != sid || s.Slot() != 5 {
		t.Errorf("sender %v: got sid %v slot %d", s, s.SID(), s.Slot())
	}
	if n := NewMessageSender(sid, NoReply); n.Slot() != NoReply || n.SID() != sid {
		t.Errorf("no-reply sender %v: got sid %v slot %d", n, n.SID(), n.Slot())
	}
}
