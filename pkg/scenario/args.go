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

package scenario

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/abi/xous/errno"
	"xkern.dev/xkern/pkg/hostarch"
)

// Pseudo-calls and expectations that are not syscall outcomes.
const (
	callResume         = "Resume"
	callWrite          = "Write"
	callExpectMemory   = "ExpectMemory"
	callRaiseInterrupt = "RaiseInterrupt"
	callExpectContext  = "ExpectContext"

	expectHalt = "Halt"
)

var pseudoCalls = map[string]bool{
	callResume:         true,
	callWrite:          true,
	callExpectMemory:   true,
	callRaiseInterrupt: true,
	callExpectContext:  true,
}

var sysnoByName = func() map[string]xous.Sysno {
	m := make(map[string]xous.Sysno)
	for _, c := range xous.AllSysCalls() {
		m[c.Sysno().String()] = c.Sysno()
	}
	return m
}()

// outcomes holds every name a step may expect.
var outcomes = func() map[string]bool {
	m := map[string]bool{expectHalt: true}
	for k := xous.ResultOk; k <= xous.ResultMemoryReturned; k++ {
		m[k.String()] = true
	}
	for e := errno.NoError + 1; e < errno.MaxErrno; e++ {
		m[e.String()] = true
	}
	return m
}()

func knownCall(name string) bool {
	_, ok := sysnoByName[name]
	return ok || pseudoCalls[name]
}

func knownExpectation(name string) bool {
	return outcomes[name]
}

func messageKind(name string) (xous.MessageKind, bool) {
	for k := xous.Scalar; k <= xous.ImmutableBorrow; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// resultValues returns the named values of res that steps may check and
// save. "value" is the value a bare label refers to.
func resultValues(res xous.Result) map[string]uint64 {
	v := make(map[string]uint64)
	s0, s1 := uint64(res.Scalars[0]), uint64(res.Scalars[1])
	switch res.Kind {
	case xous.ResultMemoryRange:
		v["value"] = uint64(res.Range.Base)
		v["size"] = res.Range.Size
	case xous.ResultMessage:
		env := res.Envelope
		v["value"] = uint64(env.Sender)
		v["from"] = uint64(env.From)
		v["kind"] = uint64(env.Body.Kind)
		v["id"] = uint64(env.Body.ID)
		for i, arg := range env.Body.Args {
			v[fmt.Sprintf("arg%d", i)] = uint64(arg)
		}
		v["base"] = uint64(env.Body.Buf.Base)
		v["size"] = env.Body.Buf.Size
		v["offset"] = uint64(env.Body.Offset)
		v["valid"] = uint64(env.Body.Valid)
	case xous.ResultThreadID, xous.ResultProcessID, xous.ResultServerID, xous.ResultConnectionID, xous.ResultScalar1:
		v["value"] = s0
	case xous.ResultScalar2:
		v["value"], v["a"], v["b"] = s0, s0, s1
	case xous.ResultMemoryReturned:
		v["value"], v["offset"], v["valid"] = s0, s0, s1
	}
	return v
}

// argReader decodes the arguments of a step. The first error sticks; later
// reads return zero values.
type argReader struct {
	labels map[string]uint64
	m      map[string]any
	used   map[string]bool
	err    error
}

func newArgReader(labels map[string]uint64, m map[string]any) *argReader {
	return &argReader{labels: labels, m: m, used: make(map[string]bool)}
}

func (a *argReader) fail(format string, v ...any) {
	if a.err == nil {
		a.err = fmt.Errorf(format, v...)
	}
}

func (a *argReader) lookup(key string) (any, bool) {
	a.used[key] = true
	v, ok := a.m[key]
	return v, ok && a.err == nil
}

// finish returns the first decoding error, or an error naming arguments
// the call does not take.
func (a *argReader) finish() error {
	if a.err != nil {
		return a.err
	}
	var unknown []string
	for k := range a.m {
		if !a.used[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown arguments %q", unknown)
	}
	return nil
}

// number converts an argument value. Strings are numbers in Go syntax or
// label references, optionally summed with "+".
func (a *argReader) number(v any) (uint64, error) {
	switch v := v.(type) {
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	case string:
		var sum uint64
		for _, term := range strings.Split(v, "+") {
			term = strings.TrimSpace(term)
			var n uint64
			if name, ok := strings.CutPrefix(term, "$"); ok {
				if n, ok = a.labels[name]; !ok {
					return 0, fmt.Errorf("undefined label %q", name)
				}
			} else {
				var err error
				if n, err = strconv.ParseUint(term, 0, 64); err != nil {
					return 0, fmt.Errorf("bad number %q", term)
				}
			}
			sum += n
		}
		return sum, nil
	default:
		return 0, fmt.Errorf("value %v of type %T is not a number", v, v)
	}
}

func (a *argReader) u64(key string) uint64 {
	v, ok := a.lookup(key)
	if !ok {
		return 0
	}
	n, err := a.number(v)
	if err != nil {
		a.fail("argument %q: %v", key, err)
	}
	return n
}

func (a *argReader) u32(key string) uint32 {
	n := a.u64(key)
	if n > math.MaxUint32 {
		a.fail("argument %q: %#x does not fit in 32 bits", key, n)
		return 0
	}
	return uint32(n)
}

func (a *argReader) uptr(key string) uintptr { return uintptr(a.u64(key)) }

func (a *argReader) addr(key string) hostarch.Addr { return hostarch.Addr(a.u64(key)) }

func (a *argReader) pidOr(key string, def xous.PID) xous.PID {
	if _, ok := a.m[key]; !ok {
		a.used[key] = true
		return def
	}
	return xous.PID(a.u32(key))
}

func (a *argReader) str(key string) string {
	v, ok := a.lookup(key)
	if !ok {
		return ""
	}
	s, isString := v.(string)
	if !isString {
		a.fail("argument %q: %v is not a string", key, v)
	}
	return s
}

// flags decodes memory flags given as "rwx" letters or a number. Absent
// flags default to read-write.
func (a *argReader) flags(key string) xous.MemoryFlags {
	v, ok := a.lookup(key)
	if !ok {
		return xous.MemoryReadWrite
	}
	s, isString := v.(string)
	if !isString {
		return xous.MemoryFlags(a.u32(key))
	}
	var f xous.MemoryFlags
	for _, c := range s {
		switch c {
		case 'r':
			f |= xous.MemoryRead
		case 'w':
			f |= xous.MemoryWrite
		case 'x':
			f |= xous.MemoryExecute
		case '-':
		default:
			a.fail("argument %q: unknown flag %q", key, c)
		}
	}
	return f
}

func (a *argReader) memRange() xous.MemoryRange {
	return xous.MemoryRange{Base: a.addr("base"), Size: a.u64("size")}
}

func (a *argReader) message() xous.Message {
	name := a.str("kind")
	kind, ok := messageKind(name)
	if !ok {
		a.fail("argument \"kind\": unknown message kind %q", name)
	}
	m := xous.Message{
		Kind:   kind,
		ID:     a.uptr("id"),
		Offset: a.uptr("offset"),
		Valid:  a.uptr("valid"),
	}
	for i := range m.Args {
		m.Args[i] = a.uptr(fmt.Sprintf("arg%d", i))
	}
	if kind.IsMemory() {
		m.Buf = a.memRange()
	}
	return m
}

// sysCall builds the syscall name from the arguments.
func (a *argReader) sysCall(name string) xous.SysCall {
	switch sysnoByName[name] {
	case xous.SysMapMemory:
		return xous.MapMemory{Phys: a.addr("phys"), Virt: a.addr("virt"), Size: a.u64("size"), Flags: a.flags("flags")}
	case xous.SysUnmapMemory:
		return xous.UnmapMemory{Range: a.memRange()}
	case xous.SysIncreaseHeap:
		return xous.IncreaseHeap{Delta: a.u64("delta"), Flags: a.flags("flags")}
	case xous.SysDecreaseHeap:
		return xous.DecreaseHeap{Delta: a.u64("delta")}
	case xous.SysSwitchTo:
		return xous.SwitchTo{PID: xous.PID(a.u32("pid")), TID: xous.TID(a.u32("tid"))}
	case xous.SysClaimInterrupt:
		return xous.ClaimInterrupt{IRQ: a.u32("irq"), Callback: a.addr("callback"), Arg: a.uptr("arg")}
	case xous.SysFreeInterrupt:
		return xous.FreeInterrupt{IRQ: a.u32("irq")}
	case xous.SysYield:
		return xous.Yield{}
	case xous.SysWaitEvent:
		return xous.WaitEvent{}
	case xous.SysReceiveMessage:
		return xous.ReceiveMessage{SID: xous.SID(a.u32("sid"))}
	case xous.SysSendMessage:
		return xous.SendMessage{CID: xous.CID(a.u32("cid")), Message: a.message()}
	case xous.SysSpawnThread:
		return xous.SpawnThread{Entry: a.addr("entry"), Stack: a.addr("stack"), Arg: a.uptr("arg")}
	case xous.SysCreateServer:
		return xous.CreateServer{Name: a.str("name")}
	case xous.SysConnect:
		return xous.Connect{SID: xous.SID(a.u32("sid"))}
	case xous.SysDisconnect:
		return xous.Disconnect{CID: xous.CID(a.u32("cid"))}
	case xous.SysDestroyServer:
		return xous.DestroyServer{SID: xous.SID(a.u32("sid"))}
	case xous.SysReturnMemory:
		return xous.ReturnMemory{
			Sender: xous.MessageSender(a.u64("sender")),
			Range:  a.memRange(),
			Offset: a.uptr("offset"),
			Valid:  a.uptr("valid"),
		}
	case xous.SysReturnScalar1:
		return xous.ReturnScalar1{Sender: xous.MessageSender(a.u64("sender")), Arg: a.uptr("arg")}
	case xous.SysReturnScalar2:
		return xous.ReturnScalar2{Sender: xous.MessageSender(a.u64("sender")), Args: [2]uintptr{a.uptr("a"), a.uptr("b")}}
	case xous.SysCreateProcess:
		return xous.CreateProcess{Entry: a.addr("entry"), Stack: a.addr("stack"), Arg: a.uptr("arg")}
	case xous.SysTerminateProcess:
		return xous.TerminateProcess{Code: a.uptr("code")}
	default:
		a.fail("%q is not a syscall", name)
		return nil
	}
}
