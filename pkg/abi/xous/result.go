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

// ResultKind is the variant of a syscall result, returned in a0.
type ResultKind uintptr

// Result kinds.
const (
	ResultError ResultKind = iota + 1
	ResultOk
	ResultMemoryRange
	ResultResumeProcess
	ResultMessage
	ResultThreadID
	ResultProcessID
	ResultServerID
	ResultConnectionID
	ResultScalar1
	ResultScalar2
	ResultMemoryReturned
)

var resultKindNames = map[ResultKind]string{
	ResultError:          "Error",
	ResultOk:             "Ok",
	ResultMemoryRange:    "MemoryRange",
	ResultResumeProcess:  "ResumeProcess",
	ResultMessage:        "Message",
	ResultThreadID:       "ThreadID",
	ResultProcessID:      "ProcessID",
	ResultServerID:       "ServerID",
	ResultConnectionID:   "ConnectionID",
	ResultScalar1:        "Scalar1",
	ResultScalar2:        "Scalar2",
	ResultMemoryReturned: "MemoryReturned",
}

// String implements fmt.Stringer.String.
func (k ResultKind) String() string {
	if name, ok := resultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ResultKind(%d)", uintptr(k))
}

// Result is the successful outcome of a syscall. Errors travel separately as
// Go errors and are encoded as ResultError only at the register boundary.
type Result struct {
	Kind ResultKind

	// Range is set for ResultMemoryRange.
	Range MemoryRange

	// Envelope is set for ResultMessage.
	Envelope MessageEnvelope

	// Scalars holds identifiers (ThreadID, ProcessID, ServerID,
	// ConnectionID), scalar replies, and the offset and valid hints of
	// MemoryReturned.
	Scalars [2]uintptr
}

// Canned results.
var (
	Ok     = Result{Kind: ResultOk}
	Resume = Result{Kind: ResultResumeProcess}
)

// RangeResult returns a ResultMemoryRange.
func RangeResult(r MemoryRange) Result {
	return Result{Kind: ResultMemoryRange, Range: r}
}

// MessageResult returns a ResultMessage.
func MessageResult(env MessageEnvelope) Result {
	return Result{Kind: ResultMessage, Envelope: env}
}

// ThreadIDResult returns a ResultThreadID.
func ThreadIDResult(tid TID) Result {
	return Result{Kind: ResultThreadID, Scalars: [2]uintptr{uintptr(tid)}}
}

// ProcessIDResult returns a ResultProcessID.
func ProcessIDResult(pid PID) Result {
	return Result{Kind: ResultProcessID, Scalars: [2]uintptr{uintptr(pid)}}
}

// ServerIDResult returns a ResultServerID.
func ServerIDResult(sid SID) Result {
	return Result{Kind: ResultServerID, Scalars: [2]uintptr{uintptr(sid)}}
}

// ConnectionIDResult returns a ResultConnectionID.
func ConnectionIDResult(cid CID) Result {
	return Result{Kind: ResultConnectionID, Scalars: [2]uintptr{uintptr(cid)}}
}

// Scalar1Result returns a ResultScalar1.
func Scalar1Result(a uintptr) Result {
	return Result{Kind: ResultScalar1, Scalars: [2]uintptr{a}}
}

// Scalar2Result returns a ResultScalar2.
func Scalar2Result(a, b uintptr) Result {
	return Result{Kind: ResultScalar2, Scalars: [2]uintptr{a, b}}
}

// MemoryReturnedResult returns a ResultMemoryReturned.
func MemoryReturnedResult(offset, valid uintptr) Result {
	return Result{Kind: ResultMemoryReturned, Scalars: [2]uintptr{offset, valid}}
}

// TID returns the thread ID of a ResultThreadID.
func (r Result) TID() TID { return TID(r.Scalars[0]) }

// PID returns the process ID of a ResultProcessID.
func (r Result) PID() PID { return PID(r.Scalars[0]) }

// SID returns the server ID of a ResultServerID.
func (r Result) SID() SID { return SID(r.Scalars[0]) }

// CID returns the connection ID of a ResultConnectionID.
func (r Result) CID() CID { return CID(r.Scalars[0]) }

// String implements fmt.Stringer.String.
func (r Result) String() string {
	switch r.Kind {
	case ResultMemoryRange:
		return fmt.Sprintf("MemoryRange(%v)", r.Range)
	case ResultMessage:
		return fmt.Sprintf("Message(%v, %v)", r.Envelope.Sender, r.Envelope.Body)
	case ResultThreadID, ResultProcessID, ResultServerID, ResultConnectionID, ResultScalar1:
		return fmt.Sprintf("%v(%d)", r.Kind, r.Scalars[0])
	case ResultScalar2, ResultMemoryReturned:
		return fmt.Sprintf("%v(%d, %d)", r.Kind, r.Scalars[0], r.Scalars[1])
	default:
		return r.Kind.String()
	}
}
