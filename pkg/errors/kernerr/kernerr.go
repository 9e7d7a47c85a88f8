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

// Package kernerr contains kernel error codes exported as error interface
// pointers. This allows for fast comparison and return operations comparable
// to errno.Errno constants.
package kernerr

import (
	stderrors "errors"

	"xkern.dev/xkern/pkg/abi/xous/errno"
	"xkern.dev/xkern/pkg/errors"
)

// The following errors are the only values a syscall handler may return to a
// process. Any other error is reported to the process as InternalError.
var (
	noError           *errors.Error = nil
	BadAlignment                    = errors.New(errno.BadAlignment, "bad alignment")
	BadAddress                      = errors.New(errno.BadAddress, "bad address")
	OutOfMemory                     = errors.New(errno.OutOfMemory, "out of memory")
	MemoryInUse                     = errors.New(errno.MemoryInUse, "memory in use")
	InterruptNotFound               = errors.New(errno.InterruptNotFound, "interrupt not found")
	InterruptInUse                  = errors.New(errno.InterruptInUse, "interrupt in use")
	InvalidString                   = errors.New(errno.InvalidString, "invalid string")
	ServerExists                    = errors.New(errno.ServerExists, "server exists")
	ServerNotFound                  = errors.New(errno.ServerNotFound, "server not found")
	ProcessNotFound                 = errors.New(errno.ProcessNotFound, "process not found")
	ProcessNotChild                 = errors.New(errno.ProcessNotChild, "process not a child")
	ProcessTerminated               = errors.New(errno.ProcessTerminated, "process terminated")
	Timeout                         = errors.New(errno.Timeout, "timed out")
	InternalError                   = errors.New(errno.InternalError, "internal error")
	QueueFull                       = errors.New(errno.ServerQueueFull, "server queue full")
	AccessDenied                    = errors.New(errno.AccessDenied, "access denied")
	UseBeforeInit                   = errors.New(errno.UseBeforeInit, "use before init")
	UnhandledSyscall                = errors.New(errno.UnhandledSyscall, "unhandled syscall")
)

var errNotValidError = errors.New(errno.MaxErrno, "not a valid error")

var errnoToError = [errno.MaxErrno]*errors.Error{
	errno.NoError:           noError,
	errno.BadAlignment:      BadAlignment,
	errno.BadAddress:        BadAddress,
	errno.OutOfMemory:       OutOfMemory,
	errno.MemoryInUse:       MemoryInUse,
	errno.InterruptNotFound: InterruptNotFound,
	errno.InterruptInUse:    InterruptInUse,
	errno.InvalidString:     InvalidString,
	errno.ServerExists:      ServerExists,
	errno.ServerNotFound:    ServerNotFound,
	errno.ProcessNotFound:   ProcessNotFound,
	errno.ProcessNotChild:   ProcessNotChild,
	errno.ProcessTerminated: ProcessTerminated,
	errno.Timeout:           Timeout,
	errno.InternalError:     InternalError,
	errno.ServerQueueFull:   QueueFull,
	errno.AccessDenied:      AccessDenied,
	errno.UseBeforeInit:     UseBeforeInit,
	errno.UnhandledSyscall:  UnhandledSyscall,
}

// FromErrno returns the *errors.Error for the given errno. Out of range
// values map to a sentinel that is never equal to a known error.
func FromErrno(e errno.Errno) *errors.Error {
	if e >= errno.MaxErrno {
		return errNotValidError
	}
	return errnoToError[e]
}

// ToErrno translates err to the errno reported to a process. Errors that do
// not wrap one of the values above become InternalError.
func ToErrno(err error) errno.Errno {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Errno() < errno.MaxErrno && errnoToError[e.Errno()] == e {
		return e.Errno()
	}
	return errno.InternalError
}
