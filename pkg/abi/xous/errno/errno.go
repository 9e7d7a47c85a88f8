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

// Package errno holds the kernel error numbers returned in the error
// register of a failed syscall.
package errno

import "fmt"

// Errno represents a kernel error number.
type Errno uint32

// Error numbers. Zero is never a valid error.
const (
	NoError Errno = iota
	BadAlignment
	BadAddress
	OutOfMemory
	MemoryInUse
	InterruptNotFound
	InterruptInUse
	InvalidString
	ServerExists
	ServerNotFound
	ProcessNotFound
	ProcessNotChild
	ProcessTerminated
	Timeout
	InternalError
	ServerQueueFull
	AccessDenied
	UseBeforeInit
	UnhandledSyscall

	// MaxErrno is one past the largest error number.
	MaxErrno
)

var names = [...]string{
	NoError:           "NoError",
	BadAlignment:      "BadAlignment",
	BadAddress:        "BadAddress",
	OutOfMemory:       "OutOfMemory",
	MemoryInUse:       "MemoryInUse",
	InterruptNotFound: "InterruptNotFound",
	InterruptInUse:    "InterruptInUse",
	InvalidString:     "InvalidString",
	ServerExists:      "ServerExists",
	ServerNotFound:    "ServerNotFound",
	ProcessNotFound:   "ProcessNotFound",
	ProcessNotChild:   "ProcessNotChild",
	ProcessTerminated: "ProcessTerminated",
	Timeout:           "Timeout",
	InternalError:     "InternalError",
	ServerQueueFull:   "QueueFull",
	AccessDenied:      "AccessDenied",
	UseBeforeInit:     "UseBeforeInit",
	UnhandledSyscall:  "UnhandledSyscall",
}

// String implements fmt.Stringer.String.
func (e Errno) String() string {
	if e < MaxErrno {
		return names[e]
	}
	return fmt.Sprintf("Errno(%d)", uint32(e))
}
