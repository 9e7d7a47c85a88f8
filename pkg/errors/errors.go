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

// Package errors holds the standardized error definition for xkern.
//
// An Error is what a syscall reports to a process: an errno, which crosses
// the register ABI, and a message, which only the kernel log sees.
package errors

import (
	"fmt"

	"xkern.dev/xkern/pkg/abi/xous/errno"
)

// Error represents a kernel errno with a descriptive message. Errors are
// compared by identity; see package kernerr for the values in use.
type Error struct {
	errno   errno.Errno
	message string
}

// New creates a new *Error.
func New(err errno.Errno, message string) *Error {
	return &Error{
		errno:   err,
		message: message,
	}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Errno returns the underlying errno.Errno value.
func (e *Error) Errno() errno.Errno { return e.errno }

// Name returns the name of the errno, as used in syscall listings and
// scenario expectations.
func (e *Error) Name() string { return e.errno.String() }

// Format implements fmt.Formatter. The %+v verb adds the errno name.
func (e *Error) Format(s fmt.State, verb rune) {
	switch {
	case verb == 'v' && s.Flag('+'):
		fmt.Fprintf(s, "%s (%s)", e.message, e.Name())
	case verb == 'v' || verb == 's':
		fmt.Fprint(s, e.message)
	case verb == 'q':
		fmt.Fprintf(s, "%q", e.message)
	default:
		fmt.Fprintf(s, "%%!%c(*errors.Error=%s)", verb, e.message)
	}
}
