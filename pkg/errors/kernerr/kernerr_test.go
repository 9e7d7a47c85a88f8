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

package kernerr

import (
	"fmt"
	"testing"

	"xkern.dev/xkern/pkg/abi/xous/errno"
	"xkern.dev/xkern/pkg/errors"
)

func TestErrnoTable(t *testing.T) {
	if got := FromErrno(errno.NoError); got != nil {
		t.Errorf("FromErrno(NoError) = %v, want nil", got)
	}
	for e := errno.NoError + 1; e < errno.MaxErrno; e++ {
		err := FromErrno(e)
		if err == nil {
			t.Errorf("FromErrno(%v) = nil", e)
			continue
		}
		if err.Errno() != e {
			t.Errorf("FromErrno(%v).Errno() = %v", e, err.Errno())
		}
		if got := ToErrno(err); got != e {
			t.Errorf("ToErrno(FromErrno(%v)) = %v", e, got)
		}
	}
	if got := FromErrno(errno.MaxErrno); got.Errno() != errno.MaxErrno {
		t.Errorf("FromErrno(MaxErrno) = %v, want the invalid sentinel", got)
	}
}

func TestToErrno(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want errno.Errno
	}{
		{name: "sentinel", err: QueueFull, want: errno.ServerQueueFull},
		{name: "wrapped", err: fmt.Errorf("mapping page: %w", BadAddress), want: errno.BadAddress},
		{name: "untyped", err: fmt.Errorf("boom"), want: errno.InternalError},
		// Same errno as BadAddress, but not the sentinel.
		{name: "impostor", err: errors.New(errno.BadAddress, "bad address"), want: errno.InternalError},
		{name: "invalid", err: FromErrno(errno.MaxErrno + 3), want: errno.InternalError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToErrno(tc.err); got != tc.want {
				t.Errorf("ToErrno(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
