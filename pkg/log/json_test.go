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

package log

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLevelJSON(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Level
	}{
		{`"warning"`, Warning},
		{`"info"`, Info},
		{`"debug"`, Debug},
		{"0", Warning},
		{"1", Info},
		{"2", Debug},
	} {
		var lv Level
		if err := json.Unmarshal([]byte(tc.in), &lv); err != nil {
			t.Errorf("Unmarshal(%s): %v", tc.in, err)
			continue
		}
		if lv != tc.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tc.in, lv, tc.want)
		}
		b, err := json.Marshal(lv)
		if err != nil {
			t.Errorf("Marshal(%v): %v", lv, err)
			continue
		}
		var back Level
		if err := json.Unmarshal(b, &back); err != nil || back != lv {
			t.Errorf("round trip of %v = %v, %v", lv, back, err)
		}
	}
	var lv Level
	if err := json.Unmarshal([]byte(`"fatal"`), &lv); err == nil {
		t.Errorf("Unmarshal of an unknown level succeeded")
	}
}

func TestSplitTask(t *testing.T) {
	for _, tc := range []struct {
		msg, task, rest string
	}{
		{"PID2:1 Syscall: Yield", "2:1", "Syscall: Yield"},
		{"PID12:30 x", "12:30", "x"},
		{"PID2 halted", "", "PID2 halted"},
		{"PID:1 x", "", "PID:1 x"},
		{"PID2:1", "", "PID2:1"},
		{"Kernel started", "", "Kernel started"},
	} {
		task, rest := splitTask(tc.msg)
		if task != tc.task || rest != tc.rest {
			t.Errorf("splitTask(%q) = %q, %q, want %q, %q", tc.msg, task, rest, tc.task, tc.rest)
		}
	}
}

func TestJSONEmitter(t *testing.T) {
	tw := &testWriter{}
	e := JSONEmitter{&Writer{Next: tw}}
	ts := time.Date(2026, time.March, 4, 5, 6, 7, 0, time.UTC)
	e.Emit(0, Info, ts, "PID%d:%d Syscall: %s", 2, 1, "Yield")

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(tw.lines), tw.lines)
	}
	line := tw.lines[0]
	if line[len(line)-1] != '\n' {
		t.Errorf("line %q does not end in a newline", line)
	}
	var got jsonLog
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("Unmarshal(%q): %v", line, err)
	}
	if got.Caller == "" {
		t.Errorf("no caller in %q", line)
	}
	got.Caller = ""
	want := jsonLog{Msg: "Syscall: Yield", Level: Info, Time: ts, Task: "2:1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON log mismatch (-want +got):\n%s", diff)
	}
}
