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
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"xkern.dev/xkern/pkg/kernel"

	// Register the syscall table.
	_ "xkern.dev/xkern/pkg/syscalls/xous"
)

func newKernel(t *testing.T, s *Scenario) *kernel.Kernel {
	t.Helper()
	conf := kernel.DefaultConfig()
	conf.RAMSize = 64 << 12
	s.Kernel.Apply(&conf)
	k, err := kernel.New(conf)
	if err != nil {
		t.Fatalf("kernel.New failed: %v", err)
	}
	t.Cleanup(func() { k.Release() })
	return k
}

func run(t *testing.T, s *Scenario) (*Report, error) {
	t.Helper()
	return s.Run(newKernel(t, s))
}

func TestTestdata(t *testing.T) {
	files, err := filepath.Glob("testdata/*")
	if err != nil || len(files) == 0 {
		t.Fatalf("no scenarios in testdata: %v", err)
	}
	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			rep, err := run(t, s)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if len(rep.Steps) != len(s.Steps) {
				t.Errorf("ran %d of %d steps", len(rep.Steps), len(s.Steps))
			}
			if rep.Activations == 0 {
				t.Errorf("no transfers of control recorded")
			}
		})
	}
}

func TestHaltReport(t *testing.T) {
	s, err := Load("testdata/queue.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rep, err := run(t, s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Halted == nil {
		t.Fatalf("Run did not report the halt")
	}
	last := rep.Steps[len(rep.Steps)-1]
	want := StepResult{Step: len(s.Steps), Call: "Yield", PID: 1, TID: 1, Outcome: "Halt"}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Errorf("last step mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTOMLAndYAMLAgree(t *testing.T) {
	const tomlDoc = `
name = "same"

[kernel]
queue_depth = 3

[[step]]
as = 1
call = "MapMemory"
args = { size = 0x2000, flags = "rw" }
save = "buf"
`
	const yamlDoc = `
name: same
kernel:
  queue_depth: 3
step:
  - as: 1
    call: MapMemory
    args: {size: 0x2000, flags: rw}
    save: buf
`
	fromTOML, err := Parse([]byte(tomlDoc), TOML)
	if err != nil {
		t.Fatalf("Parse(TOML) failed: %v", err)
	}
	fromYAML, err := Parse([]byte(yamlDoc), YAML)
	if err != nil {
		t.Fatalf("Parse(YAML) failed: %v", err)
	}
	for _, s := range []*Scenario{fromTOML, fromYAML} {
		if s.Name != "same" || s.Kernel.QueueDepth != 3 || len(s.Steps) != 1 {
			t.Errorf("parsed %+v", s)
		}
		if _, err := run(t, s); err != nil {
			t.Errorf("Run of the %q scenario failed: %v", s.Name, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{"no steps", `name = "x"`},
		{"unknown key", "bogus = 1\n[[step]]\ncall = \"Yield\""},
		{"unknown step key", "[[step]]\ncall = \"Yield\"\nwhen = 3"},
		{"unknown call", "[[step]]\ncall = \"Fork\""},
		{"unknown expectation", "[[step]]\ncall = \"Yield\"\nexpect = \"Maybe\""},
		{"halt not last", "[[step]]\ncall = \"Yield\"\nexpect = \"Halt\"\n[[step]]\ncall = \"Yield\""},
		{"dotted label", "[[step]]\ncall = \"MapMemory\"\nsave = \"a.b\""},
	} {
		if _, err := Parse([]byte(tc.doc), TOML); err == nil {
			t.Errorf("%s: Parse succeeded", tc.name)
		}
	}
	if _, err := Parse([]byte("step:\n  - call: Yield\n    when: 3\n"), YAML); err == nil {
		t.Errorf("Parse accepted an unknown YAML field")
	}
	if _, err := FormatOf("x.json"); err == nil {
		t.Errorf("FormatOf accepted a .json file")
	}
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := Parse([]byte(doc), YAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return s
}

func TestStepFailures(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		step int
		want string
	}{
		{
			name: "wrong outcome",
			doc:  "step:\n  - call: MapMemory\n    args: {size: 100}\n    expect: Ok\n",
			step: 1,
			want: "got BadAlignment, want Ok",
		},
		{
			name: "unexpected error",
			doc:  "step:\n  - call: CreateServer\n    args: {name: a}\n  - call: CreateServer\n    args: {name: a}\n",
			step: 2,
			want: "ServerExists",
		},
		{
			name: "wrong process",
			doc:  "step:\n  - as: 2\n    call: Yield\n",
			step: 1,
			want: "PID1 is running, want PID2",
		},
		{
			name: "undefined label",
			doc:  "step:\n  - call: Connect\n    args: {sid: $nothing}\n",
			step: 1,
			want: "undefined label",
		},
		{
			name: "unknown argument",
			doc:  "step:\n  - call: Yield\n    args: {pid: 2}\n",
			step: 1,
			want: "unknown arguments",
		},
		{
			name: "failed check",
			doc:  "step:\n  - call: CreateProcess\n    check: {value: 9}\n",
			step: 1,
			want: "check \"value\"",
		},
		{
			name: "memory mismatch",
			doc:  "step:\n  - call: MapMemory\n    args: {size: 0x1000}\n    save: b\n  - call: ExpectMemory\n    args: {addr: $b, data: x}\n",
			step: 2,
			want: "want \"x\"",
		},
		{
			name: "nothing pending",
			doc:  "step:\n  - call: Resume\n",
			step: 1,
			want: "no pending return",
		},
	} {
		_, err := run(t, mustParse(t, tc.doc))
		var se *StepError
		if !errors.As(err, &se) {
			t.Errorf("%s: Run err = %v, want a *StepError", tc.name, err)
			continue
		}
		if se.Step != tc.step || !strings.Contains(se.Error(), tc.want) {
			t.Errorf("%s: Run err = %v, want step %d containing %q", tc.name, err, tc.step, tc.want)
		}
	}
}

func TestUnexpectedHalt(t *testing.T) {
	rep, err := run(t, mustParse(t, "step:\n  - call: WaitEvent\n"))
	var v *kernel.InvariantViolation
	if !errors.As(err, &v) {
		t.Fatalf("Run err = %v, want an *InvariantViolation", err)
	}
	if rep.Halted != nil {
		t.Errorf("unexpected halt reported as expected")
	}
	if got := rep.Steps[0].Outcome; got != "Halt" {
		t.Errorf("outcome = %q, want Halt", got)
	}
}

func TestOverridesApply(t *testing.T) {
	o := Overrides{
		RAMPages:   8,
		HeapPages:  2,
		QueueDepth: 1,
		Windows:    []Window{{Name: "uart", Base: 0xf000_0000, Size: 0x1000}},
	}
	conf := kernel.DefaultConfig()
	o.Apply(&conf)
	if conf.RAMSize != 8<<12 || conf.HeapMax != 2<<12 || conf.QueueDepth != 1 || conf.ReplySlots != kernel.DefaultConfig().ReplySlots {
		t.Errorf("Apply produced %+v", conf)
	}
	if len(conf.Windows) != 1 || conf.Windows[0].Name != "uart" || uint64(conf.Windows[0].Base) != 0xf000_0000 {
		t.Errorf("Apply windows = %+v", conf.Windows)
	}
}
