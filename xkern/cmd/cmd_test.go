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

package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/kernel"
	"xkern.dev/xkern/pkg/scenario"
	_ "xkern.dev/xkern/pkg/syscalls/xous"
)

const testdata = "../../pkg/scenario/testdata"

func TestScenarioPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.toml", "notes.txt", "c.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.toml"), 0755); err != nil {
		t.Fatal(err)
	}
	single := filepath.Join(dir, "notes.txt")

	got, err := scenarioPaths([]string{dir, single})
	if err != nil {
		t.Fatalf("scenarioPaths: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.toml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "c.yml"),
		single,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scenarioPaths mismatch (-want +got):\n%s", diff)
	}

	if _, err := scenarioPaths([]string{t.TempDir()}); err == nil {
		t.Errorf("scenarioPaths succeeded on an empty directory")
	}
	if _, err := scenarioPaths([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Errorf("scenarioPaths succeeded on a missing path")
	}
}

func TestRunScenario(t *testing.T) {
	base := kernel.DefaultConfig()
	for _, tc := range []struct {
		file   string
		name   string
		halted bool
	}{
		{file: "borrow.toml", name: "borrow"},
		{file: "queue.yaml", name: "queue", halted: true},
	} {
		t.Run(tc.file, func(t *testing.T) {
			out := runScenario(filepath.Join(testdata, tc.file), base)
			if out.err != nil {
				t.Fatalf("runScenario: %v", out.err)
			}
			if out.name != tc.name {
				t.Errorf("name = %q, want %q", out.name, tc.name)
			}
			if got := out.report.Halted != nil; got != tc.halted {
				t.Errorf("halted = %t, want %t", got, tc.halted)
			}
			if out.report.Activations == 0 {
				t.Errorf("no activations recorded")
			}
		})
	}
	if base.Windows != nil {
		t.Errorf("base configuration modified: %+v", base.Windows)
	}
}

func TestRunScenarioLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[[step]]\ncall = \"Bogus\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out := runScenario(path, kernel.DefaultConfig())
	if out.err == nil {
		t.Fatalf("runScenario succeeded on %q", path)
	}
	if out.name != path {
		t.Errorf("name = %q, want %q", out.name, path)
	}
}

func TestPrintResults(t *testing.T) {
	results := []outcome{
		{
			name: "ok",
			report: &scenario.Report{
				Steps:       []scenario.StepResult{{Step: 1, Call: "Yield", PID: 2, TID: 1, Outcome: "ResumeProcess"}},
				Activations: 2,
			},
		},
		{
			name:   "halt",
			report: &scenario.Report{Steps: make([]scenario.StepResult, 3), Halted: &kernel.InvariantViolation{Message: "boom"}},
		},
		{
			name: "bad",
			err:  errors.New("step 1 (Yield): got Error, want Ok"),
		},
	}
	var buf bytes.Buffer
	if got := printResults(&buf, results, true, false); got != 1 {
		t.Errorf("printResults = %d failures, want 1", got)
	}
	want := strings.Join([]string{
		"SCENARIO\tRESULT\tSTEPS\tACTIVATIONS\tDETAIL",
		"ok\tPASS\t1\t2\t",
		"  1\tYield\tPID2:1\t\tResumeProcess",
		"halt\tHALT\t3\t0\tboom",
		"  0\t\tPID0:0\t\t",
		"  0\t\tPID0:0\t\t",
		"  0\t\tPID0:0\t\t",
		"bad\tFAIL\t0\t0\tstep 1 (Yield): got Error, want Ok",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("printResults mismatch (-want +got):\n%s", diff)
	}
}

func TestGetABIInfo(t *testing.T) {
	tables := []*kernel.SyscallTable{
		{
			ABI: "b",
			Table: map[xous.Sysno]kernel.Syscall{
				xous.SysYield:     {Name: "Yield"},
				xous.SysMapMemory: {Name: "MapMemory", Note: "partial"},
			},
		},
		{ABI: "a"},
	}
	info, err := getABIInfo(tables, "b")
	if err != nil {
		t.Fatalf("getABIInfo: %v", err)
	}
	want := ABIInfo{"b": {
		{Num: uintptr(xous.SysMapMemory), Name: "MapMemory", Note: "partial"},
		{Num: uintptr(xous.SysYield), Name: "Yield"},
	}}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("getABIInfo mismatch (-want +got):\n%s", diff)
	}

	all, err := getABIInfo(tables, abiAll)
	if err != nil {
		t.Fatalf("getABIInfo(all): %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, sortedABIs(all)); diff != "" {
		t.Errorf("ABIs mismatch (-want +got):\n%s", diff)
	}

	if _, err := getABIInfo(tables, "c"); err == nil {
		t.Errorf("getABIInfo succeeded for an unknown ABI")
	}
}

func TestOutputCSV(t *testing.T) {
	info := ABIInfo{
		"z": {{Num: 3, Name: "Three"}},
		"a": {{Num: 1, Name: "One", Note: "with, comma"}},
	}
	var buf bytes.Buffer
	if err := outputCSV(&buf, info); err != nil {
		t.Fatal(err)
	}
	want := "ABI,Num,Name,Note\na,1,One,\"with, comma\"\nz,3,Three,\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("outputCSV mismatch (-want +got):\n%s", diff)
	}
}
