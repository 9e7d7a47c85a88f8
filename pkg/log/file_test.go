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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPatternOpts(t *testing.T) {
	opts := PatternOpts{Prefix: "xkern", Command: "run", Start: time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)}
	for _, tc := range []struct {
		pattern string
		want    string
	}{
		{pattern: "/tmp/xkern.txt", want: "/tmp/xkern.txt"},
		{pattern: "/tmp/logs/", want: "/tmp/logs/xkern.log.20260102-030405.000006.run.txt"},
		{pattern: "/tmp/%COMMAND%-%TIMESTAMP%.log", want: "/tmp/run-20260102-030405.000006.log"},
	} {
		if got := opts.Build(tc.pattern); got != tc.want {
			t.Errorf("Build(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}

func TestOpenFile(t *testing.T) {
	f, err := OpenFile("", os.O_WRONLY|os.O_CREATE, PatternOpts{})
	if f != nil || err != nil {
		t.Errorf("OpenFile with no pattern = %v, %v, want nil, nil", f, err)
	}

	dir := filepath.Join(t.TempDir(), "nested") + "/"
	f, err = OpenFile(dir, os.O_WRONLY|os.O_CREATE, PatternOpts{Prefix: "test", Command: "run"})
	if err != nil {
		t.Fatalf("OpenFile(%q): %v", dir, err)
	}
	defer f.Close()
	if got := filepath.Dir(f.Name()); got != filepath.Clean(dir) {
		t.Errorf("log file %q is not in %q", f.Name(), dir)
	}
}
