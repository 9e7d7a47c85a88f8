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
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

// String returns everything written so far.
func (w *testWriter) String() string {
	return strings.Join(w.lines, "")
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	want := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("Writer output mismatch (-want +got):\n%s", diff)
	}
}

func TestGoogleEmitter(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2026, time.March, 4, 5, 6, 7, 8000, time.UTC)
	e.Emit(0, Warning, ts, "PID%d: %s", 3, "halted")

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(tw.lines), tw.lines)
	}
	re := regexp.MustCompile(`^W0304 05:06:07\.000008 +\d+ log_test\.go:\d+\] PID3: halted\n$`)
	if !re.MatchString(tw.lines[0]) {
		t.Errorf("line %q does not match %v", tw.lines[0], re)
	}
}

func TestBasicLoggerLevel(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}
	l.Debugf("hidden")
	l.Infof("shown %d", 1)
	l.SetLevel(Debug)
	l.Debugf("shown %d", 2)

	if diff := cmp.Diff("shown 1\nshown 2\n", tw.String()); diff != "" {
		t.Errorf("logger output mismatch (-want +got):\n%s", diff)
	}
}

func TestMultiEmitter(t *testing.T) {
	a, b := &testWriter{}, &testWriter{}
	m := &MultiEmitter{&Writer{Next: a}, &Writer{Next: b}}
	m.Emit(0, Info, time.Now(), "both")
	if a.String() != "both\n" || b.String() != "both\n" {
		t.Errorf("got %q and %q, want both on each", a.String(), b.String())
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	l := RateLimitedLogger(&BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}, time.Hour)
	for i := 0; i < 10; i++ {
		l.Warningf("queue full %d", i)
	}
	if diff := cmp.Diff("queue full 0\n", tw.String()); diff != "" {
		t.Errorf("rate limited output mismatch (-want +got):\n%s", diff)
	}
}

func TestRateLimitedLoggerCountsSuppressed(t *testing.T) {
	tw := &testWriter{}
	rl := RateLimitedLogger(&BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}, time.Hour).(*rateLimitedLogger)
	rl.Infof("first")
	rl.Infof("dropped")
	rl.Warningf("dropped %d", 2)
	rl.limit.SetLimit(rate.Inf)
	rl.Infof("next %s", "one")
	rl.Infof("last")

	want := "first\nnext one (2 similar messages suppressed)\nlast\n"
	if diff := cmp.Diff(want, tw.String()); diff != "" {
		t.Errorf("rate limited output mismatch (-want +got):\n%s", diff)
	}
}

func TestBasicRateLimitedLoggerFollowsTarget(t *testing.T) {
	l := BasicRateLimitedLogger(time.Nanosecond)
	tw := &testWriter{}
	old := Log()
	SetTarget(&Writer{Next: tw})
	defer SetTarget(old.Emitter)

	l.Warningf("after SetTarget")
	if diff := cmp.Diff("after SetTarget\n", tw.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestTraceback(t *testing.T) {
	tw := &testWriter{}
	old := Log()
	SetTarget(&Writer{Next: tw})
	defer SetTarget(old.Emitter)

	Traceback("kernel halted")
	if out := tw.String(); !strings.HasPrefix(out, "kernel halted:\n") || !strings.Contains(out, "goroutine") {
		t.Errorf("unexpected traceback output: %q", out)
	}
}
