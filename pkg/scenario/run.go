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
	"bytes"
	"fmt"
	"sort"

	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/kernel"
	"xkern.dev/xkern/pkg/log"
)

// StepResult is the outcome of one step.
type StepResult struct {
	// Step is the 1-based index of the step.
	Step int
	Call string

	// PID and TID were running when the step began.
	PID xous.PID
	TID xous.TID

	// Outcome is the result kind, the error name, or "Halt".
	Outcome string
}

// Report describes a run.
type Report struct {
	Name  string
	Steps []StepResult

	// Halted is set if the run ended in an expected invariant violation.
	Halted *kernel.InvariantViolation

	// Activations is the number of transfers of control during the run.
	Activations uint64
}

// StepError is returned for a step that did not meet its expectation.
type StepError struct {
	Step int
	Call string
	Err  error
}

// Error implements error.Error.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Call, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// action performs a prepared step. A *errors.Error return is a kernel
// outcome; any other error is a failed check.
type action func() (xous.Result, error)

type runner struct {
	k      *kernel.Kernel
	labels map[string]uint64
}

// Run executes the steps of s on k, which must not have run anything yet,
// and stops at the first step that fails. The report covers the steps run
// so far.
func (s *Scenario) Run(k *kernel.Kernel) (*Report, error) {
	r := &runner{k: k, labels: make(map[string]uint64)}
	rep := &Report{Name: s.Name}
	_, start := k.LastActivation()
	defer func() {
		_, n := k.LastActivation()
		rep.Activations = n - start
	}()
	for i := range s.Steps {
		st := &s.Steps[i]
		sr, halted, err := r.step(st)
		sr.Step = i + 1
		rep.Steps = append(rep.Steps, sr)
		if halted != nil {
			if st.Expect != expectHalt {
				err = halted
			} else {
				rep.Halted = halted
				log.Infof("Scenario %q halted as expected at step %d: %s", s.Name, sr.Step, halted.Message)
			}
		}
		if err != nil {
			return rep, &StepError{Step: sr.Step, Call: st.Call, Err: err}
		}
		if halted != nil {
			return rep, nil
		}
	}
	return rep, nil
}

// step runs st. A kernel halt is reported through halted; the kernel must
// not be used afterwards.
func (r *runner) step(st *Step) (sr StepResult, halted *kernel.InvariantViolation, err error) {
	sr = StepResult{Call: st.Call, PID: r.k.CurrentPID(), TID: r.k.CurrentContextNr()}
	if st.As != 0 && st.As != sr.PID {
		return sr, nil, fmt.Errorf("PID%d is running, want PID%d", sr.PID, st.As)
	}
	act, err := r.prepare(st)
	if err != nil {
		return sr, nil, err
	}

	defer func() {
		if v := recover(); v != nil {
			violation, ok := v.(*kernel.InvariantViolation)
			if !ok {
				panic(v)
			}
			sr.Outcome = expectHalt
			halted = violation
		}
	}()
	res, callErr := act()
	if callErr != nil {
		e, ok := callErr.(*errors.Error)
		if !ok {
			return sr, nil, callErr
		}
		sr.Outcome = e.Name()
	} else {
		sr.Outcome = res.Kind.String()
	}
	log.Debugf("Scenario step %s by PID%d:%d: %s", st.Call, sr.PID, sr.TID, sr.Outcome)

	switch {
	case st.Expect == "" && callErr != nil:
		return sr, nil, fmt.Errorf("failed with %s: %v", sr.Outcome, callErr)
	case st.Expect != "" && st.Expect != sr.Outcome:
		return sr, nil, fmt.Errorf("got %s, want %s", sr.Outcome, st.Expect)
	}
	if callErr != nil {
		if st.Save != "" || len(st.Check) > 0 {
			return sr, nil, fmt.Errorf("no result to check or save after %s", sr.Outcome)
		}
		return sr, nil, nil
	}

	values := resultValues(res)
	if err := r.check(st.Check, values); err != nil {
		return sr, nil, err
	}
	if st.Save != "" {
		for k, v := range values {
			if k == "value" {
				r.labels[st.Save] = v
			} else {
				r.labels[st.Save+"."+k] = v
			}
		}
	}
	return sr, nil, nil
}

func (r *runner) check(want map[string]any, values map[string]uint64) error {
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	a := newArgReader(r.labels, nil)
	for _, k := range keys {
		w, err := a.number(want[k])
		if err != nil {
			return fmt.Errorf("check %q: %v", k, err)
		}
		got, ok := values[k]
		if !ok {
			return fmt.Errorf("check %q: result has no such field", k)
		}
		if got != w {
			return fmt.Errorf("check %q: got %#x, want %#x", k, got, w)
		}
	}
	return nil
}

// prepare decodes the arguments of st into an action.
func (r *runner) prepare(st *Step) (action, error) {
	k := r.k
	a := newArgReader(r.labels, st.Args)
	var act action
	switch st.Call {
	case callResume:
		act = func() (xous.Result, error) {
			ret, ok := k.CurrentTask().TakePending()
			if !ok {
				return xous.Result{}, fmt.Errorf("PID%d:%d has no pending return", k.CurrentPID(), k.CurrentContextNr())
			}
			return ret.Result, ret.Err
		}
	case callWrite:
		pid, addr, data := a.pidOr("pid", k.CurrentPID()), a.addr("addr"), a.str("data")
		act = func() (xous.Result, error) {
			return xous.Ok, k.MemoryManager().WriteAt(pid, addr, []byte(data))
		}
	case callExpectMemory:
		pid, addr, data := a.pidOr("pid", k.CurrentPID()), a.addr("addr"), a.str("data")
		act = func() (xous.Result, error) {
			got := make([]byte, len(data))
			if err := k.MemoryManager().ReadAt(pid, addr, got); err != nil {
				return xous.Result{}, err
			}
			if !bytes.Equal(got, []byte(data)) {
				return xous.Result{}, fmt.Errorf("PID%d %v holds %q, want %q", pid, addr, got, data)
			}
			return xous.Ok, nil
		}
	case callRaiseInterrupt:
		irq := a.u32("irq")
		act = func() (xous.Result, error) {
			tid, err := k.RaiseInterrupt(irq)
			if err != nil {
				return xous.Result{}, err
			}
			return xous.ThreadIDResult(tid), nil
		}
	case callExpectContext:
		pid, tid := a.pidOr("pid", k.CurrentPID()), xous.TID(a.u32("tid"))
		state, wait := a.str("state"), a.str("wait")
		act = func() (xous.Result, error) {
			p, err := k.GetProcess(pid)
			if err != nil {
				return xous.Result{}, err
			}
			c, ok := p.Context(tid)
			if !ok {
				return xous.Result{}, kernerr.ProcessNotFound
			}
			if state != "" && c.State().String() != state {
				return xous.Result{}, fmt.Errorf("PID%d:%d is %v, want %s", pid, tid, c.State(), state)
			}
			if reason, _ := c.Wait(); wait != "" && reason.String() != wait {
				return xous.Result{}, fmt.Errorf("PID%d:%d waits for %v, want %s", pid, tid, reason, wait)
			}
			return xous.Ok, nil
		}
	default:
		call := a.sysCall(st.Call)
		act = func() (xous.Result, error) {
			return k.CurrentTask().Syscall(call)
		}
	}
	if err := a.finish(); err != nil {
		return nil, err
	}
	return act, nil
}
