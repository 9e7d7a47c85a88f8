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

package kernel

import (
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/log"
)

// irqClaim is the handler registered for an interrupt line.
type irqClaim struct {
	pid      xous.PID
	callback hostarch.Addr
	arg      uintptr

	// handler is the context the line is delivered on, or 0 before the
	// first delivery.
	handler xous.TID
}

func (k *Kernel) claim(irq uint32) (*irqClaim, error) {
	if int(irq) >= len(k.irqs) {
		return nil, kernerr.InterruptNotFound
	}
	return &k.irqs[irq], nil
}

// ClaimInterrupt registers callback as the handler of irq in the process of
// t.
func (t *Task) ClaimInterrupt(irq uint32, callback hostarch.Addr, arg uintptr) error {
	c, err := t.k.claim(irq)
	if err != nil {
		return err
	}
	if c.pid != 0 {
		return kernerr.InterruptInUse
	}
	*c = irqClaim{pid: t.pid, callback: callback, arg: arg}
	return nil
}

// FreeInterrupt releases a claim of t on irq.
func (t *Task) FreeInterrupt(irq uint32) error {
	c, err := t.k.claim(irq)
	if err != nil {
		return err
	}
	if c.pid != t.pid {
		return kernerr.InterruptNotFound
	}
	if hc, ok := t.Process().contexts[c.handler]; ok && rearmable(hc) {
		delete(t.Process().contexts, c.handler)
	}
	*c = irqClaim{}
	return nil
}

// rearmable returns true if handler is between deliveries: it has not run
// since the last one, or it gave up the CPU without blocking on IPC.
func rearmable(handler *Context) bool {
	return handler.runnable() || (handler.state == ContextParked && handler.wait == WaitEvent)
}

func (k *Kernel) freeInterruptsOf(pid xous.PID) {
	for i := range k.irqs {
		if k.irqs[i].pid == pid {
			k.irqs[i] = irqClaim{}
		}
	}
}

// InterruptOwner returns the process that claimed irq.
func (k *Kernel) InterruptOwner(irq uint32) (xous.PID, bool) {
	c, err := k.claim(irq)
	if err != nil || c.pid == 0 {
		return 0, false
	}
	return c.pid, true
}

// RaiseInterrupt delivers irq to its claimant and wakes contexts of the
// claimant waiting for an event. The CPU is not transferred.
//
// Each claim has one handler context. The first delivery creates it, and
// later ones rearm it Ready with the callback as its PC and the interrupt
// number and claim argument in its argument registers. While the handler
// runs or waits on IPC, further deliveries are coalesced into the one in
// progress.
func (k *Kernel) RaiseInterrupt(irq uint32) (xous.TID, error) {
	c, err := k.claim(irq)
	if err != nil {
		return 0, err
	}
	if c.pid == 0 {
		interruptCounter.Increment("unclaimed")
		return 0, kernerr.InterruptNotFound
	}
	p := k.procs[c.pid]
	regs := SavedRegisters{PC: c.callback, Args: [2]uintptr{uintptr(irq), c.arg}}
	if hc, ok := p.contexts[c.handler]; ok {
		if !rearmable(hc) {
			interruptCounter.Increment("coalesced")
			log.Debugf("IRQ %d coalesced into PID%d:%d", irq, c.pid, c.handler)
			return c.handler, nil
		}
		hc.state = ContextReady
		hc.wait = WaitNone
		hc.waitSID = 0
		hc.regs = regs
		hc.ret = nil
	} else {
		tid, err := p.freeTID(k.conf.MaxContexts)
		if err != nil {
			interruptCounter.Increment("dropped")
			log.Warningf("Dropping IRQ %d for PID%d: no free context", irq, c.pid)
			return 0, err
		}
		p.newContext(tid, regs)
		c.handler = tid
	}
	for _, other := range p.contexts {
		if other.state == ContextParked && other.wait == WaitEvent {
			other.wake(SyscallReturn{Result: xous.Resume})
		}
	}
	interruptCounter.Increment("delivered")
	log.Debugf("IRQ %d delivered to PID%d:%d", irq, c.pid, c.handler)
	return c.handler, nil
}
