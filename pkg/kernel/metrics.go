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
	"xkern.dev/xkern/pkg/abi/xous/errno"
	"xkern.dev/xkern/pkg/metric"
)

// unknownSyscall is the metric field value of syscall numbers outside the
// ABI.
const unknownSyscall = "Unknown"

func syscallNames() []string {
	names := []string{unknownSyscall}
	for _, c := range xous.AllSysCalls() {
		names = append(names, c.Sysno().String())
	}
	return names
}

func errnoNames() []string {
	var names []string
	for e := errno.NoError + 1; e < errno.MaxErrno; e++ {
		names = append(names, e.String())
	}
	return names
}

var (
	syscallCounter = metric.MustCreateNewUint64Metric("/kernel/syscalls",
		"Number of syscalls dispatched, by syscall.",
		metric.NewField("syscall", syscallNames()))
	syscallErrorCounter = metric.MustCreateNewUint64Metric("/kernel/syscall_errors",
		"Number of syscalls that failed, by error.",
		metric.NewField("errno", errnoNames()))
	queueFullCounter = metric.MustCreateNewUint64Metric("/kernel/queue_full",
		"Number of messages refused because a server queue or its reply slots were full.")
	contextSwitchCounter = metric.MustCreateNewUint64Metric("/kernel/context_switches",
		"Number of transfers of control between contexts.")
	processCounter = metric.MustCreateNewUint64Metric("/kernel/processes_created",
		"Number of processes created, including root processes.")
	interruptCounter = metric.MustCreateNewUint64Metric("/kernel/interrupts",
		"Number of interrupts raised, by outcome.",
		metric.NewField("outcome", []string{"delivered", "coalesced", "unclaimed", "dropped"}))
)

func sysnoField(sysno xous.Sysno) string {
	if sysno == 0 || sysno > xous.MaxSysno {
		return unknownSyscall
	}
	return sysno.String()
}
