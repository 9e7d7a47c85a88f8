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

package hostarch

import "strconv"

// MemoryType specifies how the core accesses a physical frame. The zero
// value is normal cacheable memory, which is what main RAM always is.
type MemoryType uint8

const (
	// MemoryTypeWriteBack is normal cacheable memory.
	MemoryTypeWriteBack MemoryType = iota

	// MemoryTypeUncached is device register memory. Accesses have side
	// effects: the kernel never zero-fills or scrubs such frames.
	MemoryTypeUncached
)

// ZeroFillable returns true if frames of type mt may be cleared by the
// kernel.
func (mt MemoryType) ZeroFillable() bool {
	return mt == MemoryTypeWriteBack
}

func (mt MemoryType) String() string {
	switch mt {
	case MemoryTypeWriteBack:
		return "WriteBack"
	case MemoryTypeUncached:
		return "Uncached"
	default:
		return "MemoryType(" + strconv.Itoa(int(mt)) + ")"
	}
}
