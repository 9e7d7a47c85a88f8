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

// Package hostarch contains address and page size definitions shared by the
// kernel's memory manager and syscall layer.
package hostarch

const (
	// PageShift is the binary log of the page size. Pages are always 4K,
	// independent of the host.
	PageShift = 12

	// PageSize is the page size.
	PageSize = 1 << PageShift

	// PageMask is the mask of the offset within a page.
	PageMask = PageSize - 1
)

// PageRoundDown returns x rounded down to the nearest page boundary.
func PageRoundDown(x uint64) uint64 {
	return x &^ PageMask
}

// PageRoundUp returns x rounded up to the nearest page boundary.
// ok is true iff rounding up did not wrap around.
func PageRoundUp(x uint64) (addr uint64, ok bool) {
	addr = PageRoundDown(x + PageMask)
	ok = addr >= x
	return
}

// IsPageAligned returns true if x is a multiple of PageSize.
func IsPageAligned(x uint64) bool {
	return x&PageMask == 0
}

// Pages returns the number of pages covering size bytes. size must be page
// aligned.
func Pages(size uint64) int {
	return int(size >> PageShift)
}
