// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memory implements a single-threaded, page-granular memory
// allocator. It carves an in-place boundary-tag heap out of pages obtained
// from the host's mmap (or, on Windows, file-mapping) primitive, coalesces
// adjacent free slots in both directions, and opportunistically hands whole
// empty pages back to the system.
//
// The allocator is not safe for concurrent use and assumes a well-behaved
// caller: sizes passed to Alloc must be a multiple of 8 in [8, 4000], and a
// pointer passed to Free must have come from a prior Alloc on the same Heap
// and not have been freed already. Violating either precondition is
// undefined behaviour; with debugAssertions left on, many violations panic
// instead of corrupting memory silently.
package memory

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/cznic/mathutil"
)

const (
	pageSize = 4096

	minAllocSize = 8
	maxAllocSize = 4000

	// bestFitScanCap bounds how many candidates the scan accepts before
	// settling on the best one seen so far. A Free slot counts only when it
	// is large enough and matches or improves the best fit so far; large
	// enough slots that fit worse are not counted. It trades fit quality for
	// scan latency.
	bestFitScanCap = 8

	trace           = false
	debugAssertions = true
)

func assertf(cond bool, format string, args ...interface{}) {
	if debugAssertions && !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Heap is a boundary-tag allocator. Its zero value is not ready for use;
// call Init first.
type Heap struct {
	// sentinelHead and sentinelLinks together form the permanent anchor
	// of the free list: a Free slot of size 0 that is spliced in like
	// any other node and, because insertion always happens at the list
	// head, ends up (and stays) at the tail once any real slot has been
	// added. sentinelLinks MUST immediately follow sentinelHead with no
	// padding between them, mirroring how a real in-page Free slot's
	// links sit right after its head; Go field declaration order
	// guarantees this layout.
	sentinelHead  head
	sentinelLinks links

	freeHead *head
	freeTail *head

	pagesMapped int // pages currently held from the system; diagnostic only.
	allocs      int // outstanding Alloc calls not yet matched by Free; diagnostic only.
}

// Init prepares a Heap for use. Its idempotence is not guaranteed: calling
// it again discards any slots already carved and leaks the pages backing
// them, exactly like re-running my_initialize on a live C heap would.
func (a *Heap) Init() {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "Init()\n")
		}()
	}
	a.sentinelHead = head{}
	a.sentinelLinks = links{}
	a.sentinelHead.setFree(0)
	a.freeHead = &a.sentinelHead
	a.freeTail = &a.sentinelHead
	a.pagesMapped = 0
	a.allocs = 0
}

// Alloc returns a pointer to size freshly-carved, uninitialized bytes.
// size must be a positive multiple of 8 with 8 <= size <= 4000; behaviour
// outside that contract is undefined (see package doc).
func (a *Heap) Alloc(size int) unsafe.Pointer {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "Alloc(%#x) bucket=%d\n", size, bitLength(size))
		}()
	}
	assertf(size >= minAllocSize && size <= maxAllocSize,
		"Alloc: size %d outside contract range [%d, %d]", size, minAllocSize, maxAllocSize)
	assertf(size%8 == 0, "Alloc: size %d is not a multiple of 8", size)

	a.allocs++
	return a.alloc(size, true)
}

// alloc is the internal entry point. reclaim disables whole-page
// reclamation on the recursive call issued after mapping a fresh page, so
// that page is never immediately unmapped and pages already passed over in
// the first scan are not re-examined.
func (a *Heap) alloc(size int, reclaim bool) unsafe.Pointer {
	need := size + tailSize

	var chosen *head
	minDiff := pageSize // larger than any in-page slot's possible diff.
	found := 0

	cur := a.freeHead
	for cur != nil {
		next := linksOf(cur).next

		if reclaim && cur.size() == pageSize-headSize {
			a.removeFree(cur)
			if err := pageUnmap(unsafe.Pointer(cur), pageSize); err != nil {
				panic(err)
			}
			a.pagesMapped--
			cur = next
			continue
		}

		if cur.size() >= need {
			diff := cur.size() - need
			if diff <= minDiff {
				minDiff = diff
				chosen = cur
				found++
				if found == bestFitScanCap {
					break
				}
			}
		}

		cur = next
	}

	if chosen == nil {
		p, err := pageMap(pageSize)
		if err != nil {
			panic(err)
		}
		a.pagesMapped++
		a.addFree((*head)(p), pageSize-headSize)
		return a.alloc(size, false)
	}

	return a.carve(chosen, need)
}

// carve removes chosen from the free list, turns it into an Object slot of
// exactly needSize bytes (including the tail), and disposes of whatever is
// left over: spliced back in as a new Free slot if large enough, zeroed
// into a Dead slot if not, or left alone if there is no remainder at all.
func (a *Heap) carve(chosen *head, needSize int) unsafe.Pointer {
	a.removeFree(chosen)
	chosenSize := chosen.size()

	chosen.setObject(needSize)
	tailOf(chosen).back = chosen

	remainder := chosenSize - needSize
	switch {
	case remainder >= headSize+minFreeSize:
		a.addFree(rightNeighbour(chosen), remainder-headSize)
	case remainder > 0:
		zero(unsafe.Pointer(rightNeighbour(chosen)), remainder)
	}

	return payloadOf(chosen)
}

// Free releases a slot previously returned by Alloc. ptr must not have
// already been freed; behaviour otherwise is undefined.
func (a *Heap) Free(ptr unsafe.Pointer) {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "Free(%p)\n", ptr)
		}()
	}
	h := headOfPayload(ptr)
	assertf(!h.isDead() && !h.isFreed(), "Free: %p does not reference a live object slot", ptr)

	a.allocs--
	a.addFree(h, h.size())
}

// mappedBytes reports how many bytes are currently held from the page
// primitive. Used by tests to check the live-to-mapped ratio (spec §8);
// not part of the external contract.
func (a *Heap) mappedBytes() int { return a.pagesMapped * pageSize }

// bitLength is a thin wrapper around mathutil.BitLen, used by Alloc's trace
// output to report which power-of-two bucket the requested size would have
// landed in under a size-classed allocator, useful when comparing this
// heap's fragmentation against one.
func bitLength(n int) int { return mathutil.BitLen(n) }
