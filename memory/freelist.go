// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// addFree marks the slot at h, of the given payload size, Free, coalesces
// it right-then-left with any Free neighbours in the same page, and either
// splices the (possibly enlarged, possibly shifted) slot into the free
// list or, if the coalesced size is too small to host links+tail, collapses
// it into a Dead slot. The slot is assumed non-Free on entry; its previous
// contents are never inspected beyond the coalescing probes below.
func (a *Heap) addFree(h *head, size int) {
	h.setFree(size)

	if right := rightNeighbour(h); !atPageBoundary(unsafe.Pointer(right)) && !right.isDead() && right.isFreed() {
		a.removeFree(right)
		h.setFree(h.size() + headSize + right.size())
	}

	if !atPageBoundary(unsafe.Pointer(h)) {
		lt := leftTail(h)
		if lt.back != nil { // a nil back-reference means the left region is Dead.
			left := lt.back
			if left.isFreed() {
				a.removeFree(left)
				newSize := left.size() + headSize + h.size()
				h = left
				h.setFree(newSize)
			}
		}
	}

	if h.size() < minFreeSize {
		zero(unsafe.Pointer(h), headSize+h.size())
		return
	}

	tailOf(h).back = h

	lk := linksOf(h)
	lk.prev = nil
	lk.next = a.freeHead
	linksOf(a.freeHead).prev = h
	a.freeHead = h
}

// removeFree splices a Free slot out of the free list using head-relative
// offsets to locate its links block.
func (a *Heap) removeFree(h *head) {
	lk := linksOf(h)
	if lk.prev != nil {
		linksOf(lk.prev).next = lk.next
	} else {
		a.freeHead = lk.next
	}
	if lk.next != nil {
		linksOf(lk.next).prev = lk.prev
	} else {
		a.freeTail = lk.prev
	}
}
