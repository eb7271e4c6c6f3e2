// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// Every slot in the heap begins with a head and ends with a tail. A Free
// slot additionally reserves the first bytes of its payload for a links
// pair, which is why a freed region below minFreeSize degenerates to a
// Dead slot instead.
//
// head.word packs the freed flag into its sign bit and the payload size
// into the remaining bits. A word of exactly zero can never be produced by
// setFree or setObject (size is always >= minAllocSize), so an all-zero
// word unambiguously identifies a Dead slot without a separate discriminant.
type head struct {
	word uint64
}

type tail struct {
	back *head
}

type links struct {
	prev, next *head
}

const freedBit = uint64(1) << 63

func (h *head) isDead() bool { return h.word == 0 }
func (h *head) isFreed() bool { return h.word&freedBit != 0 }
func (h *head) size() int     { return int(h.word &^ freedBit) }

func (h *head) setFree(size int) { h.word = freedBit | uint64(size) }
func (h *head) setObject(size int) { h.word = uint64(size) }

var (
	headSize  = int(unsafe.Sizeof(head{}))
	tailSize  = int(unsafe.Sizeof(tail{}))
	linksSize = int(unsafe.Sizeof(links{}))

	// minFreeSize is the smallest payload size (links_size + tail_size)
	// a slot can have and still be addressable as Free; anything smaller
	// collapses to Dead when it would otherwise be added to the free list.
	minFreeSize = linksSize + tailSize

	pageMask = pageSize - 1
)

func payloadOf(h *head) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + uintptr(headSize))
}

func headOfPayload(p unsafe.Pointer) *head {
	return (*head)(unsafe.Pointer(uintptr(p) - uintptr(headSize)))
}

// rightNeighbour returns the head address immediately to the right of h.
// The caller must check atPageBoundary before dereferencing it.
func rightNeighbour(h *head) *head {
	return (*head)(unsafe.Pointer(uintptr(unsafe.Pointer(h)) + uintptr(headSize) + uintptr(h.size())))
}

// leftTail returns the tail address immediately to the left of h. The
// caller must check atPageBoundary(h) before dereferencing it.
func leftTail(h *head) *tail {
	return (*tail)(unsafe.Pointer(uintptr(unsafe.Pointer(h)) - uintptr(tailSize)))
}

// tailOf returns the tail belonging to the slot at h.
func tailOf(h *head) *tail {
	return leftTail(rightNeighbour(h))
}

func linksOf(h *head) *links {
	return (*links)(payloadOf(h))
}

func atPageBoundary(p unsafe.Pointer) bool {
	return uintptr(p)&uintptr(pageMask) == 0
}

// zero overwrites n bytes starting at p, turning the region into a Dead
// slot (or, for a fresh page, leaving it in the all-zero state page_map
// already produced).
func zero(p unsafe.Pointer, n int) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}
