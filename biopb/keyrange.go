// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package biopb

// This file adds key-range helpers to BlockIndexEntry.

// Contains checks if key is in [StartKey, LimitKey].
func (b *BlockIndexEntry) Contains(key uint64) bool {
	return b.StartKey <= key && key <= b.LimitKey
}

// Intersects checks if [lo, hi] and [StartKey, LimitKey] share a key.
func (b *BlockIndexEntry) Intersects(lo, hi uint64) bool {
	return b.StartKey <= hi && lo <= b.LimitKey
}

// SearchBlocks returns the index of the first block whose LimitKey is >= key,
// or len(blocks) if there is none.  Blocks must be sorted by key; adjacent
// blocks may share a boundary key.
func SearchBlocks(blocks []*BlockIndexEntry, key uint64) int {
	lo, hi := 0, len(blocks)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if blocks[mid].LimitKey < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// CheckOrder returns the index of the first block that starts before the
// previous one ends, or -1 if the blocks are properly ordered.
func CheckOrder(blocks []*BlockIndexEntry) int {
	for i, b := range blocks {
		if b.StartKey > b.LimitKey {
			return i
		}
		if i > 0 && b.StartKey < blocks[i-1].LimitKey {
			return i
		}
	}
	return -1
}
