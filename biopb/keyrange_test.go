// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package biopb

import (
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func blocks(ranges ...uint64) []*BlockIndexEntry {
	var b []*BlockIndexEntry
	for i := 0; i < len(ranges); i += 2 {
		b = append(b, &BlockIndexEntry{StartKey: ranges[i], LimitKey: ranges[i+1]})
	}
	return b
}

func TestContainsIntersects(t *testing.T) {
	b := &BlockIndexEntry{StartKey: 10, LimitKey: 20}
	expect.False(t, b.Contains(9))
	expect.True(t, b.Contains(10))
	expect.True(t, b.Contains(20))
	expect.False(t, b.Contains(21))

	expect.True(t, b.Intersects(0, 10))
	expect.True(t, b.Intersects(20, 30))
	expect.True(t, b.Intersects(12, 15))
	expect.True(t, b.Intersects(0, 100))
	expect.False(t, b.Intersects(0, 9))
	expect.False(t, b.Intersects(21, 30))
}

func TestSearchBlocks(t *testing.T) {
	b := blocks(1, 5, 5, 5, 5, 9, 12, 20)
	for _, test := range []struct {
		key  uint64
		want int
	}{
		{0, 0},
		{1, 0},
		{5, 0},
		{6, 2},
		{10, 3},
		{20, 3},
		{21, 4},
	} {
		expect.EQ(t, SearchBlocks(b, test.key), test.want, "key %d", test.key)
	}
	expect.EQ(t, SearchBlocks(nil, 3), 0)
}

func TestCheckOrder(t *testing.T) {
	expect.EQ(t, CheckOrder(nil), -1)
	expect.EQ(t, CheckOrder(blocks(1, 5, 5, 5, 6, 9)), -1)
	expect.EQ(t, CheckOrder(blocks(1, 5, 4, 9)), 1)
	expect.EQ(t, CheckOrder(blocks(1, 5, 9, 7)), 1)
	expect.EQ(t, CheckOrder(blocks(3, 2)), 0)
}

func TestTableIndexEncoding(t *testing.T) {
	index := TableIndex{
		Magic:    0x454c424154535247,
		Version:  "GRS1",
		Snappy:   true,
		Blocks:   blocks(1, 5, 6, 9),
		NumItems: 12,
	}
	index.Blocks[1].FileOffset = 1234
	index.Blocks[1].Checksum = 0xdeadbeefcafe
	data, err := proto.Marshal(&index)
	assert.NoError(t, err)
	var got TableIndex
	assert.NoError(t, proto.Unmarshal(data, &got))
	expect.EQ(t, got, index)
}
