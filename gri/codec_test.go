// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/pkg/errors"
)

func newTestCodec(t *testing.T, chroms ...string) *Codec {
	c, err := NewCodec(CodecOpts{})
	assert.NoError(t, err)
	for _, name := range chroms {
		_, err := c.Chromosomes().Register(name)
		assert.NoError(t, err)
	}
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t, "chr1", "chr2", "chrX")
	r := rand.New(rand.NewSource(0))
	for i := 0; i < 1000; i++ {
		rank := Rank(r.Intn(3))
		pos := PosType(r.Int63n(int64(c.MaxPosition()) + 1))
		k, err := c.Encode(rank, pos)
		assert.NoError(t, err)
		rank2, pos2, err := c.Decode(k)
		assert.NoError(t, err)
		expect.EQ(t, rank2, rank)
		expect.EQ(t, pos2, pos)
	}
}

func TestCodecOrder(t *testing.T) {
	c := newTestCodec(t, "2", "10", "1")
	encode := func(rank Rank, pos PosType) Key {
		k, err := c.Encode(rank, pos)
		assert.NoError(t, err)
		return k
	}
	for rank := Rank(0); rank < 3; rank++ {
		prev := encode(rank, 0)
		for _, pos := range []PosType{1, 2, 1000, 1 << 20, c.MaxPosition()} {
			k := encode(rank, pos)
			expect.True(t, prev < k, "rank %d pos %d", rank, pos)
			prev = k
		}
		if rank > 0 {
			expect.True(t, encode(rank-1, c.MaxPosition()) < encode(rank, 0))
		}
	}
	// First-seen order, not lexical.
	r2, _ := c.Chromosomes().Lookup("2")
	r10, _ := c.Chromosomes().Lookup("10")
	expect.True(t, encode(r2, 0) < encode(r10, 0))
}

func TestCodecErrors(t *testing.T) {
	c := newTestCodec(t, "chr1")
	_, err := c.Encode(0, -1)
	expect.EQ(t, errors.Cause(err), ErrInvalidPosition)
	_, err = c.Encode(0, c.MaxPosition()+1)
	expect.EQ(t, errors.Cause(err), ErrInvalidPosition)
	_, err = c.Encode(1, 10)
	expect.EQ(t, errors.Cause(err), ErrUnknownChromosome)
	_, _, err = c.Decode(Key(1<<posBits | 5))
	expect.EQ(t, errors.Cause(err), ErrUnknownChromosome)

	_, err = NewCodec(CodecOpts{Scheme: BinScheme{MinShift: 2, Depth: 3}})
	expect.NotNil(t, err)
}

func TestCodecBin(t *testing.T) {
	c := newTestCodec(t, "chr1", "chr2")
	for _, test := range []struct {
		iv    Interval
		level int
		bin   uint64
	}{
		{Interval{0, 10, 20}, 0, 0},
		{Interval{0, 20000, 20010}, 0, 1},
		{Interval{0, 16380, 16390}, 0, 0},
		{Interval{0, 0, 20000}, 1, 0},
		{Interval{1, 300000, 310000}, 0, 18},
		{Interval{1, 0, 1 << 29}, 5, 0},
	} {
		key, level, err := c.Bin(test.iv)
		assert.NoError(t, err)
		expect.EQ(t, level, test.level, "%v", test.iv)
		rank, level2, bin := c.DecodeBin(key)
		expect.EQ(t, rank, test.iv.Rank)
		expect.EQ(t, level2, test.level)
		expect.EQ(t, bin, test.bin, "%v", test.iv)
		expect.EQ(t, c.EncodeBin(rank, level2, bin), key)

		// The bin contains the interval's begin, and the interval spills at
		// most one bin.
		size := c.Scheme().BinSize(level)
		binBegin := PosType(bin) * size
		expect.True(t, binBegin <= test.iv.Begin)
		expect.True(t, test.iv.End <= binBegin+2*size)
	}

	_, _, err := c.Bin(Interval{0, 50, 50})
	expect.EQ(t, errors.Cause(err), ErrInvalidInterval)
	_, _, err = c.Bin(Interval{0, 10, c.MaxPosition() + 1})
	expect.EQ(t, errors.Cause(err), ErrInvalidPosition)
	_, _, err = c.Bin(Interval{7, 10, 20})
	expect.EQ(t, errors.Cause(err), ErrUnknownChromosome)
}

func TestBinKeyOrder(t *testing.T) {
	c := newTestCodec(t, "a", "b")
	expect.True(t, c.EncodeBin(0, 0, 5) < c.EncodeBin(0, 0, 6))
	expect.True(t, c.EncodeBin(0, 0, 1<<20) < c.EncodeBin(0, 1, 0))
	expect.True(t, c.EncodeBin(0, maxLevel, binMask) < c.EncodeBin(1, 0, 0))
}

func TestChromosomes(t *testing.T) {
	c := NewChromosomes()
	r, err := c.Register("chr2")
	assert.NoError(t, err)
	expect.EQ(t, r, Rank(0))
	r, err = c.Register("chr1")
	assert.NoError(t, err)
	expect.EQ(t, r, Rank(1))
	r, err = c.Register("chr2")
	assert.NoError(t, err)
	expect.EQ(t, r, Rank(0))
	expect.EQ(t, c.Len(), 2)
	expect.EQ(t, c.Name(1), "chr1")
	expect.EQ(t, c.Name(2), "")

	c.Observe(1, 100)
	c.Observe(1, 50)
	ch, err := c.Get(1)
	assert.NoError(t, err)
	expect.EQ(t, ch, Chromosome{Name: "chr1", Rank: 1, MaxEnd: 100, NumRecords: 2})
	_, err = c.Get(5)
	expect.EQ(t, errors.Cause(err), ErrUnknownChromosome)

	c2 := NewChromosomes()
	for _, ch := range c.All() {
		assert.NoError(t, c2.Restore(ch))
	}
	expect.EQ(t, c2.All(), c.All())
	expect.NotNil(t, c2.Restore(Chromosome{Name: "chr3", Rank: 7}))
	expect.NotNil(t, c2.Restore(Chromosome{Name: "chr1", Rank: 2}))
}
