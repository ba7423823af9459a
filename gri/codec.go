// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"fmt"

	"github.com/pkg/errors"
)

// Layout of Key and BinKey, from the most significant bit:
//
//   Key:    rank (24 bits) | position (40 bits)
//   BinKey: rank (24 bits) | level (4 bits) | bin (36 bits)
//
// Both sort by rank first, so every key of chromosome c1 precedes every key of
// a higher-ranked chromosome c2.
const (
	rankBits  = 24
	posBits   = 40
	levelBits = 4
	binBits   = posBits - levelBits

	maxLevel = 14

	posMask   = 1<<posBits - 1
	levelMask = 1<<levelBits - 1
	binMask   = 1<<binBits - 1
)

// Key is a sortable encoding of (rank, position).
type Key uint64

// String shows the key as (rank,pos).
func (k Key) String() string {
	return fmt.Sprintf("(%d,%d)", uint64(k)>>posBits, uint64(k)&posMask)
}

// BinKey is a sortable encoding of (rank, level, bin).  It is the primary
// sort key of index entries.
type BinKey uint64

// String shows the key as (rank,level,bin).
func (b BinKey) String() string {
	return fmt.Sprintf("(%d,%d,%d)", uint64(b)>>posBits, (uint64(b)>>binBits)&levelMask, uint64(b)&binMask)
}

// CodecOpts configures a Codec.
type CodecOpts struct {
	// Scheme is the binning scheme.  The zero value selects DefaultBinScheme.
	Scheme BinScheme
	// Chromosomes is the rank registry to use.  If nil, an empty one is
	// created.  Readers of a persisted index pass the restored registry.
	Chromosomes *Chromosomes
}

// Codec maps (chromosome rank, position) to sortable integer keys, and
// intervals to bin keys.  It owns the chromosome registry.
type Codec struct {
	scheme BinScheme
	chroms *Chromosomes
}

// NewCodec creates a Codec.
func NewCodec(opts CodecOpts) (*Codec, error) {
	if opts.Scheme == (BinScheme{}) {
		opts.Scheme = DefaultBinScheme
	}
	if err := opts.Scheme.Validate(); err != nil {
		return nil, err
	}
	if opts.Chromosomes == nil {
		opts.Chromosomes = NewChromosomes()
	}
	return &Codec{scheme: opts.Scheme, chroms: opts.Chromosomes}, nil
}

// Scheme returns the binning scheme.
func (c *Codec) Scheme() BinScheme { return c.scheme }

// Chromosomes returns the rank registry.
func (c *Codec) Chromosomes() *Chromosomes { return c.chroms }

// MaxPosition returns the largest position the codec accepts.
func (c *Codec) MaxPosition() PosType { return c.scheme.MaxPosition() }

func (c *Codec) checkRank(rank Rank) error {
	if int(rank) >= c.chroms.Len() {
		return errors.Wrapf(ErrUnknownChromosome, "rank %d", rank)
	}
	return nil
}

func (c *Codec) checkPos(pos PosType) error {
	if pos < 0 || pos > c.MaxPosition() {
		return errors.Wrapf(ErrInvalidPosition, "position %d outside [0, %d]", pos, c.MaxPosition())
	}
	return nil
}

// Encode returns the key for (rank, pos).  Keys of one chromosome increase
// with position; keys of a lower-ranked chromosome are always smaller.
func (c *Codec) Encode(rank Rank, pos PosType) (Key, error) {
	if err := c.checkRank(rank); err != nil {
		return 0, err
	}
	if err := c.checkPos(pos); err != nil {
		return 0, err
	}
	return Key(uint64(rank)<<posBits | uint64(pos)), nil
}

// Decode is the inverse of Encode.
func (c *Codec) Decode(k Key) (Rank, PosType, error) {
	rank := Rank(uint64(k) >> posBits)
	pos := PosType(uint64(k) & posMask)
	if err := c.checkRank(rank); err != nil {
		return 0, 0, err
	}
	if err := c.checkPos(pos); err != nil {
		return 0, 0, err
	}
	return rank, pos, nil
}

// EncodeBin returns the bin key of (rank, level, bin).  The arguments are not
// validated.
func (c *Codec) EncodeBin(rank Rank, level int, bin uint64) BinKey {
	return BinKey(uint64(rank)<<posBits | uint64(level)<<binBits | bin)
}

// DecodeBin is the inverse of EncodeBin.
func (c *Codec) DecodeBin(b BinKey) (rank Rank, level int, bin uint64) {
	return Rank(uint64(b) >> posBits), int((uint64(b) >> binBits) & levelMask), uint64(b) & binMask
}

// CheckInterval validates iv: begin must be nonnegative and less than end, end
// must not exceed MaxPosition, and the rank must be registered.
func (c *Codec) CheckInterval(iv Interval) error {
	if iv.Begin < 0 || iv.Begin >= iv.End {
		return errors.Wrapf(ErrInvalidInterval, "[%d, %d)", iv.Begin, iv.End)
	}
	if iv.End > c.MaxPosition() {
		return errors.Wrapf(ErrInvalidPosition, "interval [%d, %d) ends past %d", iv.Begin, iv.End, c.MaxPosition())
	}
	return c.checkRank(iv.Rank)
}

// Bin assigns iv to the smallest level whose bin size is >= its length, and to
// the bin at that level containing iv.Begin.  An interval spills at most one
// bin past its own, since its length is at most the bin size.
func (c *Codec) Bin(iv Interval) (BinKey, int, error) {
	if err := c.CheckInterval(iv); err != nil {
		return 0, 0, err
	}
	level := c.scheme.Level(iv.End - iv.Begin)
	bin := uint64(iv.Begin) >> c.scheme.Shift(level)
	return c.EncodeBin(iv.Rank, level, bin), level, nil
}
