// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/grailbio/gri/interval"
)

// PosType is a 0-based chromosome position.
type PosType = interval.PosType

// Each level's bins are 1<<levelShift times as large as the bins one level
// below.
const levelShift = 3

// BinScheme defines the binning levels.  Level l, for l in [0, Depth], has bins
// of 1<<(MinShift+3l) bases.  The top level, Depth, holds a single bin
// spanning the whole coordinate space [0, MaxPosition).
type BinScheme struct {
	// MinShift is log2 of the level-0 bin size.
	MinShift uint
	// Depth is the index of the top level.
	Depth uint
}

// DefaultBinScheme has six levels with bins of 16kbp, 128kbp, 1Mbp, 8Mbp,
// 64Mbp and 512Mbp.  It covers chromosomes up to 2^29 bases, which holds
// every human chromosome.  Genomes with longer chromosomes need a larger
// Depth.
//
// 16kbp at the bottom matches the BAI/CSI defaults; most annotation features
// (exons, variants, reads) fit in level 0 or 1.
var DefaultBinScheme = BinScheme{MinShift: 14, Depth: 5}

// Validate checks that the scheme fits the key layout.
func (s BinScheme) Validate() error {
	if s.MinShift < 4 {
		return fmt.Errorf("bin scheme %+v: MinShift must be >= 4", s)
	}
	if s.Depth > maxLevel {
		return fmt.Errorf("bin scheme %+v: Depth must be <= %d", s, maxLevel)
	}
	if s.MinShift+levelShift*s.Depth >= posBits {
		return fmt.Errorf("bin scheme %+v: MinShift+3*Depth must be < %d", s, posBits)
	}
	return nil
}

// NumLevels returns the number of levels, Depth+1.
func (s BinScheme) NumLevels() int {
	return int(s.Depth) + 1
}

// Shift returns log2 of the bin size at the level.
func (s BinScheme) Shift(level int) uint {
	return s.MinShift + levelShift*uint(level)
}

// BinSize returns the bin size at the level.
func (s BinScheme) BinSize(level int) PosType {
	return PosType(1) << s.Shift(level)
}

// MaxPosition returns the largest representable position.  Intervals must
// end at or before it.
func (s BinScheme) MaxPosition() PosType {
	return s.BinSize(int(s.Depth))
}

// Level returns the smallest level whose bin size is >= length.
//
// REQUIRES: 0 < length <= MaxPosition().
func (s BinScheme) Level(length PosType) int {
	// ceil(log2(length)) without a loop.
	ceilLog2 := uint(bits.Len64(uint64(length - 1)))
	if ceilLog2 <= s.MinShift {
		return 0
	}
	return int((ceilLog2 - s.MinShift + levelShift - 1) / levelShift)
}

// LevelMask is a set of levels.  Bit l is set iff level l holds at least one
// index entry.
type LevelMask uint16

// AllLevels contains every level of any valid scheme.
const AllLevels = LevelMask(1<<(maxLevel+1) - 1)

// Has reports whether level is in the mask.
func (m LevelMask) Has(level int) bool {
	return m&(1<<uint(level)) != 0
}

// With returns the mask plus level.
func (m LevelMask) With(level int) LevelMask {
	return m | 1<<uint(level)
}

// String lists the levels, e.g., "0,1,5".
func (m LevelMask) String() string {
	var levels []string
	for l := 0; l <= maxLevel; l++ {
		if m.Has(l) {
			levels = append(levels, strconv.Itoa(l))
		}
	}
	return strings.Join(levels, ",")
}
