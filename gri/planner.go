// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"fmt"

	"github.com/pkg/errors"
)

// ScanRange is the closed range of bin keys [Lo, Hi] to scan at one level.
type ScanRange struct {
	Level int
	Lo    BinKey
	Hi    BinKey
}

// String implements fmt.Stringer.
func (r ScanRange) String() string {
	return fmt.Sprintf("L%d[%v,%v]", r.Level, r.Lo, r.Hi)
}

// Planner computes the bin ranges that may hold intervals overlapping a
// query.  A Planner has no mutable state; one may be shared by any number of
// goroutines.
type Planner struct {
	codec *Codec
}

// NewPlanner creates a planner for the codec's bin scheme.
func NewPlanner(codec *Codec) Planner {
	return Planner{codec: codec}
}

// Plan returns one scan range per level in levels that can hold an interval
// overlapping [qBegin, qEnd), in increasing level order.
//
// An interval at level l has length <= the level's bin size S and starts in
// bin begin/S.  If it overlaps the query then it begins before qEnd, and it
// begins after qBegin-S, so its bin lies in [qBegin/S-1, (qEnd-1)/S].
//
// qEnd is clamped to MaxPosition.  A query that starts at MaxPosition yields
// an empty plan.
func (p Planner) Plan(rank Rank, qBegin, qEnd PosType, levels LevelMask) ([]ScanRange, error) {
	if qBegin < 0 || qBegin >= qEnd {
		return nil, errors.Wrapf(ErrInvalidInterval, "query [%d, %d)", qBegin, qEnd)
	}
	scheme := p.codec.Scheme()
	maxPos := scheme.MaxPosition()
	if qBegin > maxPos {
		return nil, errors.Wrapf(ErrInvalidPosition, "query begin %d past %d", qBegin, maxPos)
	}
	if err := p.codec.checkRank(rank); err != nil {
		return nil, err
	}
	if qEnd > maxPos {
		qEnd = maxPos
	}
	if qBegin >= qEnd {
		return nil, nil
	}
	plan := make([]ScanRange, 0, scheme.NumLevels())
	for level := 0; level < scheme.NumLevels(); level++ {
		if !levels.Has(level) {
			continue
		}
		shift := scheme.Shift(level)
		lo := uint64(qBegin) >> shift
		if lo > 0 {
			lo--
		}
		hi := uint64(qEnd-1) >> shift
		plan = append(plan, ScanRange{
			Level: level,
			Lo:    p.codec.EncodeBin(rank, level, lo),
			Hi:    p.codec.EncodeBin(rank, level, hi),
		})
	}
	return plan, nil
}
