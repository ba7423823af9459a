// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package interval

import "math"

// PosType is the coordinate type of the range index.  Chromosomes of several
// hundred megabases, and assemblies beyond 2^31 bases, rule out int32.
type PosType int64

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt64

// UnionScanner walks an interval-union in position order.  The union is a
// sorted endpoint slice: interval k is [endpoints[2k], endpoints[2k+1]).  For
// example, the regions [5, 15), [7, 17) and [20, 25) are stored as
// {5, 17, 20, 25}, and
//
//   us := NewUnionScanner([]PosType{5, 17, 20, 25})
//   for us.Scan(&start, &end, PosTypeMax) {
//     fmt.Printf("[%d,%d) ", start, end)
//   }
//
// prints "[5,17) [20,25) ".
type UnionScanner struct {
	endpoints []PosType
	// next is the index of the end of the interval holding pos.
	next int
	// pos is the start of the next piece to yield, or PosTypeMax.
	pos PosType
}

// NewUnionScanner returns a UnionScanner positioned at the first interval.
func NewUnionScanner(endpoints []PosType) UnionScanner {
	us := UnionScanner{endpoints: endpoints, next: 1, pos: PosTypeMax}
	if len(endpoints) >= 2 {
		us.pos = endpoints[0]
	}
	return us
}

// Pos returns the next position to be visited, or PosTypeMax if there
// aren't any.
func (us *UnionScanner) Pos() PosType {
	return us.pos
}

// Scan yields the next interval, clipped to limit.  The loop
//   for us.Scan(&start, &end, limit) {
//     ...
//   }
// visits every interval piece below limit.  A later Scan call with a larger
// limit resumes where the previous loop stopped.
func (us *UnionScanner) Scan(start, end *PosType, limit PosType) bool {
	if us.pos >= limit {
		return false
	}
	*start = us.pos
	e := us.endpoints[us.next]
	if e > limit {
		us.pos, *end = limit, limit
		return true
	}
	*end = e
	us.next += 2
	if us.next >= len(us.endpoints) {
		us.pos = PosTypeMax
	} else {
		us.pos = us.endpoints[us.next-1]
	}
	return true
}
