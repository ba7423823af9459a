// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package interval

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func scanAll(us *UnionScanner, limit PosType) []PosType {
	var (
		start, end PosType
		got        []PosType
	)
	for us.Scan(&start, &end, limit) {
		got = append(got, start, end)
	}
	return got
}

func TestUnionScanner(t *testing.T) {
	us := NewUnionScanner([]PosType{5, 17, 20, 25})
	expect.EQ(t, us.Pos(), PosType(5))
	expect.EQ(t, scanAll(&us, 22), []PosType{5, 17, 20, 22})
	expect.EQ(t, us.Pos(), PosType(22))
	expect.EQ(t, scanAll(&us, PosTypeMax), []PosType{22, 25})
	expect.EQ(t, us.Pos(), PosType(PosTypeMax))

	// A limit at an interval start stops before it.
	us = NewUnionScanner([]PosType{5, 17, 20, 25})
	expect.EQ(t, scanAll(&us, 20), []PosType{5, 17})
	expect.EQ(t, scanAll(&us, 21), []PosType{20, 21})

	// A limit below the first interval yields nothing.
	us = NewUnionScanner([]PosType{5, 17})
	expect.EQ(t, len(scanAll(&us, 5)), 0)
	expect.EQ(t, scanAll(&us, 100), []PosType{5, 17})

	empty := NewUnionScanner(nil)
	expect.EQ(t, len(scanAll(&empty, PosTypeMax)), 0)
}
