// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Range is a parsed range expression.
type Range struct {
	Chrom string
	// Begin is 0-based.
	Begin PosType
	// End is exclusive.  It is meaningful only if !OpenEnd.
	End PosType
	// OpenEnd is set when the expression omits the end, meaning "to the end
	// of the chromosome".
	OpenEnd bool
}

// ParseRange parses a range expression of one of the forms
//
//   chrom
//   chrom:begin
//   chrom:begin-end
//   chrom:-end
//
// Begin is 0-based and end is exclusive.  The positions may contain ','
// separators, e.g., "chr1:1,000-2,000".  The chromosome is everything before
// the last ':', so names such as "HLA-A*01:01" work when followed by a
// position part.
//
// ParseRange does not resolve the chromosome.  See Executor.Query for how a
// name that itself contains ':' is handled.
func ParseRange(expr string) (Range, error) {
	bad := func(msg string) (Range, error) {
		return Range{}, errors.Wrapf(ErrMalformedRangeExpression, "%q: %s", expr, msg)
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return bad("empty")
	}
	colon := strings.LastIndexByte(expr, ':')
	if colon < 0 {
		return Range{Chrom: expr, OpenEnd: true}, nil
	}
	r := Range{Chrom: expr[:colon]}
	if r.Chrom == "" {
		return bad("empty chromosome")
	}
	rest := strings.Replace(expr[colon+1:], ",", "", -1)
	if rest == "" {
		return bad("empty position")
	}
	beginStr, endStr := rest, ""
	hasDash := false
	if dash := strings.IndexByte(rest, '-'); dash >= 0 {
		beginStr, endStr, hasDash = rest[:dash], rest[dash+1:], true
	}
	if beginStr != "" {
		begin, err := strconv.ParseInt(beginStr, 10, 64)
		if err != nil || begin < 0 {
			return bad("bad begin")
		}
		r.Begin = PosType(begin)
	}
	switch {
	case !hasDash:
		r.OpenEnd = true
	case endStr == "":
		return bad("missing end after '-'")
	default:
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return bad("bad end")
		}
		r.End = PosType(end)
	}
	return r, nil
}
