// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import "github.com/pkg/errors"

// Errors returned by this package.  They are wrapped with context, so use
// errors.Cause(err) == ErrX (or the standard errors.Is) to test for them.
var (
	// ErrInvalidInterval is returned for an interval with begin >= end, or a
	// negative begin.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrInvalidPosition is returned for a position that the codec cannot
	// represent.
	ErrInvalidPosition = errors.New("position out of range")
	// ErrUnknownChromosome is returned when a query or key names a chromosome
	// that was never registered.
	ErrUnknownChromosome = errors.New("unknown chromosome")
	// ErrIndexFrozen is returned by Insert after Finalize.
	ErrIndexFrozen = errors.New("index is frozen")
	// ErrIndexNotFrozen is returned when reading an index before Finalize.
	ErrIndexNotFrozen = errors.New("index is not finalized")
	// ErrMalformedRangeExpression is returned when a range string does not
	// parse.
	ErrMalformedRangeExpression = errors.New("malformed range expression")
	// ErrChromosomeLimit is returned when registering more chromosomes than a
	// key can hold.
	ErrChromosomeLimit = errors.New("too many chromosomes")
	// ErrUnknownRecord is returned when a record id is not in the store.
	ErrUnknownRecord = errors.New("unknown record")
	// ErrQueryLimit is returned when a query examines more candidates than
	// QueryOpts.MaxCandidates.
	ErrQueryLimit = errors.New("query candidate limit exceeded")
)
