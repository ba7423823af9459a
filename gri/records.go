// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// RecordID identifies a record.  Ids are assigned densely starting at
// FirstRecordID in insertion order, and are never reused.
type RecordID uint64

// FirstRecordID is the id of the first record of a load.  Zero is never a
// valid id.
const FirstRecordID RecordID = 1

// Interval is a half-open, 0-based range [Begin, End) on the chromosome with
// the given rank.
type Interval struct {
	Rank  Rank
	Begin PosType
	End   PosType
}

// Overlaps checks if iv and [begin, end) share at least one position.
func (iv Interval) Overlaps(begin, end PosType) bool {
	return iv.Begin < end && begin < iv.End
}

// String implements fmt.Stringer.
func (iv Interval) String() string {
	return fmt.Sprintf("%d:[%d,%d)", iv.Rank, iv.Begin, iv.End)
}

// Feature is an ingested or returned tuple.  Begin is 0-based and End is
// exclusive.
type Feature struct {
	Chrom   string
	Begin   PosType
	End     PosType
	Payload []byte
}

// Record is a stored feature.
type Record struct {
	ID    RecordID
	Rank  Rank
	Begin PosType
	End   PosType
	// Payload is owned by the store.  The caller must not modify it.
	Payload []byte
}

// Interval returns the interval of the record.
func (r Record) Interval() Interval {
	return Interval{Rank: r.Rank, Begin: r.Begin, End: r.End}
}

// RecordSink stores records during a load.  Records are passed in increasing
// id order.
type RecordSink interface {
	PutRecord(rec Record) error
}

// RecordReader looks up records by id.  Implementations must be safe for
// concurrent use.
type RecordReader interface {
	Record(id RecordID) (Record, error)
}

// MemRecords is an in-memory RecordSink and RecordReader.  Writes must finish
// before reads start.
type MemRecords struct {
	mu   sync.RWMutex
	recs []Record
}

// PutRecord implements RecordSink.  The payload is not copied.
func (m *MemRecords) PutRecord(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if want := FirstRecordID + RecordID(len(m.recs)); rec.ID != want {
		return fmt.Errorf("put record: id %d out of order, expect %d", rec.ID, want)
	}
	m.recs = append(m.recs, rec)
	return nil
}

// Record implements RecordReader.
func (m *MemRecords) Record(id RecordID) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < FirstRecordID || int(id-FirstRecordID) >= len(m.recs) {
		return Record{}, errors.Wrapf(ErrUnknownRecord, "id %d", id)
	}
	return m.recs[id-FirstRecordID], nil
}

// Len returns the number of records.
func (m *MemRecords) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recs)
}
