// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"sort"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Entry is one index entry.  End is carried so that the query executor can
// reject bin-only candidates without fetching the record.
type Entry struct {
	Bin   BinKey
	Begin PosType
	End   PosType
	ID    RecordID
}

// Compare orders entries by (Bin, Begin, End, ID).  It returns -1, 0 or 1.
func (e Entry) Compare(o Entry) int {
	switch {
	case e.Bin != o.Bin:
		if e.Bin < o.Bin {
			return -1
		}
		return 1
	case e.Begin != o.Begin:
		if e.Begin < o.Begin {
			return -1
		}
		return 1
	case e.End != o.End:
		if e.End < o.End {
			return -1
		}
		return 1
	case e.ID != o.ID:
		if e.ID < o.ID {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether e sorts before o.
func (e Entry) Less(o Entry) bool { return e.Compare(o) < 0 }

// Builder is the write side of a range index.
type Builder interface {
	// Insert adds an index entry for the interval.  The interval must have
	// been validated by the codec.
	Insert(iv Interval, id RecordID) error
	// Finalize sorts the entries and freezes the index.  It is idempotent.
	Finalize() error
}

// IndexReader is the read side of a frozen range index.  Implementations must
// be safe for concurrent use.
type IndexReader interface {
	// Codec returns the codec of the index, with the chromosome registry
	// populated.
	Codec() *Codec
	// Levels returns the set of levels that hold at least one entry of the
	// chromosome.
	Levels(rank Rank) LevelMask
	// Entries returns an iterator over the entries whose bin key lies in
	// [r.Lo, r.Hi], in sort order.  Batches are read on demand, so a caller
	// that stops early does not pay for the rest of the range.
	Entries(r ScanRange) EntryIterator
}

// EntryIterator yields the entries of one scan range a batch at a time.
type EntryIterator interface {
	// Next returns the next non-empty batch of entries, or (nil, nil) once
	// the range is exhausted.  The caller must not modify the batch.
	Next() ([]Entry, error)
}

// ReadEntries drains it and returns all of its entries.
func ReadEntries(it EntryIterator) ([]Entry, error) {
	var all []Entry
	for n := 0; ; n++ {
		batch, err := it.Next()
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return all, nil
		}
		if n == 0 {
			all = batch
			continue
		}
		if n == 1 {
			all = append([]Entry(nil), all...)
		}
		all = append(all, batch...)
	}
}

// sliceIterator yields one in-memory batch.
type sliceIterator struct {
	entries []Entry
	err     error
}

func (it *sliceIterator) Next() ([]Entry, error) {
	entries, err := it.entries, it.err
	it.entries, it.err = nil, nil
	return entries, err
}

// Index is an in-memory Builder and IndexReader.
type Index struct {
	codec *Codec

	mu      sync.Mutex
	entries []Entry
	levels  []LevelMask // indexed by rank
	frozen  bool
}

// NewIndex creates an empty index.
func NewIndex(codec *Codec) *Index {
	return &Index{codec: codec}
}

// Codec implements IndexReader.
func (x *Index) Codec() *Codec { return x.codec }

// Insert implements Builder.
func (x *Index) Insert(iv Interval, id RecordID) error {
	bin, level, err := x.codec.Bin(iv)
	if err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.frozen {
		return errors.Wrapf(ErrIndexFrozen, "insert %v", iv)
	}
	for int(iv.Rank) >= len(x.levels) {
		x.levels = append(x.levels, 0)
	}
	x.levels[iv.Rank] = x.levels[iv.Rank].With(level)
	x.entries = append(x.entries, Entry{Bin: bin, Begin: iv.Begin, End: iv.End, ID: id})
	return nil
}

// Finalize implements Builder.
func (x *Index) Finalize() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.frozen {
		return nil
	}
	sort.Slice(x.entries, func(i, j int) bool { return x.entries[i].Less(x.entries[j]) })
	x.frozen = true
	log.Debug.Printf("gri: finalized index with %d entries", len(x.entries))
	return nil
}

// Frozen checks if Finalize has been called.
func (x *Index) Frozen() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.frozen
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

// Levels implements IndexReader.
func (x *Index) Levels(rank Rank) LevelMask {
	x.mu.Lock()
	defer x.mu.Unlock()
	if int(rank) >= len(x.levels) {
		return 0
	}
	return x.levels[rank]
}

// Entries implements IndexReader.
func (x *Index) Entries(r ScanRange) EntryIterator {
	x.mu.Lock()
	entries, frozen := x.entries, x.frozen
	x.mu.Unlock()
	if !frozen {
		return &sliceIterator{err: ErrIndexNotFrozen}
	}
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].Bin >= r.Lo })
	hi := lo + sort.Search(len(entries)-lo, func(i int) bool { return entries[lo+i].Bin > r.Hi })
	return &sliceIterator{entries: entries[lo:hi:hi]}
}
