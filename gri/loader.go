// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// FeatureScanner yields features to load.  The usage is
//
//   for s.Scan() {
//     f := s.Feature()
//   }
//   err := s.Err()
type FeatureScanner interface {
	Scan() bool
	Feature() Feature
	Err() error
}

// SliceScanner is a FeatureScanner over a slice.
type SliceScanner struct {
	features []Feature
	i        int
}

// NewSliceScanner creates a scanner that yields the given features in order.
func NewSliceScanner(features []Feature) *SliceScanner {
	return &SliceScanner{features: features, i: -1}
}

// Scan implements FeatureScanner.
func (s *SliceScanner) Scan() bool {
	if s.i+1 >= len(s.features) {
		return false
	}
	s.i++
	return true
}

// Feature implements FeatureScanner.
func (s *SliceScanner) Feature() Feature { return s.features[s.i] }

// Err implements FeatureScanner.  It always returns nil.
func (s *SliceScanner) Err() error { return nil }

// LoadOpts configures a Loader.
type LoadOpts struct {
	// LogEvery causes a progress message every LogEvery records.  If <= 0,
	// progress is not logged.
	LogEvery int
}

// Loader ingests features: it registers chromosomes, assigns record ids,
// stores payloads and inserts index entries.  A Loader is not thread safe.
type Loader struct {
	codec   *Codec
	index   Builder
	records RecordSink
	opts    LoadOpts
	nextID  RecordID
	err     error
}

// NewLoader creates a loader writing to index and records.  The codec must be
// the one the index was created with.
func NewLoader(codec *Codec, index Builder, records RecordSink, opts ...LoadOpts) *Loader {
	l := &Loader{codec: codec, index: index, records: records, nextID: FirstRecordID}
	if len(opts) > 0 {
		l.opts = opts[0]
	}
	return l
}

// Add ingests one feature and returns its record id.  After the first error,
// every later call fails with the same error; the caller must discard the
// whole load.
func (l *Loader) Add(f Feature) (RecordID, error) {
	if l.err != nil {
		return 0, l.err
	}
	id, err := l.add(f)
	if err != nil {
		l.err = err
	}
	return id, err
}

func (l *Loader) add(f Feature) (RecordID, error) {
	if f.Begin < 0 || f.Begin >= f.End {
		return 0, errors.Wrapf(ErrInvalidInterval, "record %d: %s:[%d, %d)", l.nextID, f.Chrom, f.Begin, f.End)
	}
	if f.End > l.codec.MaxPosition() {
		return 0, errors.Wrapf(ErrInvalidPosition, "record %d: %s:[%d, %d) ends past %d", l.nextID, f.Chrom, f.Begin, f.End, l.codec.MaxPosition())
	}
	chroms := l.codec.Chromosomes()
	rank, err := chroms.Register(f.Chrom)
	if err != nil {
		return 0, err
	}
	id := l.nextID
	iv := Interval{Rank: rank, Begin: f.Begin, End: f.End}
	if err := l.index.Insert(iv, id); err != nil {
		return 0, errors.Wrapf(err, "record %d", id)
	}
	if err := l.records.PutRecord(Record{ID: id, Rank: rank, Begin: f.Begin, End: f.End, Payload: f.Payload}); err != nil {
		return 0, errors.Wrapf(err, "record %d", id)
	}
	chroms.Observe(rank, f.End)
	l.nextID++
	if l.opts.LogEvery > 0 && int(id)%l.opts.LogEvery == 0 {
		log.Printf("gri: loaded %d records, %d chromosomes", id, chroms.Len())
	}
	return id, nil
}

// Len returns the number of records added so far.
func (l *Loader) Len() int {
	return int(l.nextID - FirstRecordID)
}

// Finalize freezes the index.
func (l *Loader) Finalize() error {
	if l.err != nil {
		return l.err
	}
	if err := l.index.Finalize(); err != nil {
		l.err = err
		return err
	}
	return nil
}

// Load adds every feature from the scanner, then calls Finalize.  It returns
// the number of records loaded, or the first error.
func (l *Loader) Load(s FeatureScanner) (int, error) {
	for s.Scan() {
		if _, err := l.Add(s.Feature()); err != nil {
			return l.Len(), err
		}
	}
	if err := s.Err(); err != nil {
		l.err = err
		return l.Len(), err
	}
	if err := l.Finalize(); err != nil {
		return l.Len(), err
	}
	log.Debug.Printf("gri: loaded %d records on %d chromosomes", l.Len(), l.codec.Chromosomes().Len())
	return l.Len(), nil
}

// LoadFeatures is a shorthand for Load(NewSliceScanner(features)).
func (l *Loader) LoadFeatures(features []Feature) (int, error) {
	return l.Load(NewSliceScanner(features))
}
