// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/gri/interval"
	"github.com/pkg/errors"
)

// QueryOpts configures an Executor.
type QueryOpts struct {
	// Parallelism is the number of scan ranges of one query range whose
	// first batch is fetched concurrently.  Values <= 1 fetch every batch on
	// demand.  Results are produced in the same order either way.
	Parallelism int
	// MaxCandidates caps the number of index entries a query may examine.
	// If <= 0, there is no limit.
	MaxCandidates int
}

// Executor answers overlap queries against a frozen index.  An Executor is
// immutable and may be shared by concurrent goroutines.  Each query call
// returns an independent Results.
type Executor struct {
	index   IndexReader
	records RecordReader
	codec   *Codec
	planner Planner
	opts    QueryOpts
}

// NewExecutor creates an executor reading index entries from index and
// payloads from records.
func NewExecutor(index IndexReader, records RecordReader, opts ...QueryOpts) *Executor {
	e := &Executor{
		index:   index,
		records: records,
		codec:   index.Codec(),
		planner: NewPlanner(index.Codec()),
	}
	if len(opts) > 0 {
		e.opts = opts[0]
	}
	return e
}

// queryRange is one resolved query range.
type queryRange struct {
	rank       Rank
	begin, end PosType
}

// Query parses a range expression (see ParseRange) and returns the records
// overlapping it.  If the whole expression names a registered chromosome, it
// is treated as that chromosome, so "HLA-A*01:01" works without a position
// part.  An unregistered chromosome yields ErrUnknownChromosome, never an
// empty result.
func (e *Executor) Query(expr string) (*Results, error) {
	chroms := e.codec.Chromosomes()
	if rank, ok := chroms.Lookup(expr); ok {
		ch, _ := chroms.Get(rank)
		return e.newResults([]queryRange{{rank, 0, ch.MaxEnd}}, false), nil
	}
	r, err := ParseRange(expr)
	if err != nil {
		return nil, err
	}
	rank, ok := chroms.Lookup(r.Chrom)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownChromosome, "query %q: chromosome %q", expr, r.Chrom)
	}
	end := r.End
	if r.OpenEnd {
		ch, _ := chroms.Get(rank)
		// No record extends past MaxEnd, so an open range starting there is
		// empty rather than inverted.  Explicit ranges still go through the
		// begin < end check in queryRank.
		if r.Begin >= ch.MaxEnd {
			return e.newResults(nil, false), nil
		}
		end = ch.MaxEnd
	}
	return e.queryRank(rank, r.Begin, end)
}

// QueryRange returns the records on chrom overlapping [begin, end).
func (e *Executor) QueryRange(chrom string, begin, end PosType) (*Results, error) {
	rank, ok := e.codec.Chromosomes().Lookup(chrom)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownChromosome, "query %q", chrom)
	}
	return e.queryRank(rank, begin, end)
}

func (e *Executor) queryRank(rank Rank, begin, end PosType) (*Results, error) {
	if begin < 0 || begin >= end {
		return nil, errors.Wrapf(ErrInvalidInterval, "query %s:[%d, %d)", e.codec.Chromosomes().Name(rank), begin, end)
	}
	if begin > e.codec.MaxPosition() {
		return nil, errors.Wrapf(ErrInvalidPosition, "query %s:[%d, %d)", e.codec.Chromosomes().Name(rank), begin, end)
	}
	return e.newResults([]queryRange{{rank, begin, end}}, false), nil
}

// QueryRegions returns the records overlapping any interval of the set.
// Chromosomes are visited in the set's order.  Chromosomes absent from the
// index are skipped; unlike Query, this is not an error, since a region file
// typically covers a whole reference.  Each record is reported once even if
// it overlaps several intervals.
func (e *Executor) QueryRegions(regions *interval.RegionSet) (*Results, error) {
	var ranges []queryRange
	chroms := e.codec.Chromosomes()
	for _, name := range regions.Chroms() {
		rank, ok := chroms.Lookup(name)
		if !ok {
			log.Debug.Printf("gri: region chromosome %q not in index, skipping", name)
			continue
		}
		// Pieces at or beyond MaxPosition cannot overlap any record.
		var begin, end PosType
		us := regions.Scanner(name)
		for us.Scan(&begin, &end, e.codec.MaxPosition()) {
			ranges = append(ranges, queryRange{rank, begin, end})
		}
	}
	return e.newResults(ranges, true), nil
}

func (e *Executor) newResults(ranges []queryRange, dedup bool) *Results {
	r := &Results{e: e, ranges: ranges, rangeIdx: -1}
	if dedup {
		r.seen = roaring64.New()
	}
	return r
}

// Results is a lazily computed query result.  The usage is
//
//   for r.Scan() {
//     rec := r.Record()
//   }
//   err := r.Err()
//
// Within one scan range (one binning level of one query range), records are
// produced in (begin, end) order.  Scan ranges are produced in level order,
// so the whole result is not sorted.  Results is not thread safe.
type Results struct {
	e      *Executor
	ranges []queryRange
	seen   *roaring64.Bitmap

	rangeIdx int
	plan     []ScanRange
	// fetched[i] holds the first batch of plan[i] if it was prefetched.
	fetched []prefetched
	planIdx int

	// iter reads the remaining batches of plan[planIdx-1]; nil once the
	// scan range is exhausted or cut short.
	iter EntryIterator
	// entries of the current batch not yet examined.
	entries    []Entry
	candidates int

	rec Record
	err error
}

// Scan advances to the next record.  It returns false at the end of the
// result or on error.
func (r *Results) Scan() bool {
	if r.err != nil {
		return false
	}
	for {
		for len(r.entries) > 0 {
			ent := r.entries[0]
			r.entries = r.entries[1:]
			q := r.ranges[r.rangeIdx]
			// Within a level, entries are in begin order.
			if ent.Begin >= q.end {
				r.entries, r.iter = nil, nil
				break
			}
			r.candidates++
			if limit := r.e.opts.MaxCandidates; limit > 0 && r.candidates > limit {
				r.err = errors.Wrapf(ErrQueryLimit, "more than %d candidates", limit)
				return false
			}
			if ent.End <= q.begin {
				continue
			}
			if r.seen != nil {
				if r.seen.Contains(uint64(ent.ID)) {
					continue
				}
				r.seen.Add(uint64(ent.ID))
			}
			rec, err := r.e.records.Record(ent.ID)
			if err != nil {
				r.err = err
				return false
			}
			r.rec = rec
			return true
		}
		if r.iter != nil {
			// The candidate limit is checked per entry above, so no batch is
			// read once the limit is exceeded.
			entries, err := r.iter.Next()
			if err != nil {
				r.err = err
				return false
			}
			if len(entries) == 0 {
				r.iter = nil
			}
			r.entries = entries
			continue
		}
		if !r.nextScanRange() {
			return false
		}
	}
}

// nextScanRange starts reading the next scan range.
func (r *Results) nextScanRange() bool {
	for r.planIdx >= len(r.plan) {
		if !r.nextQueryRange() {
			return false
		}
	}
	i := r.planIdx
	r.planIdx++
	if r.fetched != nil {
		r.entries, r.iter = r.fetched[i].entries, r.fetched[i].iter
		r.fetched[i] = prefetched{}
		return true
	}
	r.entries, r.iter = nil, r.e.index.Entries(r.plan[i])
	return true
}

func (r *Results) nextQueryRange() bool {
	if r.rangeIdx+1 >= len(r.ranges) {
		return false
	}
	r.rangeIdx++
	q := r.ranges[r.rangeIdx]
	var err error
	r.plan, err = r.e.planner.Plan(q.rank, q.begin, q.end, r.e.index.Levels(q.rank))
	if err != nil {
		r.err = err
		return false
	}
	r.planIdx = 0
	r.fetched = nil
	if r.e.opts.Parallelism > 1 && len(r.plan) > 1 {
		if r.fetched, err = r.e.prefetch(r.plan); err != nil {
			r.err = err
			return false
		}
	}
	return true
}

// prefetched is the first batch of a scan range, read ahead of time, and
// the iterator holding the rest.
type prefetched struct {
	entries []Entry
	iter    EntryIterator
}

// prefetch reads the first batch of every scan range concurrently.
func (e *Executor) prefetch(plan []ScanRange) ([]prefetched, error) {
	fetched := make([]prefetched, len(plan))
	parallelism := e.opts.Parallelism
	if parallelism > len(plan) {
		parallelism = len(plan)
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(plan)) / parallelism
		endIdx := ((jobIdx + 1) * len(plan)) / parallelism
		for i := startIdx; i < endIdx; i++ {
			iter := e.index.Entries(plan[i])
			entries, err := iter.Next()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				iter = nil
			}
			fetched[i] = prefetched{entries, iter}
		}
		return nil
	})
	return fetched, err
}

// Record returns the current record.  Valid only after Scan returns true.
func (r *Results) Record() Record {
	return r.rec
}

// Feature returns the current record as a Feature.
func (r *Results) Feature() Feature {
	return Feature{
		Chrom:   r.e.codec.Chromosomes().Name(r.rec.Rank),
		Begin:   r.rec.Begin,
		End:     r.rec.End,
		Payload: r.rec.Payload,
	}
}

// Err returns the first error encountered, if any.
func (r *Results) Err() error {
	return r.err
}

// All drains the results and returns the records.
func (r *Results) All() ([]Record, error) {
	var recs []Record
	for r.Scan() {
		recs = append(recs, r.Record())
	}
	return recs, r.Err()
}
