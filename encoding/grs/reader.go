// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grs

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gri/biopb"
	"github.com/grailbio/gri/gri"
	lru "github.com/hashicorp/golang-lru"
	pkgerrors "github.com/pkg/errors"
)

// DefaultCacheBlocks is the default value of ReadOpts.CacheBlocks.
const DefaultCacheBlocks = 256

// ReadOpts controls the behavior of Open.
type ReadOpts struct {
	// CacheBlocks is the number of decoded table blocks kept in memory.  If
	// <= 0, DefaultCacheBlocks is used.
	CacheBlocks int
}

type blockKind int

const (
	indexBlock blockKind = iota
	recordBlock
)

type blockKey struct {
	kind blockKind
	idx  int
}

// Reader is a read-only view of a store.  It implements gri.IndexReader and
// gri.RecordReader, and is safe for concurrent use.
type Reader struct {
	dir      string
	manifest biopb.Manifest
	codec    *gri.Codec
	levels   []gri.LevelMask // indexed by rank
	index    *tableReader
	records  *tableReader
	// cache maps blockKey to []gri.Entry or []gri.Record.
	cache *lru.Cache
}

// Open opens the store in dir.
func Open(ctx context.Context, dir string, opts ReadOpts) (*Reader, error) {
	if opts.CacheBlocks <= 0 {
		opts.CacheBlocks = DefaultCacheBlocks
	}
	manifest, err := ReadManifest(ctx, dir)
	if err != nil {
		return nil, err
	}
	chroms := gri.NewChromosomes()
	levels := make([]gri.LevelMask, len(manifest.Chromosomes))
	for _, ch := range manifest.Chromosomes {
		if err := chroms.Restore(gri.Chromosome{
			Name:       ch.Name,
			Rank:       gri.Rank(ch.Rank),
			MaxEnd:     gri.PosType(ch.MaxEnd),
			NumRecords: ch.NumRecords,
		}); err != nil {
			return nil, errors.E(errors.Integrity, err, ManifestPath(dir))
		}
		levels[ch.Rank] = gri.LevelMask(ch.Levels)
	}
	codec, err := gri.NewCodec(gri.CodecOpts{
		Scheme:      gri.BinScheme{MinShift: uint(manifest.MinShift), Depth: uint(manifest.Depth)},
		Chromosomes: chroms,
	})
	if err != nil {
		return nil, errors.E(errors.Integrity, err, ManifestPath(dir))
	}
	cache, err := lru.New(opts.CacheBlocks)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		dir:      dir,
		manifest: manifest,
		codec:    codec,
		levels:   levels,
		cache:    cache,
	}
	if r.index, err = openTable(ctx, IndexPath(dir)); err != nil {
		return nil, err
	}
	if r.records, err = openTable(ctx, RecordsPath(dir)); err != nil {
		r.index.close(ctx) // nolint: errcheck
		return nil, err
	}
	if r.index.index.NumItems != manifest.NumEntries || r.records.index.NumItems != manifest.NumRecords {
		err := errors.E(errors.Integrity, fmt.Sprintf("%s: manifest counts (%d entries, %d records) do not match tables (%d, %d)",
			dir, manifest.NumEntries, manifest.NumRecords, r.index.index.NumItems, r.records.index.NumItems))
		r.Close(ctx) // nolint: errcheck
		return nil, err
	}
	log.Debug.Printf("%s: opened store, %d records, %d chromosomes", dir, manifest.NumRecords, len(manifest.Chromosomes))
	return r, nil
}

// Close releases the files.
func (r *Reader) Close(ctx context.Context) error {
	err := errors.Once{}
	err.Set(r.index.close(ctx))
	err.Set(r.records.close(ctx))
	return err.Err()
}

// Codec implements gri.IndexReader.
func (r *Reader) Codec() *gri.Codec { return r.codec }

// Manifest returns the manifest of the store.
func (r *Reader) Manifest() biopb.Manifest { return r.manifest }

// Levels implements gri.IndexReader.
func (r *Reader) Levels(rank gri.Rank) gri.LevelMask {
	if int(rank) >= len(r.levels) {
		return 0
	}
	return r.levels[rank]
}

func (r *Reader) entryBlock(i int) ([]gri.Entry, error) {
	key := blockKey{indexBlock, i}
	if v, ok := r.cache.Get(key); ok {
		return v.([]gri.Entry), nil
	}
	data, err := r.index.readBlock(i)
	if err != nil {
		return nil, err
	}
	entries, err := parseEntries(data)
	if err != nil {
		return nil, errors.E(errors.Integrity, err, fmt.Sprintf("%s: block %d", r.index.path, i))
	}
	if n := r.index.index.Blocks[i].NumItems; len(entries) != int(n) {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("%s: block %d has %d entries, expect %d", r.index.path, i, len(entries), n))
	}
	r.cache.Add(key, entries)
	return entries, nil
}

func (r *Reader) recordBlock(i int) ([]gri.Record, error) {
	key := blockKey{recordBlock, i}
	if v, ok := r.cache.Get(key); ok {
		return v.([]gri.Record), nil
	}
	data, err := r.records.readBlock(i)
	if err != nil {
		return nil, err
	}
	n := int(r.records.index.Blocks[i].NumItems)
	recs, err := parseRecords(data, n)
	if err != nil {
		return nil, errors.E(errors.Integrity, err, fmt.Sprintf("%s: block %d", r.records.path, i))
	}
	if len(recs) != n {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("%s: block %d has %d records, expect %d", r.records.path, i, len(recs), n))
	}
	r.cache.Add(key, recs)
	return recs, nil
}

// Entries implements gri.IndexReader.  Blocks are read one per call to Next.
func (r *Reader) Entries(sr gri.ScanRange) gri.EntryIterator {
	return &entryIterator{
		r:   r,
		sr:  sr,
		blk: biopb.SearchBlocks(r.index.index.Blocks, uint64(sr.Lo)),
	}
}

// entryIterator walks the index blocks that intersect a scan range.
type entryIterator struct {
	r   *Reader
	sr  gri.ScanRange
	blk int // next block to read
}

func (it *entryIterator) Next() ([]gri.Entry, error) {
	blocks := it.r.index.index.Blocks
	for it.blk < len(blocks) && blocks[it.blk].StartKey <= uint64(it.sr.Hi) {
		entries, err := it.r.entryBlock(it.blk)
		if err != nil {
			return nil, err
		}
		it.blk++
		lo := sort.Search(len(entries), func(j int) bool { return entries[j].Bin >= it.sr.Lo })
		hi := sort.Search(len(entries), func(j int) bool { return entries[j].Bin > it.sr.Hi })
		if lo < hi {
			return entries[lo:hi:hi], nil
		}
	}
	return nil, nil
}

// Record implements gri.RecordReader.
func (r *Reader) Record(id gri.RecordID) (gri.Record, error) {
	blocks := r.records.index.Blocks
	i := biopb.SearchBlocks(blocks, uint64(id))
	if i >= len(blocks) || !blocks[i].Contains(uint64(id)) {
		return gri.Record{}, pkgerrors.Wrapf(gri.ErrUnknownRecord, "%s: id %d", r.dir, id)
	}
	recs, err := r.recordBlock(i)
	if err != nil {
		return gri.Record{}, err
	}
	j := sort.Search(len(recs), func(j int) bool { return recs[j].ID >= id })
	if j >= len(recs) || recs[j].ID != id {
		return gri.Record{}, errors.E(errors.Integrity, fmt.Sprintf("%s: id %d missing from block %d", r.records.path, id, i))
	}
	return recs[j], nil
}

// Verify reads every block of both tables, and checks checksums, item counts
// and key order.  The cache is bypassed.
func (r *Reader) Verify() error {
	var (
		lastEntry gri.Entry
		nEntries  uint64
	)
	for i, bi := range r.index.index.Blocks {
		data, err := r.index.readBlock(i)
		if err != nil {
			return err
		}
		entries, err := parseEntries(data)
		if err != nil {
			return errors.E(errors.Integrity, err, fmt.Sprintf("%s: block %d", r.index.path, i))
		}
		if len(entries) != int(bi.NumItems) || len(entries) == 0 ||
			uint64(entries[0].Bin) != bi.StartKey || uint64(entries[len(entries)-1].Bin) != bi.LimitKey {
			return errors.E(errors.Integrity, fmt.Sprintf("%s: block %d does not match its index entry %v", r.index.path, i, bi))
		}
		for _, e := range entries {
			if nEntries > 0 && !lastEntry.Less(e) {
				return errors.E(errors.Integrity, fmt.Sprintf("%s: entry %+v out of order after %+v", r.index.path, e, lastEntry))
			}
			if e.ID < gri.FirstRecordID || uint64(e.ID) > r.manifest.NumRecords {
				return errors.E(errors.Integrity, fmt.Sprintf("%s: entry %+v refers to a missing record", r.index.path, e))
			}
			lastEntry = e
			nEntries++
		}
	}
	if nEntries != r.manifest.NumEntries {
		return errors.E(errors.Integrity, fmt.Sprintf("%s: found %d entries, expect %d", r.index.path, nEntries, r.manifest.NumEntries))
	}

	nextID := gri.FirstRecordID
	for i, bi := range r.records.index.Blocks {
		data, err := r.records.readBlock(i)
		if err != nil {
			return err
		}
		recs, err := parseRecords(data, int(bi.NumItems))
		if err != nil {
			return errors.E(errors.Integrity, err, fmt.Sprintf("%s: block %d", r.records.path, i))
		}
		if len(recs) != int(bi.NumItems) {
			return errors.E(errors.Integrity, fmt.Sprintf("%s: block %d has %d records, expect %d", r.records.path, i, len(recs), bi.NumItems))
		}
		for _, rec := range recs {
			if rec.ID != nextID {
				return errors.E(errors.Integrity, fmt.Sprintf("%s: record %d out of order, expect %d", r.records.path, rec.ID, nextID))
			}
			if _, _, err := r.codec.Bin(rec.Interval()); err != nil {
				return errors.E(errors.Integrity, err, fmt.Sprintf("%s: record %d", r.records.path, rec.ID))
			}
			nextID++
		}
	}
	if n := uint64(nextID - gri.FirstRecordID); n != r.manifest.NumRecords {
		return errors.E(errors.Integrity, fmt.Sprintf("%s: found %d records, expect %d", r.records.path, n, r.manifest.NumRecords))
	}
	return nil
}
