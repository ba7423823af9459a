// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grs

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gri/biopb"
	"github.com/grailbio/gri/gri"
	"v.io/x/lib/vlog"
)

// DefaultSortBatchSize is the default number of index entries to keep in
// memory before resorting to external sorting.
const DefaultSortBatchSize = 1 << 20

// DefaultParallelism is the default value for WriteOpts.Parallelism.
const DefaultParallelism = 2

// WriteOpts controls the behavior of Create and Load.
type WriteOpts struct {
	// Scheme is the binning scheme.  The zero value selects
	// gri.DefaultBinScheme.
	Scheme gri.BinScheme

	// SortBatchSize is the number of index entries to keep in memory before
	// spilling a sorted run to TmpDir.  If <= 0, DefaultSortBatchSize is used.
	SortBatchSize int

	// Parallelism limits the number of background sorts.  Max memory
	// consumption grows linearly with this value.  If <= 0,
	// DefaultParallelism is used.
	Parallelism int

	// TmpDir is the directory for sorted runs.  "" means the system default,
	// usually /tmp.
	TmpDir string

	// NoSnappy, if false (default), compresses table blocks using snappy.
	NoSnappy bool

	// BlockSize is the target size of a table block, pre-compression.  Small
	// blocks make random record lookups cheaper.  If <= 0, 64KiB is used.
	BlockSize int

	// LogEvery is passed to gri.LoadOpts by Load.
	LogEvery int
}

// Writer builds a store directory.  It implements gri.Builder and
// gri.RecordSink, so it can be passed to gri.NewLoader.  Index entries go
// through an external sort, so the index may exceed memory.
//
// A Writer is not thread safe.
//
// Example:
//   w, err := grs.Create(ctx, dir, grs.WriteOpts{})
//   loader := gri.NewLoader(w.Codec(), w, w)
//   n, err := loader.Load(scanner)
//   err = w.Close()
type Writer struct {
	ctx    context.Context
	dir    string
	opts   WriteOpts
	codec  *gri.Codec
	levels []gri.LevelMask // indexed by rank
	pool   *blockPool
	err    errors.Once

	recordsOut file.File
	records    *tableWriter
	nextID     gri.RecordID
	scratch    []byte

	sorter *entrySorter
	frozen bool
	closed bool
}

// Create starts a new store in dir.  Existing store files in dir are
// clobbered.
func Create(ctx context.Context, dir string, opts WriteOpts) (*Writer, error) {
	if opts.SortBatchSize <= 0 {
		opts.SortBatchSize = DefaultSortBatchSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = defaultBlockSize
	}
	codec, err := gri.NewCodec(gri.CodecOpts{Scheme: opts.Scheme})
	if err != nil {
		return nil, err
	}
	path := RecordsPath(dir)
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	vlog.VI(1).Infof("New store writer: %v, %+v", dir, opts)
	w := &Writer{
		ctx:        ctx,
		dir:        dir,
		opts:       opts,
		codec:      codec,
		pool:       newBlockPool(opts.BlockSize),
		recordsOut: out,
		nextID:     gri.FirstRecordID,
	}
	w.records = newTableWriter(out.Writer(ctx), path, !opts.NoSnappy, w.pool, &w.err)
	w.sorter = newEntrySorter(opts, w.pool, &w.err)
	return w, nil
}

// Codec returns the codec that assigns chromosome ranks and bins.  Pass it to
// gri.NewLoader.
func (w *Writer) Codec() *gri.Codec { return w.codec }

// Insert implements gri.Builder.
func (w *Writer) Insert(iv gri.Interval, id gri.RecordID) error {
	if w.frozen {
		return gri.ErrIndexFrozen
	}
	bin, level, err := w.codec.Bin(iv)
	if err != nil {
		return err
	}
	for int(iv.Rank) >= len(w.levels) {
		w.levels = append(w.levels, 0)
	}
	w.levels[iv.Rank] = w.levels[iv.Rank].With(level)
	w.sorter.add(gri.Entry{Bin: bin, Begin: iv.Begin, End: iv.End, ID: id})
	return w.err.Err()
}

// PutRecord implements gri.RecordSink.
func (w *Writer) PutRecord(rec gri.Record) error {
	if w.frozen {
		return gri.ErrIndexFrozen
	}
	if rec.ID != w.nextID {
		return fmt.Errorf("put record: id %d out of order, expect %d", rec.ID, w.nextID)
	}
	w.nextID++
	w.scratch = appendRecord(w.scratch[:0], rec)
	w.records.add(uint64(rec.ID), w.scratch)
	return w.err.Err()
}

// Finalize implements gri.Builder.  It sorts the index, and writes the index
// table and the manifest.  It is idempotent.
func (w *Writer) Finalize() error {
	if w.frozen {
		return w.err.Err()
	}
	w.frozen = true
	w.records.finish()
	w.err.Set(w.recordsOut.Close(w.ctx))
	w.recordsOut = nil

	path := IndexPath(w.dir)
	out, err := file.Create(w.ctx, path)
	if err != nil {
		w.sorter.abort()
		w.sorter.cleanup()
		w.err.Set(errors.E(err, path))
		return w.err.Err()
	}
	w.sorter.finish(out.Writer(w.ctx), path)
	w.err.Set(out.Close(w.ctx))
	w.sorter.cleanup()
	if err := w.err.Err(); err != nil {
		return err
	}

	manifest := biopb.Manifest{
		MinShift:   uint32(w.codec.Scheme().MinShift),
		Depth:      uint32(w.codec.Scheme().Depth),
		NumRecords: uint64(w.nextID - gri.FirstRecordID),
		NumEntries: w.sorter.nEntries,
	}
	for _, ch := range w.codec.Chromosomes().All() {
		var levels gri.LevelMask
		if int(ch.Rank) < len(w.levels) {
			levels = w.levels[ch.Rank]
		}
		manifest.Chromosomes = append(manifest.Chromosomes, &biopb.ChromosomeInfo{
			Name:       ch.Name,
			Rank:       uint32(ch.Rank),
			MaxEnd:     int64(ch.MaxEnd),
			NumRecords: ch.NumRecords,
			Levels:     uint32(levels),
		})
	}
	w.err.Set(WriteManifest(w.ctx, w.dir, &manifest))
	if w.err.Err() == nil {
		log.Debug.Printf("%s: wrote %d records, %d chromosomes", w.dir, manifest.NumRecords, len(manifest.Chromosomes))
	}
	return w.err.Err()
}

// Close releases the resources of the writer.  If Finalize has not been
// called, the partially written store is removed.
func (w *Writer) Close() error {
	if w.closed {
		return w.err.Err()
	}
	w.closed = true
	if w.frozen {
		return w.err.Err()
	}
	w.frozen = true
	w.sorter.abort()
	w.sorter.cleanup()
	if w.recordsOut != nil {
		w.records.finish()
		w.err.Set(w.recordsOut.Close(w.ctx))
	}
	return Remove(w.ctx, w.dir)
}

// Load creates a store in dir holding the features read from s.  It returns
// the number of records loaded.  On error, the store is removed.
func Load(ctx context.Context, dir string, s gri.FeatureScanner, opts WriteOpts) (n int, err error) {
	w, err := Create(ctx, dir, opts)
	if err != nil {
		return 0, err
	}
	n, err = gri.NewLoader(w.Codec(), w, w, gri.LoadOpts{LogEvery: opts.LogEvery}).Load(s)
	if e := w.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		if e := Remove(ctx, dir); e != nil {
			log.Error.Printf("%s: remove failed store: %v", dir, e)
		}
	}
	return n, err
}
