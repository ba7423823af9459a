// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package gri implements a genomic range index (GRI): a structure mapping
// (chromosome, half-open interval) keys to record identifiers that answers
// "which records overlap this range" without scanning whole chromosomes.
//
// Intervals are grouped into bins of exponentially growing size (the
// UCSC/BAI/CSI family of schemes).  An interval is placed at the smallest
// level whose bin size is at least its length, in the bin containing its
// begin position.  A query then visits one contiguous run of bins per level,
// so the work per query is bounded regardless of chromosome length or how
// skewed interval lengths are.
//
// The write path is
//
//   codec, _ := gri.NewCodec(gri.CodecOpts{})
//   index := gri.NewIndex(codec)
//   records := &gri.MemRecords{}
//   n, err := gri.NewLoader(codec, index, records).LoadFeatures(features)
//
// and the read path is
//
//   results, err := gri.NewExecutor(index, records).Query("chr1:10000-20000")
//   for results.Scan() {
//     rec := results.Feature()
//     ...
//   }
//   err = results.Err()
//
// Package grs (github.com/grailbio/gri/encoding/grs) provides a persistent
// Builder, RecordSink, IndexReader and RecordReader.
//
// The index assumes one writer that finishes (Finalize) before any reader
// starts.  After Finalize, readers may run concurrently.
package gri
