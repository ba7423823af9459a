// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package grs implements the genomic record store: a directory that persists
// the records and the sorted range index built by gri.Loader, and reopens
// them read-only.
//
// A store directory contains three files:
//
//   records.grs   records keyed by record id
//   index.grs     index entries keyed by bin key, in (bin, begin, end, id) order
//   manifest      bin scheme, chromosome table and counts
//
// Both ".grs" files are tables.  A table is a recordio file where each
// recordio block holds one table block: a run of items, optionally snappy
// compressed.  The recordio trailer holds a biopb.TableIndex listing the first
// and last key, file offset, item count and seahash checksum of every block.
//
// The item layouts, all little endian, are
//
//   index entry: bin uint64, begin int64, end int64, id uint64
//   record:      id uint64, rank uint32, begin int64, end int64,
//                payload-length uint32, payload [payload-length]byte
//
// The manifest is a single-item recordio file holding a biopb.Manifest.
//
// Example:
//
//   n, err := grs.Load(ctx, dir, scanner, grs.WriteOpts{})
//   ...
//   r, err := grs.Open(ctx, dir, grs.ReadOpts{})
//   e := gri.NewExecutor(r, r)
//   results, err := e.Query("chr1:10000-20000")
package grs
