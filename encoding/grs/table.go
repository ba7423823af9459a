// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grs

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/gri/biopb"
	"v.io/x/lib/vlog"
)

const (
	tableMagic   = uint64(0x454c424154535247) // "GRSTABLE"
	tableVersion = "GRS1"
)

// tableBlock stores the contents of one table block during writes.
type tableBlock struct {
	buf      []byte
	n        int    // # of bytes used in buf.
	startKey uint64 // key of the first item, set iff nItems>0.
	limitKey uint64 // key of the last item, set iff nItems>0.
	nItems   int
	checksum uint64 // seahash of the uncompressed contents.
}

func (b *tableBlock) remaining() int { return len(b.buf) - b.n }

// blockPool is a freepool of block buffers.
type blockPool struct {
	sync.Pool
	size int
}

func newBlockPool(size int) *blockPool {
	return &blockPool{Pool: sync.Pool{New: func() interface{} { return []byte{} }}, size: size}
}

// getBuf returns a buffer of p.size bytes.  The caller should call putBuf
// after use.
func (p *blockPool) getBuf() []byte {
	b := p.Get().([]byte)
	if cap(b) < p.size {
		return make([]byte, p.size)
	}
	return b[:p.size]
}

func (p *blockPool) putBuf(b []byte) {
	if b != nil {
		p.Put(b[:0]) // nolint: staticcheck
	}
}

// tableWriter produces a table file.  Keys must be added in nondecreasing
// order.  Any error is reported through err.
//
// Example:
//   w := newTableWriter(out, path, true, pool, &err)
//   for ... {
//     w.add(key, item)
//   }
//   w.finish()
type tableWriter struct {
	path    string
	rio     recordio.Writer
	err     *errors.Once
	pool    *blockPool
	lastKey uint64

	cur tableBlock // The block currently written to in add().

	indexMu sync.Mutex
	index   biopb.TableIndex
}

func newTableWriter(out io.Writer, path string, snappy bool, pool *blockPool, errReporter *errors.Once) *tableWriter {
	w := &tableWriter{
		path:  path,
		err:   errReporter,
		pool:  pool,
		index: biopb.TableIndex{Magic: tableMagic, Version: tableVersion, Snappy: snappy},
	}
	w.cur = w.newBlock()
	w.rio = recordio.NewWriter(out, recordio.WriterOpts{
		Marshal: func(scratch []byte, v interface{}) ([]byte, error) {
			b := v.(tableBlock)
			return b.buf[:b.n], nil
		},
		Index: func(loc recordio.ItemLocation, v interface{}) error {
			b := v.(tableBlock)
			if loc.Item != 0 { // One table block per recordio block.
				return fmt.Errorf("%s: unexpected item location %+v", w.path, loc)
			}
			w.indexMu.Lock()
			w.index.Blocks = append(w.index.Blocks, &biopb.BlockIndexEntry{
				StartKey:   b.startKey,
				LimitKey:   b.limitKey,
				FileOffset: loc.Block,
				NumItems:   uint32(b.nItems),
				Checksum:   b.checksum,
			})
			w.indexMu.Unlock()
			w.pool.putBuf(b.buf)
			return nil
		},
	})
	w.rio.AddHeader(recordio.KeyTrailer, true)
	return w
}

func (w *tableWriter) newBlock() tableBlock {
	return tableBlock{buf: w.pool.getBuf()}
}

// add appends an item.  An item larger than the block size gets a block of
// its own.
func (w *tableWriter) add(key uint64, item []byte) {
	if w.index.NumItems > 0 && key < w.lastKey {
		w.err.Set(errors.E(errors.Invalid, fmt.Sprintf("%s: key %d decreased, last %d", w.path, key, w.lastKey)))
		return
	}
	w.lastKey = key
	if w.cur.nItems > 0 && w.cur.remaining() < len(item) {
		w.flush()
		vlog.VI(2).Infof("%s: starting new block at key %d", w.path, key)
	}
	b := &w.cur
	if b.remaining() < len(item) {
		w.pool.putBuf(b.buf)
		b.buf = make([]byte, len(item))
	}
	copy(b.buf[b.n:], item)
	b.n += len(item)
	if b.nItems == 0 {
		b.startKey = key
	}
	b.limitKey = key
	b.nItems++
	w.index.NumItems++
}

func (w *tableWriter) flush() {
	if w.cur.nItems == 0 {
		return
	}
	b := w.cur
	w.cur = w.newBlock()

	data := b.buf[:b.n]
	b.checksum = seahash.Sum64(data)
	if w.index.Snappy {
		out := snappy.Encode(w.pool.getBuf(), data)
		w.pool.putBuf(b.buf)
		b.buf, b.n = out, len(out)
	}
	w.rio.Append(b)
	w.rio.Flush()
}

// finish flushes any pending data and writes the trailer.  "w" becomes invalid
// after the call.
func (w *tableWriter) finish() {
	w.flush()
	w.pool.putBuf(w.cur.buf)
	w.cur.buf = nil

	// The trailer is never compressed; the snappy flag is embedded in it.
	w.rio.Wait()
	sort.Slice(w.index.Blocks, func(i, j int) bool {
		return w.index.Blocks[i].FileOffset < w.index.Blocks[j].FileOffset
	})
	data, err := proto.Marshal(&w.index)
	if err != nil {
		w.err.Set(errors.E(err, w.path))
		return
	}
	w.rio.SetTrailer(data)
	w.err.Set(w.rio.Finish())
	vlog.VI(1).Infof("%s: wrote %d items in %d blocks", w.path, w.index.NumItems, len(w.index.Blocks))
}

// tableReader reads blocks of a table file at random.  It is safe for
// concurrent use.
type tableReader struct {
	path  string
	in    file.File
	index biopb.TableIndex

	mu  sync.Mutex
	rio recordio.Scanner
}

// readTableIndex reads the trailer of a table file.
func readTableIndex(path string, rio recordio.Scanner) (biopb.TableIndex, error) {
	index := biopb.TableIndex{}
	header := rio.Header()
	if !header.HasTrailer() {
		return index, errors.E(errors.Integrity, fmt.Sprintf("%s: no table index found (header: %+v, version %+v)", path, header, rio.Version()))
	}
	if err := proto.Unmarshal(rio.Trailer(), &index); err != nil {
		return index, errors.E(errors.Integrity, err, path)
	}
	if index.Magic != tableMagic {
		return index, errors.E(errors.Integrity, fmt.Sprintf("%s: wrong table magic %x; expect %x", path, index.Magic, tableMagic))
	}
	if index.Version != tableVersion {
		return index, errors.E(errors.Integrity, fmt.Sprintf("%s: wrong table version '%v'; expect '%v'", path, index.Version, tableVersion))
	}
	if i := biopb.CheckOrder(index.Blocks); i >= 0 {
		return index, errors.E(errors.Integrity, fmt.Sprintf("%s: block %d out of order: %v", path, i, index.Blocks[i]))
	}
	return index, nil
}

func openTable(ctx context.Context, path string) (*tableReader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	t := &tableReader{path: path, in: in}
	t.rio = recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	if t.index, err = readTableIndex(path, t.rio); err != nil {
		t.rio.Finish() // nolint: errcheck
		in.Close(ctx)  // nolint: errcheck
		return nil, err
	}
	vlog.VI(1).Infof("%s: opened table, %d items in %d blocks", path, t.index.NumItems, len(t.index.Blocks))
	return t, nil
}

// readBlock reads, decompresses and checksums the i'th block.
func (t *tableReader) readBlock(i int) ([]byte, error) {
	bi := t.index.Blocks[i]
	t.mu.Lock()
	t.rio.Seek(recordio.ItemLocation{Block: bi.FileOffset, Item: 0})
	if !t.rio.Scan() {
		err := t.rio.Err()
		t.mu.Unlock()
		if err == nil {
			err = errors.E(errors.Integrity, "block missing")
		}
		return nil, errors.E(err, fmt.Sprintf("%s: read block %d at offset %d", t.path, i, bi.FileOffset))
	}
	raw := t.rio.Get().([]byte)
	var (
		data []byte
		err  error
	)
	if t.index.Snappy {
		data, err = snappy.Decode(nil, raw)
	} else {
		data = append([]byte(nil), raw...)
	}
	t.mu.Unlock()
	if err != nil {
		return nil, errors.E(errors.Integrity, err, fmt.Sprintf("%s: block %d", t.path, i))
	}
	if sum := seahash.Sum64(data); sum != bi.Checksum {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("%s: block %d checksum mismatch: got %x, want %x", t.path, i, sum, bi.Checksum))
	}
	return data, nil
}

func (t *tableReader) close(ctx context.Context) error {
	err := errors.Once{}
	err.Set(t.rio.Finish())
	err.Set(t.in.Close(ctx))
	return err.Err()
}
