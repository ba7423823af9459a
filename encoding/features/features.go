// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package features reads and writes tab-separated genomic features.  Each row
// is
//
//   chrom  begin  end  payload...
//
// By default begin is 1-based and end is inclusive, as in most annotation
// text formats, so a row "chr1 11 20" covers the 0-based half-open range
// [10, 20).  Columns after the third are joined by tabs to form the payload.
// Lines starting with '#' are skipped.
package features

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/gri/gri"
	"github.com/klauspost/compress/gzip"
)

// ReadOpts controls the behavior of NewReader and Open.
type ReadOpts struct {
	// ZeroBased interprets begin as 0-based instead of 1-based.
	ZeroBased bool
}

// Reader reads features.  It implements gri.FeatureScanner.
//
// Example:
//   r := features.NewReader(in, features.ReadOpts{})
//   for r.Scan() {
//     f := r.Feature()
//   }
//   err := r.Err()
type Reader struct {
	r       *tsv.Reader
	opts    ReadOpts
	feature gri.Feature
	err     error

	in file.File // set by Open.
	gz io.Closer // set by Open for gzipped input.
}

// NewReader creates a reader for in.
func NewReader(in io.Reader, opts ReadOpts) *Reader {
	r := tsv.NewReader(in)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return &Reader{r: r, opts: opts}
}

// Open opens a local or remote file.  Gzipped files are detected by their
// extension.  Call Close when done.
func Open(ctx context.Context, path string, opts ReadOpts) (*Reader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	reader := io.Reader(in.Reader(ctx))
	var gz *gzip.Reader
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if gz, err = gzip.NewReader(reader); err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, errors.E(err, path)
		}
		reader = gz
	}
	r := NewReader(reader, opts)
	r.in = in
	if gz != nil {
		r.gz = gz
	}
	return r, nil
}

// Close closes the file opened by Open.  It is a no-op for a reader created by
// NewReader.
func (r *Reader) Close(ctx context.Context) error {
	err := errors.Once{}
	if r.gz != nil {
		err.Set(r.gz.Close())
	}
	if r.in != nil {
		err.Set(r.in.Close(ctx))
	}
	return err.Err()
}

// Scan reads the next feature.  It returns false at the end of input or on
// error.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	cols, err := r.r.Reader.Read()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	line, _ := r.r.Reader.FieldPos(0)
	if r.feature, err = r.parse(cols); err != nil {
		r.err = errors.E(errors.Invalid, fmt.Sprintf("line %d: %v", line, err))
		return false
	}
	return true
}

func (r *Reader) parse(cols []string) (gri.Feature, error) {
	if len(cols) < 3 {
		return gri.Feature{}, fmt.Errorf("expect at least 3 columns, found %d", len(cols))
	}
	begin, err := strconv.ParseInt(cols[1], 10, 64)
	if err != nil {
		return gri.Feature{}, fmt.Errorf("bad begin %q", cols[1])
	}
	end, err := strconv.ParseInt(cols[2], 10, 64)
	if err != nil {
		return gri.Feature{}, fmt.Errorf("bad end %q", cols[2])
	}
	if !r.opts.ZeroBased {
		begin--
	}
	f := gri.Feature{Chrom: cols[0], Begin: gri.PosType(begin), End: gri.PosType(end)}
	if len(cols) > 3 {
		f.Payload = []byte(strings.Join(cols[3:], "\t"))
	}
	return f, nil
}

// Feature returns the current feature.  Valid only after Scan returns true.
func (r *Reader) Feature() gri.Feature { return r.feature }

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// WriteOpts controls the behavior of NewWriter.
type WriteOpts struct {
	// ZeroBased writes begin as 0-based instead of 1-based.
	ZeroBased bool
}

// Writer writes features in the format read by Reader.
type Writer struct {
	w    *tsv.Writer
	opts WriteOpts
}

// NewWriter creates a writer.  Call Flush when done.
func NewWriter(out io.Writer, opts WriteOpts) *Writer {
	return &Writer{w: tsv.NewWriter(out), opts: opts}
}

// Write writes one row.
func (w *Writer) Write(f gri.Feature) error {
	begin := int64(f.Begin)
	if !w.opts.ZeroBased {
		begin++
	}
	w.w.WriteString(f.Chrom)
	w.w.WriteInt64(begin)
	w.w.WriteInt64(int64(f.End))
	if len(f.Payload) > 0 {
		w.w.WriteBytes(f.Payload)
	}
	return w.w.EndLine()
}

// Flush writes out buffered data.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
