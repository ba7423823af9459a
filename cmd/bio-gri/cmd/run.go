// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gri/encoding/bgzf"
	"github.com/grailbio/gri/encoding/features"
	"github.com/grailbio/gri/encoding/grs"
	"github.com/grailbio/gri/gri"
	"github.com/grailbio/gri/interval"
)

type loadOpts struct {
	zeroBased     bool
	minShift      uint
	depth         uint
	sortBatchSize int
	parallelism   int
	tmpDir        string
	noSnappy      bool
	logEvery      int
}

func load(ctx context.Context, opts loadOpts, inPath, dir string, out io.Writer) (err error) {
	in, err := features.Open(ctx, inPath, features.ReadOpts{ZeroBased: opts.zeroBased})
	if err != nil {
		return err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	n, err := grs.Load(ctx, dir, in, grs.WriteOpts{
		Scheme:        gri.BinScheme{MinShift: opts.minShift, Depth: opts.depth},
		SortBatchSize: opts.sortBatchSize,
		Parallelism:   opts.parallelism,
		TmpDir:        opts.tmpDir,
		NoSnappy:      opts.noSnappy,
		LogEvery:      opts.logEvery,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Loaded %d records\n", n)
	return err
}

type queryOpts struct {
	parallelism   int
	maxCandidates int
	regions       string
	zeroBased     bool
	out           string
}

// createOutput creates the file at path.  A path ending in .gz is written in
// bgzf format.  The returned func flushes and closes the file.
func createOutput(ctx context.Context, path string) (io.Writer, func() error, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if fileio.DetermineType(path) != fileio.Gzip {
		return f.Writer(ctx), func() error { return f.Close(ctx) }, nil
	}
	w, err := bgzf.NewWriter(f.Writer(ctx), gzip.DefaultCompression)
	if err != nil {
		f.Close(ctx) // nolint: errcheck
		return nil, nil, err
	}
	return w, func() error {
		if err := w.Close(); err != nil {
			f.Close(ctx) // nolint: errcheck
			return err
		}
		return f.Close(ctx)
	}, nil
}

func query(ctx context.Context, opts queryOpts, dir string, ranges []string, out io.Writer) (err error) {
	if opts.out != "" {
		var closeOut func() error
		if out, closeOut, err = createOutput(ctx, opts.out); err != nil {
			return err
		}
		defer func() {
			if e := closeOut(); e != nil && err == nil {
				err = e
			}
		}()
	}
	r, err := grs.Open(ctx, dir, grs.ReadOpts{})
	if err != nil {
		return err
	}
	defer func() {
		if e := r.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	e := gri.NewExecutor(r, r, gri.QueryOpts{Parallelism: opts.parallelism, MaxCandidates: opts.maxCandidates})
	w := features.NewWriter(out, features.WriteOpts{ZeroBased: opts.zeroBased})
	emit := func(results *gri.Results) error {
		n := 0
		for results.Scan() {
			if err := w.Write(results.Feature()); err != nil {
				return err
			}
			n++
		}
		log.Debug.Printf("query: %d records", n)
		return results.Err()
	}
	if opts.regions != "" {
		regions, err := interval.NewRegionSetFromPath(opts.regions, interval.RegionSetOpts{})
		if err != nil {
			return err
		}
		results, err := e.QueryRegions(&regions)
		if err != nil {
			return err
		}
		if err := emit(results); err != nil {
			return err
		}
	}
	for _, expr := range ranges {
		results, err := e.Query(expr)
		if err != nil {
			return err
		}
		if err := emit(results); err != nil {
			return err
		}
	}
	return w.Flush()
}

func stat(ctx context.Context, dir string, verify bool, out io.Writer) (err error) {
	r, err := grs.Open(ctx, dir, grs.ReadOpts{})
	if err != nil {
		return err
	}
	defer func() {
		if e := r.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	m := r.Manifest()
	if _, err := fmt.Fprintf(out, "# bins: min-shift %d, depth %d; records %d\n", m.MinShift, m.Depth, m.NumRecords); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "#rank\tname\trecords\tmax_end\tlevels\n"); err != nil {
		return err
	}
	for _, ch := range r.Codec().Chromosomes().All() {
		if _, err := fmt.Fprintf(out, "%d\t%s\t%d\t%d\t%v\n", ch.Rank, ch.Name, ch.NumRecords, ch.MaxEnd, r.Levels(ch.Rank)); err != nil {
			return err
		}
	}
	if verify {
		if err := r.Verify(); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "Verified %d records\n", m.NumRecords)
	}
	return err
}
