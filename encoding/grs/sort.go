// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grs

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"sort"
	"sync"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gri/gri"
	"v.io/x/lib/vlog"
)

// entrySorter sorts index entries.  Entries are buffered in batches of
// SortBatchSize.  Full batches are sorted by background goroutines and
// spilled to run files in TmpDir; finish merges the runs.
//
// Example:
//   s := newEntrySorter(opts, pool, &err)
//   for ... {
//     s.add(entry)
//   }
//   s.finish(out, path)
//   s.cleanup()
type entrySorter struct {
	opts       WriteOpts
	pool       *blockPool
	err        *errors.Once
	batch      []gri.Entry
	nEntries   uint64
	bgSorterCh chan []gri.Entry

	wg   sync.WaitGroup
	mu   sync.Mutex
	runs []string // pathnames of sorted run files.
}

func newEntrySorter(opts WriteOpts, pool *blockPool, errReporter *errors.Once) *entrySorter {
	s := &entrySorter{
		opts:       opts,
		pool:       pool,
		err:        errReporter,
		bgSorterCh: make(chan []gri.Entry, opts.Parallelism),
	}
	for i := 0; i < opts.Parallelism; i++ {
		s.wg.Add(1)
		go func() {
			for batch := range s.bgSorterCh {
				path := s.sortRun(batch)
				if path == "" {
					continue
				}
				s.mu.Lock()
				s.runs = append(s.runs, path)
				s.mu.Unlock()
			}
			s.wg.Done()
		}()
	}
	return s
}

func (s *entrySorter) add(e gri.Entry) {
	s.batch = append(s.batch, e)
	s.nEntries++
	if len(s.batch) >= s.opts.SortBatchSize {
		s.bgSorterCh <- s.batch
		s.batch = nil
	}
}

func sortEntries(entries []gri.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Less(entries[j]) })
}

// sortRun sorts a batch and writes it to a new run file.  It returns the path
// of the file, or "" on error.
func (s *entrySorter) sortRun(entries []gri.Entry) string {
	vlog.VI(1).Infof("Sorting %d index entries", len(entries))
	temp, err := ioutil.TempFile(s.opts.TmpDir, "grsrun")
	if err != nil {
		s.err.Set(err)
		return ""
	}
	sortEntries(entries)
	w := newTableWriter(temp, temp.Name(), !s.opts.NoSnappy, s.pool, s.err)
	var buf [entrySize]byte
	for _, e := range entries {
		putEntry(buf[:], e)
		w.add(uint64(e.Bin), buf[:])
	}
	w.finish()
	s.err.Set(temp.Close())
	return temp.Name()
}

// finish writes all the entries, in sort order, as a table to out.  If no
// batch was spilled, the entries are written directly from memory.
func (s *entrySorter) finish(out io.Writer, path string) {
	w := newTableWriter(out, path, !s.opts.NoSnappy, s.pool, s.err)
	var buf [entrySize]byte
	add := func(e gri.Entry) bool {
		putEntry(buf[:], e)
		w.add(uint64(e.Bin), buf[:])
		return true
	}
	close(s.bgSorterCh)
	s.wg.Wait()
	if len(s.runs) == 0 {
		sortEntries(s.batch)
		for _, e := range s.batch {
			add(e)
		}
	} else {
		if len(s.batch) > 0 {
			if path := s.sortRun(s.batch); path != "" {
				s.runs = append(s.runs, path)
			}
		}
		if s.err.Err() == nil {
			s.merge(s.runs, add)
		}
	}
	s.batch = nil
	w.finish()
}

// abort stops the background sorters without merging.
func (s *entrySorter) abort() {
	close(s.bgSorterCh)
	s.wg.Wait()
	s.batch = nil
}

// cleanup removes the run files.
func (s *entrySorter) cleanup() {
	for _, path := range s.runs {
		if err := os.Remove(path); err != nil {
			vlog.Errorf("sort %v: failed to remove run file: %v (%v)", path, err, s.err.Err())
		}
	}
	s.runs = nil
}

// runReader reads a run file sequentially.
type runReader struct {
	table    *tableReader
	blockIdx int
	entries  []gri.Entry
	cur      gri.Entry
}

func openRun(ctx context.Context, path string) (*runReader, error) {
	t, err := openTable(ctx, path)
	if err != nil {
		return nil, err
	}
	return &runReader{table: t}, nil
}

// scan advances to the next entry.
func (r *runReader) scan() (bool, error) {
	for len(r.entries) == 0 {
		if r.blockIdx >= len(r.table.index.Blocks) {
			return false, nil
		}
		data, err := r.table.readBlock(r.blockIdx)
		if err != nil {
			return false, err
		}
		if r.entries, err = parseEntries(data); err != nil {
			return false, errors.E(errors.Integrity, err, r.table.path)
		}
		r.blockIdx++
	}
	r.cur, r.entries = r.entries[0], r.entries[1:]
	return true, nil
}

// mergeLeaf is one input of the N-way merge.
type mergeLeaf struct {
	// seq is a number (0,1,2..) arbitrarily assigned to distinguish leafs.
	seq    int
	reader *runReader
	done   bool // reader.scan() returned false?
}

func (l *mergeLeaf) key() gri.Entry { return l.reader.cur }

func (l *mergeLeaf) Compare(c1 llrb.Comparable) int {
	l1 := c1.(*mergeLeaf)
	if c := l.key().Compare(l1.key()); c != 0 {
		return c
	}
	return l.seq - l1.seq
}

// merge reads the runs and calls callback for each entry in sort order.  If
// callback returns false, merge exits immediately.
func (s *entrySorter) merge(paths []string, callback func(gri.Entry) bool) {
	ctx := vcontext.Background()
	// Sort the inputs using a binary tree.  The hope is that the leaf at the
	// top of the tree stays there for many entries, in which case the tree
	// maintains the sorted order in amortized O(1) time.
	leafs := llrb.Tree{}
	var readers []*runReader
	defer func() {
		for _, r := range readers {
			s.err.Set(r.table.close(ctx))
		}
	}()
	for i, path := range paths {
		r, err := openRun(ctx, path)
		if err != nil {
			s.err.Set(err)
			return
		}
		readers = append(readers, r)
		ok, err := r.scan()
		if err != nil {
			s.err.Set(err)
			return
		}
		if ok {
			leafs.Insert(&mergeLeaf{seq: i, reader: r})
		}
	}
	vlog.VI(1).Infof("Merging %d runs, %d leafs active", len(paths), leafs.Len())

	for leafs.Len() > 0 {
		nthiter := 0
		// top is the smallest leaf.  next is the 2nd smallest leaf, or nil if
		// top is the only leaf in the tree.
		var top, next *mergeLeaf
		leafs.Do(func(item llrb.Comparable) bool {
			nthiter++
			if nthiter == 1 {
				top = item.(*mergeLeaf)
				return false
			}
			next = item.(*mergeLeaf)
			return true
		})
		// Read entries from top until it becomes larger than next.
		for {
			if !callback(top.key()) {
				return
			}
			ok, err := top.reader.scan()
			if err != nil {
				s.err.Set(err)
				return
			}
			top.done = !ok
			if top.done || (next != nil && next.key().Compare(top.key()) < 0) {
				break
			}
		}
		// Move top into the proper place in the tree.
		leafs.DeleteMin()
		if !top.done {
			leafs.Insert(top)
		}
	}
}
