// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package interval

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// RegionSetOpts defines behavior of the RegionSet constructors.
type RegionSetOpts struct {
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// Entry represents a single interval, with 0-based coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// RegionSet is a per-chromosome interval-union.  Each chromosome maps to a
// length-2N endpoint sequence as described in endpoint_index.go.  Chromosomes
// are remembered in the order they first appear in the input, so that queries
// driven by a RegionSet visit them deterministically.
type RegionSet struct {
	// names lists the chromosomes in first-seen order.
	names []string
	// nameMap is a chromosome-keyed map with disjoint-interval-set values.  A
	// chromosome mentioned only by empty intervals maps to an empty slice.
	nameMap map[string][]PosType
	// totBases is the number of bases covered by the union.
	totBases int64
}

// Chroms returns the chromosome names in the order they first appeared.
func (u *RegionSet) Chroms() []string {
	return u.names
}

// Endpoints returns the sorted endpoint sequence for chrom, or nil if chrom is
// not mentioned.  The caller must not modify the slice.
func (u *RegionSet) Endpoints(chrom string) []PosType {
	return u.nameMap[chrom]
}

// Scanner returns a UnionScanner over the intervals of chrom.
func (u *RegionSet) Scanner(chrom string) UnionScanner {
	return NewUnionScanner(u.nameMap[chrom])
}

// Len returns the number of disjoint intervals in the set.
func (u *RegionSet) Len() int {
	n := 0
	for _, endpoints := range u.nameMap {
		n += len(endpoints) / 2
	}
	return n
}

// Bases returns the number of bases covered by the set.
func (u *RegionSet) Bases() int64 {
	return u.totBases
}

// NewRegionSet loads the first three columns of a BED stream.  Lines need not
// be sorted; touching and overlapping intervals are merged and empty ones are
// dropped.
func NewRegionSet(reader io.Reader, opts RegionSetOpts) (RegionSet, error) {
	var startSubtract PosType
	if opts.OneBasedInput {
		startSubtract++
	}
	var (
		tokens  [3][]byte
		entries []Entry
		lineIdx int
	)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if len(curLine) > 0 && curLine[0] == '#' {
			continue
		}
		nToken := getTokens(tokens[:], curLine)
		if nToken != 3 {
			if nToken == 0 {
				continue
			}
			return RegionSet{}, fmt.Errorf("interval.NewRegionSet: line %d has fewer tokens than expected", lineIdx)
		}
		parsedStart, err := strconv.ParseInt(gunsafe.BytesToString(tokens[1]), 10, 64)
		if err != nil {
			return RegionSet{}, fmt.Errorf("interval.NewRegionSet: line %d: %v", lineIdx, err)
		}
		parsedStart -= int64(startSubtract)
		if parsedStart < 0 {
			return RegionSet{}, fmt.Errorf("interval.NewRegionSet: negative start coordinate %s on line %d", tokens[1], lineIdx)
		}
		parsedEnd, err := strconv.ParseInt(gunsafe.BytesToString(tokens[2]), 10, 64)
		if err != nil {
			return RegionSet{}, fmt.Errorf("interval.NewRegionSet: line %d: %v", lineIdx, err)
		}
		if parsedEnd < parsedStart {
			return RegionSet{}, fmt.Errorf("interval.NewRegionSet: invalid coordinate pair on line %d", lineIdx)
		}
		// tokens[0] points into the scanner buffer, so the name must be copied.
		entries = append(entries, Entry{
			ChrName: string(tokens[0]),
			Start0:  PosType(parsedStart),
			End:     PosType(parsedEnd),
		})
	}
	if err := scanner.Err(); err != nil {
		return RegionSet{}, err
	}
	u, err := NewRegionSetFromEntries(entries)
	if err != nil {
		return u, err
	}
	log.Debug.Printf("BED loaded, %d interval(s), %d base(s) covered", u.Len(), u.totBases)
	return u, nil
}

// NewRegionSetFromPath is a wrapper for NewRegionSet that takes a path instead
// of an io.Reader.  Gzipped files are detected by their extension.
func NewRegionSetFromPath(path string, opts RegionSetOpts) (u RegionSet, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	return NewRegionSet(reader, opts)
}

// NewRegionSetFromEntries builds a RegionSet from entries in any order.  Start0
// is zero-based by definition.
func NewRegionSetFromEntries(entries []Entry) (RegionSet, error) {
	u := RegionSet{nameMap: map[string][]PosType{}}
	byChrom := map[string][]Entry{}
	for _, entry := range entries {
		if entry.Start0 < 0 {
			return u, fmt.Errorf("interval.NewRegionSetFromEntries: negative start coordinate in %+v", entry)
		}
		if entry.End < entry.Start0 {
			return u, fmt.Errorf("interval.NewRegionSetFromEntries: invalid coordinate pair [%d, %d)", entry.Start0, entry.End)
		}
		if _, found := byChrom[entry.ChrName]; !found {
			u.names = append(u.names, entry.ChrName)
			byChrom[entry.ChrName] = nil
		}
		if entry.End == entry.Start0 {
			// Mentioned, but covers no bases.
			continue
		}
		byChrom[entry.ChrName] = append(byChrom[entry.ChrName], entry)
	}
	for _, name := range u.names {
		chrEntries := byChrom[name]
		sort.SliceStable(chrEntries, func(i, j int) bool {
			return chrEntries[i].Start0 < chrEntries[j].Start0
		})
		chrIntervals := []PosType{}
		for i, entry := range chrEntries {
			n := len(chrIntervals)
			if i > 0 && entry.Start0 <= chrIntervals[n-1] {
				// Overlaps or touches the previous interval; extend it.
				if entry.End > chrIntervals[n-1] {
					u.totBases += int64(entry.End - chrIntervals[n-1])
					chrIntervals[n-1] = entry.End
				}
				continue
			}
			chrIntervals = append(chrIntervals, entry.Start0, entry.End)
			u.totBases += int64(entry.End - entry.Start0)
		}
		u.nameMap[name] = chrIntervals
	}
	return u, nil
}
