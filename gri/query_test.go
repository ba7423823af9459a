// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/grailbio/gri/interval"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, features []Feature, opts ...QueryOpts) *Executor {
	codec, err := NewCodec(CodecOpts{})
	require.NoError(t, err)
	index := NewIndex(codec)
	records := &MemRecords{}
	_, err = NewLoader(codec, index, records).LoadFeatures(features)
	require.NoError(t, err)
	return NewExecutor(index, records, opts...)
}

var geneFeatures = []Feature{
	{"1", 10, 20, []byte("geneA")},
	{"1", 15, 25, []byte("geneB")},
	{"2", 5, 8, []byte("geneC")},
}

func queryPayloads(t *testing.T, e *Executor, expr string) []string {
	r, err := e.Query(expr)
	require.NoError(t, err, expr)
	return payloads(t, r)
}

func payloads(t *testing.T, r *Results) []string {
	got := []string{}
	for r.Scan() {
		got = append(got, string(r.Feature().Payload))
	}
	require.NoError(t, r.Err())
	return got
}

func TestQueryScenarios(t *testing.T) {
	e := newTestExecutor(t, geneFeatures)
	assert.ElementsMatch(t, []string{"geneA", "geneB"}, queryPayloads(t, e, "1:12-18"))
	assert.Equal(t, []string{"geneB"}, queryPayloads(t, e, "1:21-30"))

	_, err := e.Query("3:0-10")
	assert.Equal(t, ErrUnknownChromosome, errors.Cause(err))

	_, err = NewLoader(e.codec, NewIndex(e.codec), &MemRecords{}).Add(Feature{"1", 50, 50, []byte("zero-len")})
	assert.Equal(t, ErrInvalidInterval, errors.Cause(err))
}

func TestQueryForms(t *testing.T) {
	e := newTestExecutor(t, geneFeatures)
	for _, test := range []struct {
		expr string
		want []string
	}{
		{"1", []string{"geneA", "geneB"}},
		{"1:15", []string{"geneA", "geneB"}},
		{"1:20", []string{"geneB"}},
		{"1:25", []string{}},
		{"1:-11", []string{"geneA"}},
		{"1:0-10", []string{}},
		{"1:24-1,000", []string{"geneB"}},
		{"2", []string{"geneC"}},
		{"2:8", []string{}},
		{"2:7-8", []string{"geneC"}},
		{"1:0-1000000000000", []string{"geneA", "geneB"}},
	} {
		assert.Equal(t, test.want, queryPayloads(t, e, test.expr), test.expr)
	}
	for _, test := range []struct {
		expr string
		err  error
	}{
		{"1:20-10", ErrInvalidInterval},
		{"1:10-10", ErrInvalidInterval},
		{"1:", ErrMalformedRangeExpression},
		{"chr1:0-10", ErrUnknownChromosome},
		{"1:999999999999-1000000000000", ErrInvalidPosition},
	} {
		_, err := e.Query(test.expr)
		assert.Equal(t, test.err, errors.Cause(err), test.expr)
	}
}

func TestQueryRecord(t *testing.T) {
	e := newTestExecutor(t, geneFeatures)
	r, err := e.QueryRange("2", 0, 100)
	require.NoError(t, err)
	require.True(t, r.Scan())
	assert.Equal(t, Record{ID: 3, Rank: 1, Begin: 5, End: 8, Payload: []byte("geneC")}, r.Record())
	assert.Equal(t, Feature{"2", 5, 8, []byte("geneC")}, r.Feature())
	assert.False(t, r.Scan())
	assert.NoError(t, r.Err())

	_, err = e.QueryRange("3", 0, 100)
	assert.Equal(t, ErrUnknownChromosome, errors.Cause(err))
}

func TestQueryRestartable(t *testing.T) {
	e := newTestExecutor(t, geneFeatures)
	first := queryPayloads(t, e, "1")
	second := queryPayloads(t, e, "1")
	assert.Equal(t, first, second)
}

func TestQueryColonChromosome(t *testing.T) {
	e := newTestExecutor(t, []Feature{
		{"HLA-A*01:01", 0, 100, []byte("hla")},
		{"HLA-A*01", 0, 100, []byte("other")},
	})
	assert.Equal(t, []string{"hla"}, queryPayloads(t, e, "HLA-A*01:01"))
	assert.Equal(t, []string{"hla"}, queryPayloads(t, e, "HLA-A*01:01:50-60"))
	assert.Equal(t, []string{"other"}, queryPayloads(t, e, "HLA-A*01:50-60"))
}

func TestQueryMaxCandidates(t *testing.T) {
	e := newTestExecutor(t, geneFeatures, QueryOpts{MaxCandidates: 1})
	r, err := e.Query("1:0-100")
	require.NoError(t, err)
	recs, err := r.All()
	assert.Equal(t, ErrQueryLimit, errors.Cause(err))
	assert.Len(t, recs, 1)

	e = newTestExecutor(t, geneFeatures, QueryOpts{MaxCandidates: 2})
	assert.Len(t, queryPayloads(t, e, "1:0-100"), 2)
}

func TestQueryRegions(t *testing.T) {
	e := newTestExecutor(t, geneFeatures)
	regions, err := interval.NewRegionSetFromEntries([]interval.Entry{
		{ChrName: "1", Start0: 12, End: 13},
		{ChrName: "1", Start0: 16, End: 17},
		{ChrName: "3", Start0: 0, End: 10},
		{ChrName: "2", Start0: 0, End: 100},
		{ChrName: "1", Start0: 100, End: 200},
	})
	require.NoError(t, err)
	r, err := e.QueryRegions(&regions)
	require.NoError(t, err)
	assert.Equal(t, []string{"geneA", "geneB", "geneC"}, payloads(t, r))
}

// bruteForce returns the ids of the features overlapping [begin, end) on
// chrom, sorted.
func bruteForce(features []Feature, chrom string, begin, end PosType) []RecordID {
	var ids []RecordID
	for i, f := range features {
		if f.Chrom == chrom && f.Begin < end && begin < f.End {
			ids = append(ids, FirstRecordID+RecordID(i))
		}
	}
	return ids
}

func randomFeatures(r *rand.Rand, n int) []Feature {
	features := make([]Feature, n)
	for i := range features {
		var length PosType
		// Skew lengths toward short features, as in real annotations.
		switch r.Intn(4) {
		case 0, 1:
			length = 1 + PosType(r.Intn(1000))
		case 2:
			length = 1 + PosType(r.Intn(100000))
		default:
			length = 1 + PosType(r.Intn(4000000))
		}
		begin := PosType(r.Intn(8000000))
		features[i] = Feature{
			Chrom:   fmt.Sprintf("chr%d", r.Intn(3)),
			Begin:   begin,
			End:     begin + length,
			Payload: []byte(fmt.Sprint(i)),
		}
	}
	return features
}

func TestQueryRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	features := randomFeatures(r, 3000)
	serial := newTestExecutor(t, features)
	parallel := newTestExecutor(t, features, QueryOpts{Parallelism: 4})
	for i := 0; i < 300; i++ {
		chrom := fmt.Sprintf("chr%d", r.Intn(3))
		begin := PosType(r.Intn(12000000))
		end := begin + 1 + PosType(r.Intn(200000))

		results, err := serial.QueryRange(chrom, begin, end)
		require.NoError(t, err)
		recs, err := results.All()
		require.NoError(t, err)
		var got []RecordID
		for j, rec := range recs {
			assert.True(t, rec.Interval().Overlaps(begin, end))
			got = append(got, rec.ID)
			if j > 0 && recs[j-1].Begin > rec.Begin {
				// Order may only drop back at a level boundary.
				_, lp, _ := serial.codec.DecodeBin(mustBin(t, serial.codec, recs[j-1]))
				_, l, _ := serial.codec.DecodeBin(mustBin(t, serial.codec, rec))
				assert.True(t, lp < l, "records %d %d", recs[j-1].ID, rec.ID)
			}
		}
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		assert.Equal(t, bruteForce(features, chrom, begin, end), got, "%s:%d-%d", chrom, begin, end)

		results, err = parallel.QueryRange(chrom, begin, end)
		require.NoError(t, err)
		precs, err := results.All()
		require.NoError(t, err)
		assert.Equal(t, recs, precs)
	}
}

func mustBin(t *testing.T, c *Codec, rec Record) BinKey {
	key, _, err := c.Bin(rec.Interval())
	require.NoError(t, err)
	return key
}

func TestQueryRegionsClipped(t *testing.T) {
	maxPos := DefaultBinScheme.MaxPosition()
	e := newTestExecutor(t, append([]Feature{{"1", maxPos - 10, maxPos, []byte("tail")}}, geneFeatures...))
	regions, err := interval.NewRegionSetFromEntries([]interval.Entry{
		{ChrName: "1", Start0: maxPos - 5, End: maxPos + 1000},
		{ChrName: "1", Start0: maxPos + 10, End: maxPos + 20},
		{ChrName: "2", Start0: maxPos, End: maxPos + 1},
	})
	require.NoError(t, err)
	r, err := e.QueryRegions(&regions)
	require.NoError(t, err)
	assert.Equal(t, []string{"tail"}, payloads(t, r))
}

func TestQueryOpenEnd(t *testing.T) {
	e := newTestExecutor(t, geneFeatures)
	assert.Equal(t, []string{"geneB"}, queryPayloads(t, e, "1:20"))
	// A begin at or past the last observed end finds nothing, whereas an
	// explicit inverted range is an error.
	assert.Equal(t, []string{}, queryPayloads(t, e, "1:25"))
	assert.Equal(t, []string{}, queryPayloads(t, e, "1:1000"))
	_, err := e.QueryRange("1", 25, 25)
	assert.Equal(t, ErrInvalidInterval, errors.Cause(err))
	_, err = e.Query("1:30-25")
	assert.Equal(t, ErrInvalidInterval, errors.Cause(err))
}
