// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package features

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gri/gri"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

var genes = []gri.Feature{
	{Chrom: "1", Begin: 10, End: 20, Payload: []byte("geneA")},
	{Chrom: "1", Begin: 15, End: 25, Payload: []byte("geneB\tprotein_coding")},
	{Chrom: "2", Begin: 5, End: 8, Payload: []byte("geneC")},
}

func readAll(t *testing.T, r *Reader) []gri.Feature {
	var got []gri.Feature
	for r.Scan() {
		got = append(got, r.Feature())
	}
	assert.NoError(t, r.Err())
	return got
}

func TestReadFile(t *testing.T) {
	ctx := vcontext.Background()
	r, err := Open(ctx, "testdata/genes.tsv", ReadOpts{})
	assert.NoError(t, err)
	expect.EQ(t, readAll(t, r), genes)
	assert.NoError(t, r.Close(ctx))
}

func TestReadGzip(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "genes.tsv.gz")
	f, err := os.Create(path)
	assert.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("chrX\t0\t10\tx\n"))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	assert.NoError(t, f.Close())

	r, err := Open(ctx, path, ReadOpts{ZeroBased: true})
	assert.NoError(t, err)
	expect.EQ(t, readAll(t, r), []gri.Feature{{Chrom: "chrX", Begin: 0, End: 10, Payload: []byte("x")}})
	assert.NoError(t, r.Close(ctx))
}

func TestReadErrors(t *testing.T) {
	for _, input := range []string{
		"chr1\t10\n",
		"chr1\tx\t20\n",
		"chr1\t10\ty\n",
	} {
		r := NewReader(strings.NewReader(input), ReadOpts{})
		expect.False(t, r.Scan())
		expect.NotNil(t, r.Err(), input)
	}
	// No payload column.
	r := NewReader(strings.NewReader("chr1\t1\t5\n"), ReadOpts{})
	expect.EQ(t, readAll(t, r), []gri.Feature{{Chrom: "chr1", Begin: 0, End: 5}})
}

func TestWriteRoundTrip(t *testing.T) {
	for _, zeroBased := range []bool{false, true} {
		var buf bytes.Buffer
		w := NewWriter(&buf, WriteOpts{ZeroBased: zeroBased})
		for _, f := range genes {
			assert.NoError(t, w.Write(f))
		}
		assert.NoError(t, w.Flush())
		r := NewReader(&buf, ReadOpts{ZeroBased: zeroBased})
		expect.EQ(t, readAll(t, r), genes)
	}
	var buf bytes.Buffer
	w := NewWriter(&buf, WriteOpts{})
	assert.NoError(t, w.Write(genes[0]))
	assert.NoError(t, w.Flush())
	expect.EQ(t, buf.String(), "1\t11\t20\tgeneA\n")
}

func TestLoadFromReader(t *testing.T) {
	codec, err := gri.NewCodec(gri.CodecOpts{})
	assert.NoError(t, err)
	index := gri.NewIndex(codec)
	records := &gri.MemRecords{}
	r := NewReader(strings.NewReader("1\t11\t20\tgeneA\n1\t16\t25\tgeneB\n2\t6\t8\tgeneC\n"), ReadOpts{})
	n, err := gri.NewLoader(codec, index, records).Load(r)
	assert.NoError(t, err)
	expect.EQ(t, n, 3)

	results, err := gri.NewExecutor(index, records).Query("1:21-30")
	assert.NoError(t, err)
	recs, err := results.All()
	assert.NoError(t, err)
	assert.EQ(t, len(recs), 1)
	expect.EQ(t, string(recs[0].Payload), "geneB")
}
