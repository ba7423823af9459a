// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gri/encoding/grs"
	"github.com/grailbio/gri/gri"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const genesTSV = "# chrom\tbegin\tend\tname\n1\t11\t20\tgeneA\n1\t16\t25\tgeneB\n2\t6\t8\tgeneC\n"

func defaultLoadOpts() loadOpts {
	return loadOpts{
		minShift:      gri.DefaultBinScheme.MinShift,
		depth:         gri.DefaultBinScheme.Depth,
		sortBatchSize: grs.DefaultSortBatchSize,
		parallelism:   grs.DefaultParallelism,
	}
}

func loadGenes(t *testing.T, tempDir string) string {
	ctx := vcontext.Background()
	in := filepath.Join(tempDir, "genes.tsv")
	assert.NoError(t, ioutil.WriteFile(in, []byte(genesTSV), 0644))
	db := filepath.Join(tempDir, "genes.db")
	out := bytes.Buffer{}
	assert.NoError(t, load(ctx, defaultLoadOpts(), in, db, &out))
	expect.EQ(t, out.String(), "Loaded 3 records\n")
	return db
}

func TestLoadQuery(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	db := loadGenes(t, tempDir)

	for _, test := range []struct {
		opts   queryOpts
		ranges []string
		want   string
	}{
		{queryOpts{}, []string{"1:12-16"}, "1\t11\t20\tgeneA\n1\t16\t25\tgeneB\n"},
		{queryOpts{}, []string{"1:20-25"}, "1\t16\t25\tgeneB\n"},
		{queryOpts{}, []string{"1:25"}, ""},
		{queryOpts{}, []string{"2", "1:0-12"}, "2\t6\t8\tgeneC\n1\t11\t20\tgeneA\n"},
		{queryOpts{zeroBased: true}, []string{"2:0-100"}, "2\t5\t8\tgeneC\n"},
		{queryOpts{parallelism: 4}, []string{"1"}, "1\t11\t20\tgeneA\n1\t16\t25\tgeneB\n"},
	} {
		out := bytes.Buffer{}
		assert.NoError(t, query(ctx, test.opts, db, test.ranges, &out), "ranges: %v", test.ranges)
		expect.EQ(t, out.String(), test.want, "ranges: %v", test.ranges)
	}

	out := bytes.Buffer{}
	err := query(ctx, queryOpts{}, db, []string{"1:x-y"}, &out)
	expect.HasSubstr(t, err.Error(), "malformed")
	err = query(ctx, queryOpts{}, db, []string{"chrUn:1-10"}, &out)
	expect.HasSubstr(t, err.Error(), "chrUn")
}

func TestQueryRegions(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	db := loadGenes(t, tempDir)

	bed := filepath.Join(tempDir, "regions.bed")
	assert.NoError(t, ioutil.WriteFile(bed, []byte("1\t0\t12\n1\t18\t30\nchrUn\t0\t100\n"), 0644))
	out := bytes.Buffer{}
	assert.NoError(t, query(ctx, queryOpts{regions: bed}, db, nil, &out))
	expect.EQ(t, out.String(), "1\t11\t20\tgeneA\n1\t16\t25\tgeneB\n")
}

func TestStat(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	db := loadGenes(t, tempDir)

	out := bytes.Buffer{}
	assert.NoError(t, stat(ctx, db, true, &out))
	expect.HasSubstr(t, out.String(), "min-shift 14, depth 5; records 3")
	expect.HasSubstr(t, out.String(), "0\t1\t2\t25\t0\n")
	expect.HasSubstr(t, out.String(), "1\t2\t1\t8\t0\n")
	expect.HasSubstr(t, out.String(), "Verified 3 records")
}

func TestLoadErrors(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	in := filepath.Join(tempDir, "bad.tsv")
	assert.NoError(t, ioutil.WriteFile(in, []byte("1\t20\t10\tbackwards\n"), 0644))
	out := bytes.Buffer{}
	expect.NotNil(t, load(ctx, defaultLoadOpts(), in, filepath.Join(tempDir, "bad.db"), &out))
	expect.EQ(t, out.String(), "")

	opts := defaultLoadOpts()
	opts.minShift = 2
	expect.NotNil(t, load(ctx, opts, filepath.Join("testdata", "missing.tsv"), filepath.Join(tempDir, "x.db"), &out))
}

func TestQueryOutputGzip(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	db := loadGenes(t, tempDir)

	path := filepath.Join(tempDir, "chr1.tsv.gz")
	assert.NoError(t, query(ctx, queryOpts{out: path}, db, []string{"1"}, nil))

	// The bgzf output loads back as a new store.
	db2 := filepath.Join(tempDir, "chr1.db")
	out := bytes.Buffer{}
	assert.NoError(t, load(ctx, defaultLoadOpts(), path, db2, &out))
	expect.EQ(t, out.String(), "Loaded 2 records\n")

	out.Reset()
	assert.NoError(t, query(ctx, queryOpts{}, db2, []string{"1:0-12"}, &out))
	expect.EQ(t, out.String(), "1\t11\t20\tgeneA\n")
}
