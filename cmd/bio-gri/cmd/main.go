// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"log"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gri/encoding/grs"
	"github.com/grailbio/gri/gri"
	"v.io/x/lib/cmdline"
)

func newCmdLoad() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "load",
		Short:    "Load tab-separated features into a new store",
		ArgsName: "input db",
		Long: `
Load reads "chrom begin end payload..." rows from the input (local or remote,
optionally gzipped) and creates a store in directory db.  Begin is 1-based
unless -zero-based is set.  Chromosomes are ranked in the order they first
appear.`,
	}
	opts := loadOpts{}
	cmd.Flags.BoolVar(&opts.zeroBased, "zero-based", false, "Input begin positions are 0-based")
	cmd.Flags.UintVar(&opts.minShift, "min-shift", gri.DefaultBinScheme.MinShift, "log2 of the smallest bin size")
	cmd.Flags.UintVar(&opts.depth, "depth", gri.DefaultBinScheme.Depth, "Number of bin levels above the smallest. Positions must be < 2^(min-shift+3*depth)")
	cmd.Flags.IntVar(&opts.sortBatchSize, "sort-batch-size", grs.DefaultSortBatchSize, "Number of index entries to sort in memory before spilling to tmp-dir")
	cmd.Flags.IntVar(&opts.parallelism, "parallelism", grs.DefaultParallelism, "Number of background sorts")
	cmd.Flags.StringVar(&opts.tmpDir, "tmp-dir", "", "Directory for temporary sort files. Empty means the system default")
	cmd.Flags.BoolVar(&opts.noSnappy, "no-snappy", false, "Do not compress table blocks")
	cmd.Flags.IntVar(&opts.logEvery, "log-every", 1000000, "Log progress every this many records. <=0 disables progress logs")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("load takes input and db, but got %v", argv)
		}
		return load(vcontext.Background(), opts, argv[0], argv[1], env.Stdout)
	})
	return cmd
}

func newCmdQuery() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "query",
		Short:    "Print the features overlapping ranges",
		ArgsName: "db [range...]",
		Long: `
Query prints the features that overlap each range.  A range is one of

  chrom
  chrom:begin
  chrom:begin-end
  chrom:-end

where begin is 0-based and end is exclusive.  Positions may contain ','.
With -regions, the ranges are read from a BED file instead, and each feature is
printed once.  Within one range, features are ordered by begin position per
bin level, not globally.`,
	}
	opts := queryOpts{}
	cmd.Flags.IntVar(&opts.parallelism, "parallelism", 1, "Number of bin levels fetched concurrently")
	cmd.Flags.IntVar(&opts.maxCandidates, "max-candidates", 0, "Fail a query that examines more than this many index entries. 0 means no limit")
	cmd.Flags.StringVar(&opts.regions, "regions", "", "BED file of ranges to query")
	cmd.Flags.BoolVar(&opts.zeroBased, "zero-based", false, "Print 0-based begin positions")
	cmd.Flags.StringVar(&opts.out, "out", "", "Write to this path instead of stdout. A path ending in .gz is bgzf compressed")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 1 {
			return fmt.Errorf("query takes db and ranges, but got %v", argv)
		}
		if (opts.regions == "") == (len(argv) == 1) {
			return fmt.Errorf("query needs either ranges or -regions, but not both")
		}
		return query(vcontext.Background(), opts, argv[0], argv[1:], env.Stdout)
	})
	return cmd
}

func newCmdStat() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "stat",
		Short:    "Show the chromosomes of a store",
		ArgsName: "db",
	}
	verify := cmd.Flags.Bool("verify", false, "Read every block and check its checksum")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("stat takes one db argument, but got %v", argv)
		}
		return stat(vcontext.Background(), argv[0], *verify, env.Stdout)
	})
	return cmd
}

// Run is the entry point of bio-gri.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-gri",
			Short:    "Genomic range index over tab-separated features",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdLoad(),
				newCmdQuery(),
				newCmdStat(),
			},
		})
}
