// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// bio-gri loads tab-separated genomic features into a record store and
// answers range queries against it.
//
//   bio-gri load genes.tsv.gz /tmp/genes.db
//   bio-gri query /tmp/genes.db chr1:10,000-20,000 chr2
//   bio-gri query -regions targets.bed /tmp/genes.db
//   bio-gri stat -verify /tmp/genes.db
package main

import "github.com/grailbio/gri/cmd/bio-gri/cmd"

func main() {
	cmd.Run()
}
