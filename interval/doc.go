// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*Package interval holds the coordinate type shared by the genomic range
  index, plus interval-union helpers for sets of query regions read from BED
  files.

  Overlapping and touching regions in a RegionSet are merged, so a record
  overlapping several input lines of a BED file is still reached through a
  single merged region.  Positions are 0-based; intervals are half-open.
*/
package interval
