// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gri

import (
	"fmt"

	"github.com/pkg/errors"
)

// Rank is the sort rank of a chromosome.  Ranks are handed out in the order
// chromosomes are first seen during a load, starting at zero.  Lexical order
// would put "10" before "2".
type Rank uint32

// maxRank is the largest rank that fits the rank field of a Key or BinKey.
const maxRank = 1<<rankBits - 1

// Chromosome describes one registered chromosome.
type Chromosome struct {
	Name string
	Rank Rank
	// MaxEnd is the largest interval end observed on the chromosome.  It
	// stands in for a missing end in a range expression.
	MaxEnd PosType
	// NumRecords is the number of records observed on the chromosome.
	NumRecords int64
}

// Chromosomes is the rank registry.  A rank never changes once assigned.  The
// registry is owned by a Codec and is written only by the loading goroutine;
// it is read-only once the load finishes.
type Chromosomes struct {
	byName map[string]Rank
	chroms []Chromosome
}

// NewChromosomes creates an empty registry.
func NewChromosomes() *Chromosomes {
	return &Chromosomes{byName: map[string]Rank{}}
}

// Register returns the rank of name, assigning the next rank if name has not
// been seen.
func (c *Chromosomes) Register(name string) (Rank, error) {
	if rank, ok := c.byName[name]; ok {
		return rank, nil
	}
	if len(c.chroms) > maxRank {
		return 0, errors.Wrapf(ErrChromosomeLimit, "register %q: %d chromosomes", name, len(c.chroms))
	}
	rank := Rank(len(c.chroms))
	c.byName[name] = rank
	c.chroms = append(c.chroms, Chromosome{Name: name, Rank: rank})
	return rank, nil
}

// Restore re-registers a chromosome read back from storage.  Chromosomes must
// be restored in rank order.
func (c *Chromosomes) Restore(ch Chromosome) error {
	if int(ch.Rank) != len(c.chroms) {
		return fmt.Errorf("restore chromosome %q: rank %d out of order, expect %d", ch.Name, ch.Rank, len(c.chroms))
	}
	if _, ok := c.byName[ch.Name]; ok {
		return fmt.Errorf("restore chromosome %q: duplicate name", ch.Name)
	}
	c.byName[ch.Name] = ch.Rank
	c.chroms = append(c.chroms, ch)
	return nil
}

// Lookup returns the rank of name.
func (c *Chromosomes) Lookup(name string) (Rank, bool) {
	rank, ok := c.byName[name]
	return rank, ok
}

// Get returns the chromosome with the given rank.
func (c *Chromosomes) Get(rank Rank) (Chromosome, error) {
	if int(rank) >= len(c.chroms) {
		return Chromosome{}, errors.Wrapf(ErrUnknownChromosome, "rank %d", rank)
	}
	return c.chroms[rank], nil
}

// Name returns the name of the chromosome with the given rank, or "" if the
// rank is not registered.
func (c *Chromosomes) Name(rank Rank) string {
	if int(rank) >= len(c.chroms) {
		return ""
	}
	return c.chroms[rank].Name
}

// Observe records an interval ending at end on the chromosome.
func (c *Chromosomes) Observe(rank Rank, end PosType) {
	ch := &c.chroms[rank]
	if end > ch.MaxEnd {
		ch.MaxEnd = end
	}
	ch.NumRecords++
}

// Len returns the number of registered chromosomes.
func (c *Chromosomes) Len() int {
	return len(c.chroms)
}

// All returns a copy of the registered chromosomes in rank order.
func (c *Chromosomes) All() []Chromosome {
	return append([]Chromosome(nil), c.chroms...)
}
