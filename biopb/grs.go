// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package biopb defines the messages persisted by the genomic record store.
//
// The messages are plain gogo/protobuf structs; encode them with
// proto.Marshal and decode them with proto.Unmarshal.
package biopb

import (
	proto "github.com/gogo/protobuf/proto"
)

// BlockIndexEntry describes one block of a table file.
type BlockIndexEntry struct {
	// StartKey is the key of the first item in the block.
	StartKey uint64 `protobuf:"varint,1,opt,name=start_key,json=startKey,proto3" json:"start_key,omitempty"`
	// LimitKey is the key of the last item in the block (inclusive).
	LimitKey uint64 `protobuf:"varint,2,opt,name=limit_key,json=limitKey,proto3" json:"limit_key,omitempty"`
	// FileOffset is the recordio block offset.
	FileOffset uint64 `protobuf:"varint,3,opt,name=file_offset,json=fileOffset,proto3" json:"file_offset,omitempty"`
	// NumItems is the number of items in the block.
	NumItems uint32 `protobuf:"varint,4,opt,name=num_items,json=numItems,proto3" json:"num_items,omitempty"`
	// Checksum is the seahash of the uncompressed block contents.
	Checksum uint64 `protobuf:"fixed64,5,opt,name=checksum,proto3" json:"checksum,omitempty"`
}

func (m *BlockIndexEntry) Reset()         { *m = BlockIndexEntry{} }
func (m *BlockIndexEntry) String() string { return proto.CompactTextString(m) }
func (*BlockIndexEntry) ProtoMessage()    {}

// TableIndex is stored in the trailer of a table file.
type TableIndex struct {
	Magic   uint64 `protobuf:"fixed64,1,opt,name=magic,proto3" json:"magic,omitempty"`
	Version string `protobuf:"bytes,2,opt,name=version,proto3" json:"version,omitempty"`
	// Snappy is true if the blocks are snappy-compressed.
	Snappy   bool               `protobuf:"varint,3,opt,name=snappy,proto3" json:"snappy,omitempty"`
	Blocks   []*BlockIndexEntry `protobuf:"bytes,4,rep,name=blocks,proto3" json:"blocks,omitempty"`
	NumItems uint64             `protobuf:"varint,5,opt,name=num_items,json=numItems,proto3" json:"num_items,omitempty"`
}

func (m *TableIndex) Reset()         { *m = TableIndex{} }
func (m *TableIndex) String() string { return proto.CompactTextString(m) }
func (*TableIndex) ProtoMessage()    {}

// ChromosomeInfo is one row of the manifest's chromosome table.
type ChromosomeInfo struct {
	Name       string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Rank       uint32 `protobuf:"varint,2,opt,name=rank,proto3" json:"rank,omitempty"`
	MaxEnd     int64  `protobuf:"varint,3,opt,name=max_end,json=maxEnd,proto3" json:"max_end,omitempty"`
	NumRecords int64  `protobuf:"varint,4,opt,name=num_records,json=numRecords,proto3" json:"num_records,omitempty"`
	// Levels is the bitmask of binning levels that hold an index entry.
	Levels uint32 `protobuf:"varint,5,opt,name=levels,proto3" json:"levels,omitempty"`
}

func (m *ChromosomeInfo) Reset()         { *m = ChromosomeInfo{} }
func (m *ChromosomeInfo) String() string { return proto.CompactTextString(m) }
func (*ChromosomeInfo) ProtoMessage()    {}

// Manifest describes a genomic record store directory.
type Manifest struct {
	Magic       uint64            `protobuf:"fixed64,1,opt,name=magic,proto3" json:"magic,omitempty"`
	Version     string            `protobuf:"bytes,2,opt,name=version,proto3" json:"version,omitempty"`
	MinShift    uint32            `protobuf:"varint,3,opt,name=min_shift,json=minShift,proto3" json:"min_shift,omitempty"`
	Depth       uint32            `protobuf:"varint,4,opt,name=depth,proto3" json:"depth,omitempty"`
	Chromosomes []*ChromosomeInfo `protobuf:"bytes,5,rep,name=chromosomes,proto3" json:"chromosomes,omitempty"`
	NumRecords  uint64            `protobuf:"varint,6,opt,name=num_records,json=numRecords,proto3" json:"num_records,omitempty"`
	NumEntries  uint64            `protobuf:"varint,7,opt,name=num_entries,json=numEntries,proto3" json:"num_entries,omitempty"`
}

func (m *Manifest) Reset()         { *m = Manifest{} }
func (m *Manifest) String() string { return proto.CompactTextString(m) }
func (*Manifest) ProtoMessage()    {}
