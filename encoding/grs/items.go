// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grs

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/gri/gri"
)

const (
	entrySize        = 32
	recordHeaderSize = 32
	defaultBlockSize = 1 << 16
)

func putEntry(buf []byte, e gri.Entry) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Bin))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.Begin))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(e.End))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(e.ID))
}

func getEntry(buf []byte) gri.Entry {
	return gri.Entry{
		Bin:   gri.BinKey(binary.LittleEndian.Uint64(buf[0:8])),
		Begin: gri.PosType(binary.LittleEndian.Uint64(buf[8:16])),
		End:   gri.PosType(binary.LittleEndian.Uint64(buf[16:24])),
		ID:    gri.RecordID(binary.LittleEndian.Uint64(buf[24:32])),
	}
}

// parseEntries decodes a block of the index table.
func parseEntries(data []byte) ([]gri.Entry, error) {
	if len(data)%entrySize != 0 {
		return nil, fmt.Errorf("index block size %d is not a multiple of %d", len(data), entrySize)
	}
	entries := make([]gri.Entry, len(data)/entrySize)
	for i := range entries {
		entries[i] = getEntry(data[i*entrySize:])
	}
	return entries, nil
}

// appendRecord serializes rec at the end of buf.
func appendRecord(buf []byte, rec gri.Record) []byte {
	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(rec.ID))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(rec.Rank))
	binary.LittleEndian.PutUint64(hdr[12:20], uint64(rec.Begin))
	binary.LittleEndian.PutUint64(hdr[20:28], uint64(rec.End))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(len(rec.Payload)))
	buf = append(buf, hdr[:]...)
	return append(buf, rec.Payload...)
}

// parseRecords decodes a block of the records table.  The payloads alias
// data.
func parseRecords(data []byte, n int) ([]gri.Record, error) {
	recs := make([]gri.Record, 0, n)
	for len(data) > 0 {
		if len(data) < recordHeaderSize {
			return nil, fmt.Errorf("record header chopped: %d bytes", len(data))
		}
		payloadLen := int(binary.LittleEndian.Uint32(data[28:32]))
		if len(data) < recordHeaderSize+payloadLen {
			return nil, fmt.Errorf("record payload chopped: want %d bytes, have %d", payloadLen, len(data)-recordHeaderSize)
		}
		end := recordHeaderSize + payloadLen
		recs = append(recs, gri.Record{
			ID:      gri.RecordID(binary.LittleEndian.Uint64(data[0:8])),
			Rank:    gri.Rank(binary.LittleEndian.Uint32(data[8:12])),
			Begin:   gri.PosType(binary.LittleEndian.Uint64(data[12:20])),
			End:     gri.PosType(binary.LittleEndian.Uint64(data[20:28])),
			Payload: data[recordHeaderSize:end:end],
		})
		data = data[end:]
	}
	return recs, nil
}
