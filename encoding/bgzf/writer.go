// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bgzf includes a Writer for the .bgzf (block gzipped) file
// format.  A .bgzf file consists of one or more complete gzip blocks
// concatenated together.  Each of the gzip blocks must represent at
// most 64KB of uncompressed data, and the compressed size of the
// block must be at most 64KB.  A valid .bgzf file ends with the 28
// byte .bgzf terminator; the terminator is a valid gzip block
// containing an empty payload.
//
// bio-gri writes query output in this format when the output path ends
// in .gz, so that the output can be fed back to "bio-gri load" (which
// reads any multi-member gzip stream) or indexed by tabix-style tools.
//
// Example:
//   var bgzfFile bytes.Buffer
//   w, err := NewWriter(&bgzfFile, gzip.DefaultCompression)
//   n, err := w.Write([]byte("1\t11\t20\tgeneA\n"))
//   err = w.Close()
//
// For more information about the .bgzf file format, see the SAM/BAM
// spec here: https://samtools.github.io/hts-specs/SAMv1.pdf
package bgzf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"v.io/x/lib/vlog"
)

const (
	// DefaultUncompressedBlockSize is the default bgzf
	// uncompressedBlockSize chosen by both sambamba and biogo.  See
	// the SAM/BAM specification for details.
	DefaultUncompressedBlockSize = 0x0ff00

	// MaxUncompressedBlockSize is the largest legal value for
	// uncompressedBlockSize.
	MaxUncompressedBlockSize = 0x10000

	// compressedBlockSize is the maximum size of the compressed data
	// for a Bgzf block.
	compressedBlockSize = 0x10000

	// extraOffset is the offset of the Extra field in the gzip header.
	extraOffset = 12
)

var (
	// bgzfExtra goes into the gzip's Extra subfield, with subfield
	// ids: 66, 67, and length 2.  The last two bytes are patched with
	// BSIZE once the block is compressed.
	bgzfExtra       = [...]byte{66, 67, 2, 0, 0, 0}
	bgzfExtraPrefix = [...]byte{66, 67, 2, 0}

	// terminator is the Bgzf EOF terminator.
	terminator = []byte{
		0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00, 0x42, 0x43,
		0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
)

// Writer compresses data into .bgzf format.  The payload of the .bgzf
// file is the in-order concatenation of the uncompressed payloads of
// its gzip blocks.  Writer is not thread safe.
type Writer struct {
	uncompressedSize int
	w                io.Writer
	gz               *gzip.Writer
	original         bytes.Buffer
	compressed       bytes.Buffer
	coffset          uint64 // starting file position of the current gzip block
}

// NewWriter returns a new .bgzf writer with the given gzip compression
// level and the default block size.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	return NewWriterSize(w, level, DefaultUncompressedBlockSize)
}

// NewWriterSize returns a new .bgzf writer that puts at most
// uncompressedBlockSize bytes in each block.
func NewWriterSize(w io.Writer, level, uncompressedBlockSize int) (*Writer, error) {
	if uncompressedBlockSize <= 0 || uncompressedBlockSize > MaxUncompressedBlockSize {
		return nil, fmt.Errorf("bgzf: block size %d out of range (0, %d]", uncompressedBlockSize, MaxUncompressedBlockSize)
	}
	gz, err := gzip.NewWriterLevel(nil, level)
	if err != nil {
		return nil, err
	}
	return &Writer{
		uncompressedSize: uncompressedBlockSize,
		w:                w,
		gz:               gz,
	}, nil
}

// Write appends buf to the .bgzf payload.  Returns the number of bytes
// consumed from buf and any error encountered.
func (w *Writer) Write(buf []byte) (int, error) {
	for i := 0; i < len(buf); {
		// Write one block at a time to avoid copying all of buf.
		end := len(buf)
		if limit := i + w.uncompressedSize - w.original.Len(); limit < end {
			end = limit
		}
		n, _ := w.original.Write(buf[i:end])
		i += n
		if err := w.tryCompress(false); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

// CloseWithoutTerminator closes the current .bgzf block, but does not
// append the .bgzf terminator.  The output is not a complete .bgzf
// file until Close is called.
func (w *Writer) CloseWithoutTerminator() error {
	return w.tryCompress(true)
}

// Close closes the current .bgzf block and appends the .bgzf
// terminator.  It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.CloseWithoutTerminator(); err != nil {
		return err
	}
	_, err := w.w.Write(terminator)
	return err
}

// tryCompress compresses full blocks from w.original, or all of it when
// compressRemainder is set, and writes them out.
func (w *Writer) tryCompress(compressRemainder bool) error {
	for w.original.Len() >= w.uncompressedSize || (compressRemainder && w.original.Len() > 0) {
		w.gz.Reset(&w.compressed)
		w.gz.Header.Extra = append([]byte(nil), bgzfExtra[:]...)
		w.gz.Header.OS = 0xff // Unknown OS value
		if _, err := w.gz.Write(w.original.Next(w.uncompressedSize)); err != nil {
			return err
		}
		if err := w.gz.Close(); err != nil {
			return err
		}

		// Replace bgzf BSIZE with compressed length - 1.
		b := w.compressed.Bytes()
		bsize := len(b) - 1
		if bsize >= compressedBlockSize {
			return fmt.Errorf("bgzf compressed block is too big: %d > %d", bsize, compressedBlockSize)
		}
		if len(b) < extraOffset+len(bgzfExtra) {
			vlog.Fatalf("compressed length is too short: %d < %d", len(b), extraOffset+len(bgzfExtra))
		}
		if !bytes.Equal(b[extraOffset:extraOffset+len(bgzfExtraPrefix)], bgzfExtraPrefix[:]) {
			vlog.Fatalf("could not find bgzf extra prefix")
		}
		b[extraOffset+4] = byte(bsize)
		b[extraOffset+5] = byte(bsize >> 8)

		sz := len(b)
		if _, err := w.compressed.WriteTo(w.w); err != nil {
			return err
		}
		w.coffset += uint64(sz)
	}
	return nil
}

// VOffset returns the virtual offset of the next byte to be written:
// the file offset of the current block in the upper 48 bits and the
// offset within the uncompressed block in the lower 16.
func (w *Writer) VOffset() uint64 {
	return w.coffset<<16 | uint64(w.original.Len())
}
