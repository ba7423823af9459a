// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grs

import (
	"context"
	"fmt"
	"os"

	"github.com/gogo/protobuf/proto"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/gri/biopb"
)

const (
	// ManifestMagic is stored in biopb.Manifest.Magic.
	ManifestMagic = uint64(0x46494e414d535247) // "GRSMANIF"
	// DefaultVersion is the version of the store format.
	DefaultVersion = "GRS1"
)

func init() {
	recordiozstd.Init()
}

// RecordsPath returns the path of the records table in dir.
func RecordsPath(dir string) string { return fmt.Sprintf("%s/records.grs", dir) }

// IndexPath returns the path of the index table in dir.
func IndexPath(dir string) string { return fmt.Sprintf("%s/index.grs", dir) }

// ManifestPath returns the path of the manifest in dir.
func ManifestPath(dir string) string { return fmt.Sprintf("%s/manifest", dir) }

// WriteManifest serializes msg into a single-block recordio file
// "dir/manifest".  Existing contents of the file are clobbered.  Magic and
// Version are filled in.
func WriteManifest(ctx context.Context, dir string, msg *biopb.Manifest) error {
	msg.Magic = ManifestMagic
	msg.Version = DefaultVersion
	data, e := proto.Marshal(msg)
	if e != nil {
		return e
	}
	path := ManifestPath(dir)
	out, e := file.Create(ctx, path)
	if e != nil {
		return errors.E(e, path)
	}
	err := errors.Once{}
	rio := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	rio.Append(data)
	err.Set(rio.Finish())
	err.Set(out.Close(ctx))
	return err.Err()
}

// ReadManifest reads "dir/manifest".
func ReadManifest(ctx context.Context, dir string) (manifest biopb.Manifest, err error) {
	path := ManifestPath(dir)
	in, err := file.Open(ctx, path)
	if err != nil {
		return manifest, errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	rio := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	defer rio.Finish() // nolint: errcheck
	if !rio.Scan() {
		err = rio.Err()
		if err == nil {
			err = fmt.Errorf("no manifest record")
		}
		return manifest, errors.E(errors.Integrity, err, fmt.Sprintf("ReadManifest %v", path))
	}
	if err = proto.Unmarshal(rio.Get().([]byte), &manifest); err != nil {
		return manifest, errors.E(errors.Integrity, err, path)
	}
	if manifest.Magic != ManifestMagic {
		return manifest, errors.E(errors.Integrity, fmt.Sprintf("%s: wrong manifest magic %x; expect %x", path, manifest.Magic, ManifestMagic))
	}
	if manifest.Version != DefaultVersion {
		return manifest, errors.E(errors.Integrity, fmt.Sprintf("%s: wrong store version '%v'; expect '%v'", path, manifest.Version, DefaultVersion))
	}
	return manifest, rio.Err()
}

// Remove deletes the store files in dir, then dir itself if it becomes
// empty.  Missing files are ignored.
func Remove(ctx context.Context, dir string) error {
	for _, path := range []string{RecordsPath(dir), IndexPath(dir), ManifestPath(dir)} {
		if err := file.Remove(ctx, path); err != nil && !errors.Is(errors.NotExist, err) && !os.IsNotExist(err) {
			return errors.E(err, path)
		}
	}
	if err := file.Remove(ctx, dir); err != nil {
		// Object stores have no directories, and the directory may hold other
		// files.
		log.Debug.Printf("%s: directory not removed: %v", dir, err)
	}
	return nil
}
