// Package jsp (JSON persistence) saves and loads small JSON-encoded
// metadata files atomically: write to a temp file in the same directory,
// flush, close, then rename over the destination so readers never
// observe a partially-written file. It deliberately skips a
// checksum/compression envelope — none of this gateway's metadata (a
// generated signing secret) needs tamper evidence beyond what
// the filesystem already gives a single-process writer.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package jsp

import (
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/storegate/3rdparty/glog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Save encodes v as JSON and atomically replaces path with the result.
func Save(path string, v interface{}) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmpName); rmErr != nil {
				glog.Errorf("jsp: failed to remove temp file %s after error %v: %v", tmpName, err, rmErr)
			}
		}
	}()
	enc := json.NewEncoder(tmp)
	if err = enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Load decodes the JSON file at path into v. Returns an error satisfying
// os.IsNotExist when the file has never been written.
func Load(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

// Exists reports whether a metadata file has already been persisted.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
