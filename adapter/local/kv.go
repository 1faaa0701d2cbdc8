// Package local implements the single-process storage adapters: a
// buntdb-backed KV/channel store and a filesystem-backed blob store,
// ported from the embedded-database driver pattern used for AIStore's
// local backend (open one buntdb file, sync every second, auto-shrink
// on growth).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package local

import (
	"context"
	"sort"

	"github.com/tidwall/buntdb"
)

const autoShrinkSize = 1 << 20 // 1MB

// DB wraps one buntdb handle shared by the local KV store and the local
// channel store.
type DB struct {
	bunt *buntdb.DB
}

func OpenDB(path string) (*DB, error) {
	bunt, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	bunt.SetConfig(buntdb.Config{
		SyncPolicy:           buntdb.EverySecond,
		AutoShrinkMinSize:    autoShrinkSize,
		AutoShrinkPercentage: 50,
	})
	return &DB{bunt: bunt}, nil
}

func (d *DB) Close() error { return d.bunt.Close() }

// KVStore implements adapter.KV directly over one buntdb database: every
// KV key (user or internal) is a single flat buntdb key, since the
// namespace/prefix structure is already encoded by callers in cmn.KVKey
// form before it reaches here.
type KVStore struct {
	db *DB
}

func NewKVStore(db *DB) *KVStore { return &KVStore{db: db} }

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.bunt.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *KVStore) Put(_ context.Context, key, value string) error {
	return s.db.bunt.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, nil)
		return err
	})
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	err := s.db.bunt.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil
	}
	return err
}

// List returns keys with prefix in lexicographic order. cursor, when
// non-empty, is the last key returned by a previous call; List resumes
// strictly after it.
func (s *KVStore) List(_ context.Context, prefix, cursor string, limit int) ([]string, string, error) {
	var all []string
	err := s.db.bunt.View(func(tx *buntdb.Tx) error {
		pattern := prefix + "*"
		tx.AscendKeys(pattern, func(key, _ string) bool {
			if cursor == "" || key > cursor {
				all = append(all, key)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	sort.Strings(all)
	if limit <= 0 || len(all) <= limit {
		return all, "", nil
	}
	return all[:limit], all[limit-1], nil
}
