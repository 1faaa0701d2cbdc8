// Package kv implements the namespaced key/value service: get, set,
// delete, key and namespace listing, bulk operations, and a full dump,
// all filtering reserved "__"-prefixed internal namespaces out of any
// user-facing result.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package kv

import (
	"context"
	"sort"
	"strings"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/cmn"
)

// Entry is one key/value pair, namespace-relative (the "<ns>:" prefix
// already stripped).
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Service implements the KV routes over an adapter.KV.
type Service struct {
	store adapter.KV
}

func NewService(store adapter.KV) *Service { return &Service{store: store} }

// rejectInternal refuses access to "__"-prefixed namespaces, which are
// reserved for storegate's own records (principals, blob metadata,
// channel indexes, namespace aliases). Without this check, a caller of
// the public kv/* routes could forge those records directly.
func rejectInternal(namespace string) error {
	if cmn.IsInternalNamespace(namespace) {
		return cmn.Errorf(cmn.PermissionDenied, "namespace %q is reserved", namespace)
	}
	return nil
}

// Get returns the value stored at namespace:key.
func (s *Service) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	if err := rejectInternal(namespace); err != nil {
		return "", false, err
	}
	return s.store.Get(ctx, cmn.KVKey(namespace, key))
}

// Set is idempotent: repeated identical calls succeed identically.
func (s *Service) Set(ctx context.Context, namespace, key, value string) error {
	if err := rejectInternal(namespace); err != nil {
		return err
	}
	return s.store.Put(ctx, cmn.KVKey(namespace, key), value)
}

// Delete is idempotent: deleting an absent key is not an error.
func (s *Service) Delete(ctx context.Context, namespace, key string) error {
	if err := rejectInternal(namespace); err != nil {
		return err
	}
	return s.store.Delete(ctx, cmn.KVKey(namespace, key))
}

// ListKeys returns every key under namespace in lexicographic order,
// with the "<ns>:" prefix stripped.
func (s *Service) ListKeys(ctx context.Context, namespace string) ([]string, error) {
	if err := rejectInternal(namespace); err != nil {
		return nil, err
	}
	prefix := namespace + ":"
	raw, _, err := s.store.List(ctx, prefix, "", 0)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	return out, nil
}

// ListNamespaces scans every key, derives its namespace, and returns
// the sorted set of distinct non-internal namespaces observed.
func (s *Service) ListNamespaces(ctx context.Context) ([]string, error) {
	raw, _, err := s.store.List(ctx, "", "", 0)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, k := range raw {
		ns, _, ok := cmn.SplitKVKey(k)
		if !ok || cmn.IsInternalNamespace(ns) {
			continue
		}
		seen[ns] = true
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

// BulkGet fetches each of keys under namespace, silently skipping any
// that are missing.
func (s *Service) BulkGet(ctx context.Context, namespace string, keys []string) ([]Entry, error) {
	if err := rejectInternal(namespace); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(keys))
	for _, key := range keys {
		value, found, err := s.store.Get(ctx, cmn.KVKey(namespace, key))
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out = append(out, Entry{Key: key, Value: value})
	}
	return out, nil
}

// BulkSet writes each entry independently; order is not guaranteed and
// a failure partway through does not roll back entries already
// written. It returns the count successfully written before the first
// error, if any.
func (s *Service) BulkSet(ctx context.Context, namespace string, entries []Entry) (count int, err error) {
	if err := rejectInternal(namespace); err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := s.store.Put(ctx, cmn.KVKey(namespace, e.Key), e.Value); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// NamespaceDump is one namespace's full contents, used by Dump.
type NamespaceDump struct {
	Namespace string  `json:"namespace"`
	Entries   []Entry `json:"entries"`
}

// Dump returns every non-internal namespace's full contents, sorted by
// namespace.
func (s *Service) Dump(ctx context.Context) ([]NamespaceDump, error) {
	namespaces, err := s.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]NamespaceDump, 0, len(namespaces))
	for _, ns := range namespaces {
		raw, _, err := s.store.List(ctx, ns+":", "", 0)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(raw))
		for _, k := range raw {
			value, found, err := s.store.Get(ctx, k)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			_, key, _ := cmn.SplitKVKey(k)
			entries = append(entries, Entry{Key: key, Value: value})
		}
		out = append(out, NamespaceDump{Namespace: ns, Entries: entries})
	}
	return out, nil
}
