// Package authn implements the principal registry: creating, listing,
// and deleting principals, and the bootstrap policy that gates
// create-principal before any principal exists.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package authn

import (
	"context"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/crypto"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Principal is one registered identity. SecretHash, not Secret, is what
// persists; Secret is populated only on the Create response.
type Principal struct {
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
	Active      bool   `json:"active"`
	SecretHash  string `json:"secret_hash"`
	Secret      string `json:"secret,omitempty"`
}

// Registry manages principals on top of a KV adapter.
type Registry struct {
	kv adapter.KV
}

func NewRegistry(kv adapter.KV) *Registry { return &Registry{kv: kv} }

// Create mints a new principal and persists {display_name, created_at,
// active, secret_hash}, returning the one-time secret alongside it.
func (r *Registry) Create(ctx context.Context, displayName string) (*Principal, error) {
	secret := crypto.NewSecretHex(32)
	hash := crypto.SHA256Hex([]byte(secret))

	p := &Principal{
		DisplayName: displayName,
		CreatedAt:   time.Now().Unix(),
		Active:      true,
		SecretHash:  hash,
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := r.kv.Put(ctx, cmn.PrincipalKey(hash), string(raw)); err != nil {
		return nil, err
	}
	p.Secret = secret
	return p, nil
}

// List returns every registered principal, never including Secret.
func (r *Registry) List(ctx context.Context) ([]*Principal, error) {
	keys, _, err := r.kv.List(ctx, cmn.PrefixPrincipal, "", 0)
	if err != nil {
		return nil, err
	}
	out := make([]*Principal, 0, len(keys))
	for _, k := range keys {
		raw, found, err := r.kv.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		p := &Principal{}
		if err := json.Unmarshal([]byte(raw), p); err != nil {
			return nil, err
		}
		p.Secret = ""
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// Delete removes the principal with the given secret hash. It is
// idempotent: deleting an absent principal is not an error.
func (r *Registry) Delete(ctx context.Context, secretHash string) error {
	return r.kv.Delete(ctx, cmn.PrincipalKey(secretHash))
}

// Lookup resolves a presented secret to its active principal, if any.
func (r *Registry) Lookup(ctx context.Context, secret string) (*Principal, bool, error) {
	hash := crypto.SHA256Hex([]byte(secret))
	raw, found, err := r.kv.Get(ctx, cmn.PrincipalKey(hash))
	if err != nil || !found {
		return nil, false, err
	}
	p := &Principal{}
	if err := json.Unmarshal([]byte(raw), p); err != nil {
		return nil, false, err
	}
	p.Secret = ""
	if !p.Active {
		return nil, false, nil
	}
	return p, true, nil
}

// Count returns the number of registered principals, active or not;
// the admin health check reports it.
func (r *Registry) Count(ctx context.Context) (int, error) {
	keys, _, err := r.kv.List(ctx, cmn.PrefixPrincipal, "", 0)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// ParseAPIKeyHeader splits "ApiKey <secret>" into its secret, returning
// ok=false for any other shape.
func ParseAPIKeyHeader(header string) (secret string, ok bool) {
	const scheme = cmn.AuthSchemeAPIKey + " "
	if !strings.HasPrefix(header, scheme) {
		return "", false
	}
	secret = strings.TrimSpace(strings.TrimPrefix(header, scheme))
	if secret == "" {
		return "", false
	}
	return secret, true
}
