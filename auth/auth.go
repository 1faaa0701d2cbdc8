// Package auth classifies inbound requests and attaches identity to
// their context before a handler runs: bootstrap, principal,
// channel-token pass-through, or presigned. A request that fits none of
// these is rejected with an error.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package auth

import (
	"context"
	"net/http"

	"github.com/NVIDIA/storegate/authn"
	"github.com/NVIDIA/storegate/cmn"
)

// Class is the classification assigned to a request by Classify.
type Class string

const (
	ClassBootstrap    Class = "bootstrap"
	ClassPrincipal    Class = "principal"
	ClassChannelToken Class = "channel-token"
	ClassPresigned    Class = "presigned"
)

// Identity is what Classify attaches to the request context on success.
type Identity struct {
	Class     Class
	Principal *authn.Principal // set only for ClassPrincipal and ClassBootstrap
}

type ctxKey struct{}

// WithIdentity returns a context carrying ident, retrievable via
// IdentityFrom.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, ident)
}

// IdentityFrom returns the identity attached to ctx by Classify, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(ctxKey{}).(*Identity)
	return ident, ok
}

// Pipeline classifies requests against a principal registry and
// bootstrap policy.
type Pipeline struct {
	registry    *authn.Registry
	bootstrap   *authn.Bootstrapper
}

func NewPipeline(registry *authn.Registry, bootstrap *authn.Bootstrapper) *Pipeline {
	return &Pipeline{registry: registry, bootstrap: bootstrap}
}

// Classify determines the request's auth class per the signal table:
// presigned routes and X-Channel-Token carry their own verification
// downstream and are passed through unauthenticated here; everything
// else must resolve to a principal or the bootstrap key.
//
// isBootstrapRoute tells Classify whether r targets the one route the
// bootstrap key may ever authorize (create-principal); presenting the
// bootstrap key anywhere else yields AuthBootstrapMisuse rather than
// silently falling through to AuthUnknown.
func (p *Pipeline) Classify(ctx context.Context, r *http.Request, isBootstrapRoute, isPresignedRoute bool) (*Identity, error) {
	if isPresignedRoute {
		return &Identity{Class: ClassPresigned}, nil
	}
	if r.Header.Get(cmn.HeaderChannelToken) != "" {
		return &Identity{Class: ClassChannelToken}, nil
	}

	header := r.Header.Get(cmn.HeaderAuthorization)
	if header == "" {
		return nil, cmn.Errorf(cmn.AuthMalformed, "missing Authorization header")
	}
	secret, ok := authn.ParseAPIKeyHeader(header)
	if !ok {
		return nil, cmn.Errorf(cmn.AuthMalformed, "malformed Authorization header")
	}

	if p.bootstrap.IsBootstrapSecret(secret) {
		if !isBootstrapRoute {
			return nil, cmn.Errorf(cmn.AuthBootstrapMisuse, "bootstrap key presented on a non-bootstrap route")
		}
		allowed, err := p.bootstrap.Allow(ctx, secret)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, cmn.Errorf(cmn.AuthBootstrapMisuse, "bootstrap key no longer accepted: active principals exist")
		}
		return &Identity{Class: ClassBootstrap}, nil
	}

	principal, found, err := p.registry.Lookup(ctx, secret)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, cmn.Errorf(cmn.AuthUnknown, "unknown or inactive principal secret")
	}
	return &Identity{Class: ClassPrincipal, Principal: principal}, nil
}

// RequirePrincipal is a convenience for handlers that accept only
// ClassPrincipal or ClassBootstrap (create-principal itself).
func RequirePrincipal(ident *Identity) (*authn.Principal, error) {
	if ident == nil || (ident.Class != ClassPrincipal && ident.Class != ClassBootstrap) {
		return nil, cmn.Errorf(cmn.PermissionDenied, "route requires an authenticated principal")
	}
	return ident.Principal, nil
}
