// Package channel implements the per-channel append-only event log
// service: create/list/delete, capability-token-gated append/read/
// delete-event, and a poll-based subscription feed for SSE, all atop
// an adapter.Channel plus adapter.KV for the owner index.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package channel

import (
	"context"
	"encoding/hex"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/captoken"
	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/crypto"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Info is a channel's listing-facing summary.
type Info struct {
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

type indexEntry struct {
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// Service implements the channel routes.
type Service struct {
	adapter adapter.Channel
	kv      adapter.KV
}

func NewService(ch adapter.Channel, kv adapter.KV) *Service {
	return &Service{adapter: ch, kv: kv}
}

// Create mints a new channel owned by ownerNS, with a fresh random
// secret used to sign capability tokens.
func (s *Service) Create(ctx context.Context, ownerNS, name string) (*Info, error) {
	channelID := cmn.GenUUID()
	meta := &adapter.ChannelMeta{
		ChannelID: channelID,
		Name:      name,
		OwnerNS:   ownerNS,
		CreatedAt: time.Now().Unix(),
		Secret:    crypto.NewSecretHex(32),
	}
	if err := s.adapter.CreateChannel(ctx, channelID, meta); err != nil {
		return nil, err
	}
	entry := indexEntry{ChannelID: channelID, Name: name, CreatedAt: meta.CreatedAt}
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Put(ctx, cmn.ChannelIndexKey(ownerNS, channelID), string(raw)); err != nil {
		return nil, err
	}
	return &Info{ChannelID: channelID, Name: name, CreatedAt: meta.CreatedAt}, nil
}

// List returns every channel owned by ownerNS.
func (s *Service) List(ctx context.Context, ownerNS string) ([]*Info, error) {
	prefix := cmn.PrefixChannelIndex + ownerNS + ":"
	keys, _, err := s.kv.List(ctx, prefix, "", 0)
	if err != nil {
		return nil, err
	}
	out := make([]*Info, 0, len(keys))
	for _, k := range keys {
		raw, found, err := s.kv.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		entry := indexEntry{}
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, err
		}
		out = append(out, &Info{ChannelID: entry.ChannelID, Name: entry.Name, CreatedAt: entry.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// Delete requires ownerNS to match the channel's recorded owner.
func (s *Service) Delete(ctx context.Context, ownerNS, channelID string) error {
	meta, found, err := s.adapter.GetMetadata(ctx, channelID)
	if err != nil {
		return err
	}
	if !found {
		return cmn.Errorf(cmn.NotFound, "channel %s not found", channelID)
	}
	if meta.OwnerNS != ownerNS {
		return cmn.Errorf(cmn.PermissionDenied, "channel %s is not owned by %s", channelID, ownerNS)
	}
	if err := s.adapter.DeleteChannel(ctx, channelID); err != nil {
		return err
	}
	return s.kv.Delete(ctx, cmn.ChannelIndexKey(ownerNS, channelID))
}

// VerifyOwner confirms ownerNS owns channelID, mirroring the ownership
// check Delete performs. Callers must run this before any privileged,
// ownership-gated action on a channel-id supplied by the caller, such
// as minting a capability token.
func (s *Service) VerifyOwner(ctx context.Context, ownerNS, channelID string) error {
	meta, found, err := s.adapter.GetMetadata(ctx, channelID)
	if err != nil {
		return err
	}
	if !found {
		return cmn.Errorf(cmn.NotFound, "channel %s not found", channelID)
	}
	if meta.OwnerNS != ownerNS {
		return cmn.Errorf(cmn.PermissionDenied, "channel %s is not owned by %s", channelID, ownerNS)
	}
	return nil
}

// IssueToken mints a capability token scoped to channelID, signed with
// the channel's own secret. Callers must already have verified the
// requester owns the channel.
func (s *Service) IssueToken(ctx context.Context, channelID string, perms captoken.Permissions, authorID string, ttl time.Duration) (string, error) {
	secret, err := s.channelSecret(ctx, channelID)
	if err != nil {
		return "", err
	}
	return captoken.Create(channelID, perms, authorID, ttl, secret)
}

func (s *Service) channelSecret(ctx context.Context, channelID string) ([]byte, error) {
	meta, found, err := s.adapter.GetMetadata(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, cmn.Errorf(cmn.NotFound, "channel %s not found", channelID)
	}
	secret, err := hex.DecodeString(meta.Secret)
	if err != nil {
		return nil, cmn.Wrap(cmn.AdapterFatal, err, "channel %s has a malformed secret", channelID)
	}
	return secret, nil
}

// VerifyToken parses and verifies a capability token against its
// target channel's own secret.
func (s *Service) VerifyToken(ctx context.Context, token string) (*captoken.Claims, error) {
	channelID, err := captoken.Parse(token)
	if err != nil {
		return nil, cmn.Wrap(cmn.TokenInvalid, err, "malformed capability token")
	}
	secret, err := s.channelSecret(ctx, channelID)
	if err != nil {
		return nil, err
	}
	claims, err := captoken.Verify(token, secret)
	if err != nil {
		switch err {
		case captoken.ErrExpired:
			return nil, cmn.Wrap(cmn.TokenExpired, err, "capability token expired")
		default:
			return nil, cmn.Wrap(cmn.TokenInvalid, err, "capability token verification failed")
		}
	}
	return claims, nil
}

// checkChannelMatch confirms claims were issued for channelID, since
// VerifyToken only proves the token's MAC matches *some* channel's
// secret (resolved from the token's own embedded channel-id), never
// that it matches the channelID a caller separately supplied.
func checkChannelMatch(channelID string, claims *captoken.Claims) error {
	if claims.ChannelID != channelID {
		return cmn.Errorf(cmn.PermissionDenied, "token was not issued for channel %s", channelID)
	}
	return nil
}

// Append requires claims to carry the append permission; the event's
// author-id is taken from the token, never the caller.
func (s *Service) Append(ctx context.Context, channelID string, claims *captoken.Claims, content string) (*adapter.Event, error) {
	if err := checkChannelMatch(channelID, claims); err != nil {
		return nil, err
	}
	if !claims.Permissions.Has(captoken.Append) {
		return nil, cmn.Errorf(cmn.PermissionDenied, "token does not carry append permission")
	}
	return s.adapter.Append(ctx, channelID, adapter.NewEvent{AuthorID: claims.AuthorID, Content: content})
}

// Read requires the read permission, and the read_deleted permission
// to set includeDeleted.
func (s *Service) Read(ctx context.Context, channelID string, claims *captoken.Claims, afterSeq int64, limit int, includeDeleted bool) ([]*adapter.Event, bool, error) {
	if err := checkChannelMatch(channelID, claims); err != nil {
		return nil, false, err
	}
	if !claims.Permissions.Has(captoken.Read) {
		return nil, false, cmn.Errorf(cmn.PermissionDenied, "token does not carry read permission")
	}
	if includeDeleted && !claims.Permissions.Has(captoken.ReadDeleted) {
		return nil, false, cmn.Errorf(cmn.PermissionDenied, "token does not carry read_deleted permission")
	}
	return s.adapter.Read(ctx, channelID, adapter.ReadOpts{AfterSeq: afterSeq, Limit: limit, IncludeDeleted: includeDeleted})
}

// DeleteEvent appends a deletion marker for targetSeq, after checking
// the caller has delete_any, or delete_own and is the event's original
// author.
func (s *Service) DeleteEvent(ctx context.Context, channelID string, claims *captoken.Claims, targetSeq int64) (*adapter.Event, error) {
	if err := checkChannelMatch(channelID, claims); err != nil {
		return nil, err
	}
	target, found, err := s.adapter.GetEvent(ctx, channelID, targetSeq)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, cmn.Errorf(cmn.NotFound, "event %d not found", targetSeq)
	}
	canDeleteAny := claims.Permissions.Has(captoken.DeleteAny)
	canDeleteOwn := claims.Permissions.Has(captoken.DeleteOwn) && target.AuthorID == claims.AuthorID
	if !canDeleteAny && !canDeleteOwn {
		return nil, cmn.Errorf(cmn.PermissionDenied, "token does not authorize deleting event %d", targetSeq)
	}
	return s.adapter.Append(ctx, channelID, adapter.NewEvent{
		AuthorID:  claims.AuthorID,
		Kind:      adapter.EventDeletion,
		TargetSeq: targetSeq,
	})
}

// Subscribe polls for new events after afterSeq every pollInterval
// until ctx is cancelled (client abort), sending each newly observed
// event on the returned channel. The channel is closed when ctx ends.
func (s *Service) Subscribe(ctx context.Context, channelID string, claims *captoken.Claims, afterSeq int64, pollInterval time.Duration) (<-chan *adapter.Event, error) {
	if err := checkChannelMatch(channelID, claims); err != nil {
		return nil, err
	}
	if !claims.Permissions.Has(captoken.Read) {
		return nil, cmn.Errorf(cmn.PermissionDenied, "token does not carry read permission")
	}
	out := make(chan *adapter.Event)
	go func() {
		defer close(out)
		last := afterSeq
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events, _, err := s.adapter.Read(ctx, channelID, adapter.ReadOpts{AfterSeq: last})
				if err != nil {
					return
				}
				for _, ev := range events {
					select {
					case out <- ev:
						last = ev.Seq
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}
