package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/cmn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const eventSeqWidth = 20 // fits any int64 in decimal, zero-padded

// ChannelStore implements adapter.Channel over buntdb, serializing all
// appends to a given channel-id with a per-channel mutex looked up from
// a shared map.
type ChannelStore struct {
	db *DB

	mu       sync.Mutex // guards chanLocks
	chanLocks map[string]*sync.Mutex
}

func NewChannelStore(db *DB) *ChannelStore {
	return &ChannelStore{db: db, chanLocks: make(map[string]*sync.Mutex)}
}

func (s *ChannelStore) lockFor(channelID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chanLocks[channelID]
	if !ok {
		l = &sync.Mutex{}
		s.chanLocks[channelID] = l
	}
	return l
}

func metaKey(channelID string) string  { return "__CH:" + channelID + ":meta" }
func seqKey(channelID string) string   { return "__CH:" + channelID + ":seq" }
func eventPrefix(channelID string) string { return "__CH:" + channelID + ":event:" }
func eventKey(channelID string, seq int64) string {
	return fmt.Sprintf("%s%0*d", eventPrefix(channelID), eventSeqWidth, seq)
}

func (s *ChannelStore) CreateChannel(_ context.Context, channelID string, meta *adapter.ChannelMeta) error {
	return s.db.bunt.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(metaKey(channelID)); err == nil {
			return fmt.Errorf("channel %s already exists", channelID)
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if _, _, err := tx.Set(metaKey(channelID), string(raw), nil); err != nil {
			return err
		}
		_, _, err = tx.Set(seqKey(channelID), "0", nil)
		return err
	})
}

func (s *ChannelStore) GetMetadata(_ context.Context, channelID string) (*adapter.ChannelMeta, bool, error) {
	var raw string
	err := s.db.bunt.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(metaKey(channelID))
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	meta := &adapter.ChannelMeta{}
	if err := json.Unmarshal([]byte(raw), meta); err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

func (s *ChannelStore) Append(_ context.Context, channelID string, in adapter.NewEvent) (*adapter.Event, error) {
	lock := s.lockFor(channelID)
	lock.Lock()
	defer lock.Unlock()

	var ev *adapter.Event
	err := s.db.bunt.Update(func(tx *buntdb.Tx) error {
		rawSeq, err := tx.Get(seqKey(channelID))
		if err != nil {
			return err
		}
		var lastSeq int64
		fmt.Sscanf(rawSeq, "%d", &lastSeq)
		newSeq := lastSeq + 1

		ev = &adapter.Event{
			ID:        cmn.GenUUID(),
			Seq:       newSeq,
			AuthorID:  in.AuthorID,
			Content:   in.Content,
			CreatedAt: time.Now().Unix(),
			Kind:      in.Kind,
			TargetSeq: in.TargetSeq,
		}
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, _, err := tx.Set(eventKey(channelID, newSeq), string(raw), nil); err != nil {
			return err
		}
		_, _, err = tx.Set(seqKey(channelID), fmt.Sprintf("%d", newSeq), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *ChannelStore) GetEvent(_ context.Context, channelID string, seq int64) (*adapter.Event, bool, error) {
	var raw string
	err := s.db.bunt.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(eventKey(channelID, seq))
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ev := &adapter.Event{}
	if err := json.Unmarshal([]byte(raw), ev); err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

func (s *ChannelStore) Read(_ context.Context, channelID string, opts adapter.ReadOpts) ([]*adapter.Event, bool, error) {
	var raws []string
	err := s.db.bunt.View(func(tx *buntdb.Tx) error {
		prefix := eventPrefix(channelID)
		after := eventKey(channelID, opts.AfterSeq)
		tx.AscendKeys(prefix+"*", func(key, value string) bool {
			if key > after {
				raws = append(raws, value)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	deleted := map[int64]bool{}
	var all []*adapter.Event
	for _, raw := range raws {
		ev := &adapter.Event{}
		if err := json.Unmarshal([]byte(raw), ev); err != nil {
			return nil, false, err
		}
		all = append(all, ev)
		if ev.Kind == adapter.EventDeletion {
			deleted[ev.TargetSeq] = true
		}
	}

	var out []*adapter.Event
	for _, ev := range all {
		if !opts.IncludeDeleted {
			if ev.Kind == adapter.EventDeletion {
				continue
			}
			if deleted[ev.Seq] {
				continue
			}
		}
		out = append(out, ev)
	}

	hasMore := false
	limit := opts.Limit
	if limit > 0 && len(out) > limit {
		out = out[:limit]
		hasMore = true
	}
	return out, hasMore, nil
}

func (s *ChannelStore) DeleteChannel(_ context.Context, channelID string) error {
	return s.db.bunt.Update(func(tx *buntdb.Tx) error {
		var keys []string
		prefix := "__CH:" + channelID + ":"
		tx.AscendKeys(prefix+"*", func(key, _ string) bool {
			keys = append(keys, key)
			return true
		})
		for _, k := range keys {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}
