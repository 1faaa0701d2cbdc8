package edge

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/cmn"
)

// coordinatorRequest is one unit of work routed to a channel's owning
// goroutine.
type coordinatorRequest struct {
	fn   func() (interface{}, error)
	resp chan coordinatorResponse
}

type coordinatorResponse struct {
	val interface{}
	err error
}

// coordinator owns every operation for one slice of the channel-id
// keyspace, processing requests one at a time off its inbox so appends
// routed to it are naturally serialized without a mutex.
type coordinator struct {
	inbox chan coordinatorRequest
}

func newCoordinator() *coordinator {
	c := &coordinator{inbox: make(chan coordinatorRequest, 64)}
	go c.run()
	return c
}

func (c *coordinator) run() {
	for req := range c.inbox {
		val, err := req.fn()
		req.resp <- coordinatorResponse{val: val, err: err}
	}
}

func (c *coordinator) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	resp := make(chan coordinatorResponse, 1)
	select {
	case c.inbox <- coordinatorRequest{fn: fn, resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ChannelStore implements adapter.Channel by routing every operation for
// a channel-id to one of a fixed pool of coordinator goroutines, chosen
// by a deterministic hash of the channel-id. Two channel-ids that hash
// to the same coordinator still serialize correctly against each other
// since the coordinator drains its inbox one request at a time; they
// just share a worker instead of getting a dedicated one.
type ChannelStore struct {
	coordinators []*coordinator
	kv           adapter.KV // underlying table/document store for metadata, seq, events
}

// NewChannelStore creates a pool of n coordinators backed by kv for
// durable state. n should scale with expected concurrent-channel count;
// it does not bound the number of distinct channel-ids supported.
func NewChannelStore(kv adapter.KV, n int) *ChannelStore {
	if n <= 0 {
		n = 32
	}
	pool := make([]*coordinator, n)
	for i := range pool {
		pool[i] = newCoordinator()
	}
	return &ChannelStore{coordinators: pool, kv: kv}
}

func (s *ChannelStore) coordinatorFor(channelID string) *coordinator {
	h := fnv.New32a()
	h.Write([]byte(channelID))
	return s.coordinators[h.Sum32()%uint32(len(s.coordinators))]
}

func metaKey(channelID string) string     { return "__CH:" + channelID + ":meta" }
func seqKey(channelID string) string      { return "__CH:" + channelID + ":seq" }
func eventKey(channelID string, seq int64) string {
	return fmt.Sprintf("__CH:%s:event:%020d", channelID, seq)
}

func (s *ChannelStore) CreateChannel(ctx context.Context, channelID string, meta *adapter.ChannelMeta) error {
	co := s.coordinatorFor(channelID)
	_, err := co.do(ctx, func() (interface{}, error) {
		_, found, err := s.kv.Get(ctx, metaKey(channelID))
		if err != nil {
			return nil, err
		}
		if found {
			return nil, fmt.Errorf("channel %s already exists", channelID)
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		if err := s.kv.Put(ctx, metaKey(channelID), string(raw)); err != nil {
			return nil, err
		}
		return nil, s.kv.Put(ctx, seqKey(channelID), "0")
	})
	return err
}

func (s *ChannelStore) GetMetadata(ctx context.Context, channelID string) (*adapter.ChannelMeta, bool, error) {
	raw, found, err := s.kv.Get(ctx, metaKey(channelID))
	if err != nil || !found {
		return nil, false, err
	}
	meta := &adapter.ChannelMeta{}
	if err := json.Unmarshal([]byte(raw), meta); err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

func (s *ChannelStore) Append(ctx context.Context, channelID string, in adapter.NewEvent) (*adapter.Event, error) {
	co := s.coordinatorFor(channelID)
	val, err := co.do(ctx, func() (interface{}, error) {
		rawSeq, _, err := s.kv.Get(ctx, seqKey(channelID))
		if err != nil {
			return nil, err
		}
		var lastSeq int64
		fmt.Sscanf(rawSeq, "%d", &lastSeq)
		newSeq := lastSeq + 1

		ev := &adapter.Event{
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
			return nil, err
		}
		if err := s.kv.Put(ctx, eventKey(channelID, newSeq), string(raw)); err != nil {
			return nil, err
		}
		if err := s.kv.Put(ctx, seqKey(channelID), fmt.Sprintf("%d", newSeq)); err != nil {
			return nil, err
		}
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*adapter.Event), nil
}

func (s *ChannelStore) GetEvent(ctx context.Context, channelID string, seq int64) (*adapter.Event, bool, error) {
	raw, found, err := s.kv.Get(ctx, eventKey(channelID, seq))
	if err != nil || !found {
		return nil, false, err
	}
	ev := &adapter.Event{}
	if err := json.Unmarshal([]byte(raw), ev); err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

func (s *ChannelStore) Read(ctx context.Context, channelID string, opts adapter.ReadOpts) ([]*adapter.Event, bool, error) {
	prefix := fmt.Sprintf("__CH:%s:event:", channelID)
	keys, _, err := s.kv.List(ctx, prefix, eventKey(channelID, opts.AfterSeq), 0)
	if err != nil {
		return nil, false, err
	}

	var all []*adapter.Event
	deleted := map[int64]bool{}
	for _, k := range keys {
		raw, found, err := s.kv.Get(ctx, k)
		if err != nil || !found {
			continue
		}
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
			if ev.Kind == adapter.EventDeletion || deleted[ev.Seq] {
				continue
			}
		}
		out = append(out, ev)
	}

	hasMore := false
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
		hasMore = true
	}
	return out, hasMore, nil
}

func (s *ChannelStore) DeleteChannel(ctx context.Context, channelID string) error {
	co := s.coordinatorFor(channelID)
	_, err := co.do(ctx, func() (interface{}, error) {
		prefix := fmt.Sprintf("__CH:%s:", channelID)
		for {
			keys, _, err := s.kv.List(ctx, prefix, "", 100)
			if err != nil {
				return nil, err
			}
			if len(keys) == 0 {
				return nil, nil
			}
			for _, k := range keys {
				if err := s.kv.Delete(ctx, k); err != nil {
					return nil, err
				}
			}
		}
	})
	return err
}
