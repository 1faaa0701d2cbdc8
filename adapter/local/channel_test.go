package local

import (
	"context"
	"sync"
	"testing"

	"github.com/NVIDIA/storegate/adapter"
)

func TestChannelStoreAppendOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewChannelStore(newTestDB(t))
	channelID := "11111111-1111-1111-1111-111111111111"

	if err := store.CreateChannel(ctx, channelID, &adapter.ChannelMeta{ChannelID: channelID, Name: "test"}); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	var wg sync.WaitGroup
	contents := []string{"A", "B"}
	for _, c := range contents {
		wg.Add(1)
		go func(content string) {
			defer wg.Done()
			if _, err := store.Append(ctx, channelID, adapter.NewEvent{AuthorID: "alice", Content: content}); err != nil {
				t.Errorf("Append(%s): %v", content, err)
			}
		}(c)
	}
	wg.Wait()

	events, hasMore, err := store.Read(ctx, channelID, adapter.ReadOpts{AfterSeq: 0, Limit: 0})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hasMore {
		t.Fatal("unexpected hasMore")
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("expected dense seqs 1,2; got %d,%d", events[0].Seq, events[1].Seq)
	}
	seen := map[string]bool{events[0].Content: true, events[1].Content: true}
	for _, c := range contents {
		if !seen[c] {
			t.Fatalf("content %q lost", c)
		}
	}
}

func TestChannelStoreDeletionFiltering(t *testing.T) {
	ctx := context.Background()
	store := NewChannelStore(newTestDB(t))
	channelID := "22222222-2222-2222-2222-222222222222"

	if err := store.CreateChannel(ctx, channelID, &adapter.ChannelMeta{ChannelID: channelID}); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	ev1, err := store.Append(ctx, channelID, adapter.NewEvent{AuthorID: "alice", Content: "hello"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.Append(ctx, channelID, adapter.NewEvent{AuthorID: "alice", Kind: adapter.EventDeletion, TargetSeq: ev1.Seq}); err != nil {
		t.Fatalf("Append deletion: %v", err)
	}

	visible, _, err := store.Read(ctx, channelID, adapter.ReadOpts{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected deletion and target to be filtered, got %d events", len(visible))
	}

	all, _, err := store.Read(ctx, channelID, adapter.ReadOpts{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("Read with IncludeDeleted: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events with IncludeDeleted, got %d", len(all))
	}
}

func TestChannelStoreCreateTwiceFails(t *testing.T) {
	ctx := context.Background()
	store := NewChannelStore(newTestDB(t))
	channelID := "33333333-3333-3333-3333-333333333333"

	if err := store.CreateChannel(ctx, channelID, &adapter.ChannelMeta{ChannelID: channelID}); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if err := store.CreateChannel(ctx, channelID, &adapter.ChannelMeta{ChannelID: channelID}); err == nil {
		t.Fatal("expected error creating the same channel twice")
	}
}

func TestChannelStoreDeleteChannelRemovesEvents(t *testing.T) {
	ctx := context.Background()
	store := NewChannelStore(newTestDB(t))
	channelID := "44444444-4444-4444-4444-444444444444"

	if err := store.CreateChannel(ctx, channelID, &adapter.ChannelMeta{ChannelID: channelID}); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if _, err := store.Append(ctx, channelID, adapter.NewEvent{AuthorID: "alice", Content: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.DeleteChannel(ctx, channelID); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if _, found, err := store.GetMetadata(ctx, channelID); err != nil || found {
		t.Fatalf("expected metadata gone, found=%v err=%v", found, err)
	}
	if _, found, err := store.GetEvent(ctx, channelID, 1); err != nil || found {
		t.Fatalf("expected event 1 gone, found=%v err=%v", found, err)
	}
}
