package channel

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/NVIDIA/storegate/adapter/local"
	"github.com/NVIDIA/storegate/captoken"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := local.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(local.NewChannelStore(db), local.NewKVStore(db))
}

func TestCreateListDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	info, err := s.Create(ctx, "ns1", "my-channel")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := s.List(ctx, "ns1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ChannelID != info.ChannelID {
		t.Fatalf("List = %+v", list)
	}

	if err := s.Delete(ctx, "wrong-ns", info.ChannelID); err == nil {
		t.Fatal("expected error deleting channel from the wrong owner namespace")
	}
	if err := s.Delete(ctx, "ns1", info.ChannelID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err = s.List(ctx, "ns1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", list)
	}
}

func TestIssueTokenVerifyAndAppendOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	info, err := s.Create(ctx, "ns1", "my-channel")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	token, err := s.IssueToken(ctx, info.ChannelID, captoken.Read|captoken.Append, "author1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	claims, err := s.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.AuthorID != "author1" {
		t.Fatalf("AuthorID = %q, want author1", claims.AuthorID)
	}

	var wg sync.WaitGroup
	for _, content := range []string{"A", "B"} {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			if _, err := s.Append(ctx, info.ChannelID, claims, c); err != nil {
				t.Errorf("Append(%s): %v", c, err)
			}
		}(content)
	}
	wg.Wait()

	events, hasMore, err := s.Read(ctx, info.ChannelID, claims, 0, 0, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hasMore {
		t.Fatal("unexpected hasMore")
	}
	if len(events) != 2 || events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("events = %+v", events)
	}
	for _, ev := range events {
		if ev.AuthorID != "author1" {
			t.Fatalf("event author = %q, want author1", ev.AuthorID)
		}
	}
}

func TestDeleteEventRequiresOwnershipOrDeleteAny(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	info, err := s.Create(ctx, "ns1", "my-channel")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	authorToken, err := s.IssueToken(ctx, info.ChannelID, captoken.Read|captoken.Append|captoken.DeleteOwn, "author1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	authorClaims, err := s.VerifyToken(ctx, authorToken)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	ev, err := s.Append(ctx, info.ChannelID, authorClaims, "hello")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	otherToken, err := s.IssueToken(ctx, info.ChannelID, captoken.Read|captoken.DeleteOwn, "author2", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	otherClaims, err := s.VerifyToken(ctx, otherToken)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if _, err := s.DeleteEvent(ctx, info.ChannelID, otherClaims, ev.Seq); err == nil {
		t.Fatal("expected error deleting another author's event without delete_any")
	}

	if _, err := s.DeleteEvent(ctx, info.ChannelID, authorClaims, ev.Seq); err != nil {
		t.Fatalf("DeleteEvent by original author: %v", err)
	}

	visible, _, err := s.Read(ctx, info.ChannelID, authorClaims, 0, 0, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected deleted event filtered out, got %+v", visible)
	}
}

func TestVerifyOwnerRejectsWrongNamespaceAndMissingChannel(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	info, err := s.Create(ctx, "ns1", "my-channel")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.VerifyOwner(ctx, "ns1", info.ChannelID); err != nil {
		t.Fatalf("VerifyOwner(owner): %v", err)
	}
	if err := s.VerifyOwner(ctx, "ns2", info.ChannelID); err == nil {
		t.Fatal("expected error verifying ownership from a different namespace")
	}
	if err := s.VerifyOwner(ctx, "ns1", "no-such-channel"); err == nil {
		t.Fatal("expected error verifying ownership of a nonexistent channel")
	}
}

func TestTokenCannotBeReplayedAgainstAnotherChannel(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	infoA, err := s.Create(ctx, "ns1", "channel-a")
	if err != nil {
		t.Fatalf("Create channel-a: %v", err)
	}
	infoB, err := s.Create(ctx, "ns1", "channel-b")
	if err != nil {
		t.Fatalf("Create channel-b: %v", err)
	}

	tokenForA, err := s.IssueToken(ctx, infoA.ChannelID, captoken.Read|captoken.Append|captoken.DeleteAny, "author1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	claims, err := s.VerifyToken(ctx, tokenForA)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}

	if _, err := s.Append(ctx, infoB.ChannelID, claims, "should not land in B"); err == nil {
		t.Fatal("expected Append to reject a token scoped to a different channel")
	}
	if _, _, err := s.Read(ctx, infoB.ChannelID, claims, 0, 0, false); err == nil {
		t.Fatal("expected Read to reject a token scoped to a different channel")
	}
	if _, err := s.DeleteEvent(ctx, infoB.ChannelID, claims, 1); err == nil {
		t.Fatal("expected DeleteEvent to reject a token scoped to a different channel")
	}
	if _, err := s.Subscribe(ctx, infoB.ChannelID, claims, 0, time.Millisecond); err == nil {
		t.Fatal("expected Subscribe to reject a token scoped to a different channel")
	}

	if _, err := s.Append(ctx, infoA.ChannelID, claims, "fine"); err != nil {
		t.Fatalf("Append against the token's own channel should succeed: %v", err)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	info, err := s.Create(ctx, "ns1", "my-channel")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	token, err := s.IssueToken(ctx, info.ChannelID, captoken.Read, "author1", -time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := s.VerifyToken(ctx, token); err == nil {
		t.Fatal("expected error verifying an already-expired token")
	}
}
