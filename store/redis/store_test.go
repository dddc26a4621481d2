package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rbaliyan/mailstore/store"
	"github.com/rbaliyan/mailstore/store/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := New(client)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s, mr
}

func TestRecords(t *testing.T) {
	s, _ := newTestStore(t)
	storetest.RunRecords(t, s)
}

func TestAttachmentIndex(t *testing.T) {
	s, _ := newTestStore(t)
	storetest.RunAttachmentIndex(t, s)
}

func TestBlobBackend(t *testing.T) {
	s, _ := newTestStore(t)
	storetest.RunBlobBackend(t, s)
}

func TestKeyLayout(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	if err := s.PutAttachmentIDs(ctx, "m1", []store.BlobID{storetest.ID(1)}); err != nil {
		t.Fatalf("PutAttachmentIDs: %v", err)
	}
	if !mr.Exists(DefaultPrefix + "idx:m1") {
		t.Error("index entry key missing")
	}
	members, err := mr.ZMembers(DefaultPrefix + "idx")
	if err != nil || len(members) != 1 || members[0] != "m1" {
		t.Errorf("idx members = %v, %v", members, err)
	}

	if err := s.PutAttachmentIDs(ctx, "m1", nil); err != nil {
		t.Fatalf("PutAttachmentIDs: %v", err)
	}
	if mr.Exists(DefaultPrefix + "idx:m1") {
		t.Error("empty set left the entry behind")
	}
}

func TestServerDown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.Close()

	if _, err := s.GetBlob(ctx, storetest.ID(1)); err == nil || errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected a transport error, got %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	s := New(client)
	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("expected Connect to fail")
	}
	if err := s.Connect(context.Background()); errors.Is(err, store.ErrAlreadyConnected) {
		t.Error("a failed Connect must not leave the store connected")
	}
}
