package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/mailstore/store"
	"github.com/rbaliyan/mailstore/store/storetest"
)

func newConnected(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func TestRecords(t *testing.T) {
	storetest.RunRecords(t, newConnected(t))
}

func TestAttachmentIndex(t *testing.T) {
	storetest.RunAttachmentIndex(t, newConnected(t))
}

func TestBlobBackend(t *testing.T) {
	storetest.RunBlobBackend(t, newConnected(t))
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetBlob(ctx, storetest.ID(1)); !errors.Is(err, store.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected before Connect, got %v", err)
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Connect(ctx); !errors.Is(err, store.ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.PutAttachmentIDs(ctx, "m", []store.BlobID{storetest.ID(1)}); !errors.Is(err, store.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after Close, got %v", err)
	}
}

func TestBlobWritesCountsPhysicalWrites(t *testing.T) {
	ctx := context.Background()
	s := newConnected(t)

	for i := 0; i < 3; i++ {
		if err := s.PutBlob(ctx, storetest.ID(1), []byte("x")); err != nil {
			t.Fatalf("PutBlob: %v", err)
		}
	}
	if got := s.BlobWrites(); got != 1 {
		t.Errorf("BlobWrites = %d, want 1", got)
	}

	s.DropBlob(storetest.ID(1))
	if ok, _ := s.HasBlob(ctx, storetest.ID(1)); ok {
		t.Error("DropBlob left the payload in place")
	}
}
