package cached

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rbaliyan/mailstore/store"
	"github.com/rbaliyan/mailstore/store/memory"
	"github.com/rbaliyan/mailstore/store/storetest"
)

func newCached(t *testing.T, opts ...Option) (*Store, *memory.Store) {
	t.Helper()
	backend := memory.New()
	if err := backend.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	opts = append([]Option{WithCacheDir(t.TempDir())}, opts...)
	s, err := New(backend, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, backend
}

func TestBlobBackendContract(t *testing.T) {
	s, _ := newCached(t)
	storetest.RunBlobBackend(t, s)
}

func TestGetBlobServesFromCache(t *testing.T) {
	ctx := context.Background()
	s, backend := newCached(t)
	id := storetest.ID(1)
	payload := []byte("cached payload")

	if err := s.PutBlob(ctx, id, payload); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if _, err := s.GetBlob(ctx, id); err != nil {
		t.Fatalf("first GetBlob: %v", err)
	}
	if s.Size() != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", s.Size(), len(payload))
	}

	backend.DropBlob(id)

	got, err := s.GetBlob(ctx, id)
	if err != nil {
		t.Fatalf("cached GetBlob: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("GetBlob = %q, want %q", got, payload)
	}
	ok, err := s.HasBlob(ctx, id)
	if err != nil || !ok {
		t.Errorf("HasBlob = %v, %v; want true", ok, err)
	}

	s.Evict(id)
	if _, err := s.GetBlob(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetBlob after Evict = %v, want ErrNotFound", err)
	}
	if s.Size() != 0 {
		t.Errorf("Size after Evict = %d", s.Size())
	}
}

func TestMaxSize(t *testing.T) {
	ctx := context.Background()
	s, backend := newCached(t, WithMaxSize(4))
	id := storetest.ID(2)

	if err := s.PutBlob(ctx, id, []byte("too large")); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if _, err := s.GetBlob(ctx, id); err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if s.Size() != 0 {
		t.Errorf("Size = %d, want 0", s.Size())
	}

	backend.DropBlob(id)
	if _, err := s.GetBlob(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetBlob = %v, want ErrNotFound", err)
	}
}

func TestExpiredEntry(t *testing.T) {
	ctx := context.Background()
	s, backend := newCached(t, WithTTL(time.Hour))
	id := storetest.ID(3)

	if err := s.PutBlob(ctx, id, []byte("old")); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if _, err := s.GetBlob(ctx, id); err != nil {
		t.Fatalf("GetBlob: %v", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(s.cachePath(id), past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	backend.DropBlob(id)

	if _, err := s.GetBlob(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetBlob on expired entry = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(s.cachePath(id)); !os.IsNotExist(err) {
		t.Errorf("expired entry still on disk: %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	s, _ := newCached(t, WithTTL(time.Hour))
	for i := range 3 {
		id := storetest.ID(10 + i)
		if err := s.PutBlob(ctx, id, []byte("x")); err != nil {
			t.Fatalf("PutBlob: %v", err)
		}
		if _, err := s.GetBlob(ctx, id); err != nil {
			t.Fatalf("GetBlob: %v", err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(s.cachePath(storetest.ID(10)), past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	s.cleanupExpired()
	if s.Size() != 2 {
		t.Errorf("Size = %d, want 2", s.Size())
	}

	if err := s.ClearCache(); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if s.Size() != 0 {
		t.Errorf("Size after ClearCache = %d", s.Size())
	}
}

func TestReopenCountsExistingFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend := memory.New()
	if err := backend.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	first, err := New(backend, WithCacheDir(dir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id := storetest.ID(4)
	if err := first.PutBlob(ctx, id, []byte("12345")); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if _, err := first.GetBlob(ctx, id); err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	first.Close()

	second, err := New(backend, WithCacheDir(dir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer second.Close()
	if second.Size() != 5 {
		t.Errorf("Size = %d, want 5", second.Size())
	}
}
