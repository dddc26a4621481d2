// Package storetest provides behavioral tests shared by every substrate
// backend. Backend packages call the Run* functions from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/mailstore/store"
)

// ID returns a deterministic, valid BlobID derived from n.
func ID(n int) store.BlobID {
	s := fmt.Sprintf("%x", n)
	return store.BlobID(strings.Repeat("0", store.BlobIDLength-len(s)) + s)
}

// RunRecords exercises a store.RecordStore.
func RunRecords(t *testing.T, rs store.RecordStore) {
	t.Helper()
	ctx := context.Background()

	loc := store.MessageLocator{MailboxID: "inbox-" + store.NewMessageID(), MessageID: store.NewMessageID(), UID: 7, ModSeq: 3}
	rec := &store.MessageRecord{
		MessageLocator: loc,
		InternalDate:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Size:           25,
		BodyStartOctet: 16,
		Flags:          store.NewFlags(store.FlagSeen),
		Properties: store.Properties{
			MediaType:     "text",
			SubType:       "plain",
			ContentParams: map[string]string{"charset": "utf-8"},
		},
		HeaderBlobID: ID(1),
		BodyBlobID:   ID(2),
		Attachments:  []store.AttachmentRef{{ID: ID(3), MediaType: "image/png", Name: "a.png", Size: 10}},
	}

	t.Run("get absent", func(t *testing.T) {
		_, err := rs.GetRecord(ctx, loc)
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		if err := rs.PutRecord(ctx, rec); err != nil {
			t.Fatalf("PutRecord: %v", err)
		}
		got, err := rs.GetRecord(ctx, loc)
		if err != nil {
			t.Fatalf("GetRecord: %v", err)
		}
		if diff := cmp.Diff(rec, got); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("put is idempotent", func(t *testing.T) {
		if err := rs.PutRecord(ctx, rec); err != nil {
			t.Fatalf("PutRecord: %v", err)
		}
		got, err := rs.GetRecord(ctx, loc)
		if err != nil {
			t.Fatalf("GetRecord: %v", err)
		}
		if diff := cmp.Diff(rec, got); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("put replaces whole row", func(t *testing.T) {
		replacement := &store.MessageRecord{
			MessageLocator: loc,
			InternalDate:   rec.InternalDate,
			Size:           5,
			HeaderBlobID:   ID(4),
			BodyBlobID:     ID(5),
		}
		if err := rs.PutRecord(ctx, replacement); err != nil {
			t.Fatalf("PutRecord: %v", err)
		}
		got, err := rs.GetRecord(ctx, loc)
		if err != nil {
			t.Fatalf("GetRecord: %v", err)
		}
		if len(got.Attachments) != 0 || len(got.Flags) != 0 || got.Size != 5 {
			t.Errorf("stale fields survived replacement: %+v", got)
		}
		if got.Properties.TextualLineCount != 0 {
			t.Errorf("TextualLineCount = %d, want 0", got.Properties.TextualLineCount)
		}
	})

	t.Run("uid is part of the key", func(t *testing.T) {
		other := loc
		other.UID = loc.UID + 1
		if _, err := rs.GetRecord(ctx, other); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound for other uid, got %v", err)
		}
	})

	t.Run("ids containing separators do not collide", func(t *testing.T) {
		base := "mbx-" + store.NewMessageID()
		a := store.MessageLocator{MailboxID: base + "/x", MessageID: "y", UID: 1}
		b := store.MessageLocator{MailboxID: base, MessageID: "x/y", UID: 1}
		for i, l := range []store.MessageLocator{a, b} {
			r := &store.MessageRecord{MessageLocator: l, InternalDate: rec.InternalDate, Size: int64(10 + i), HeaderBlobID: ID(6), BodyBlobID: ID(7)}
			if err := rs.PutRecord(ctx, r); err != nil {
				t.Fatalf("PutRecord(%s): %v", l, err)
			}
		}
		for i, l := range []store.MessageLocator{a, b} {
			got, err := rs.GetRecord(ctx, l)
			if err != nil {
				t.Fatalf("GetRecord(%s): %v", l, err)
			}
			if got.MessageLocator != l || got.Size != int64(10+i) {
				t.Errorf("GetRecord(%s) returned %s size %d", l, got.MessageLocator, got.Size)
			}
		}
		for _, l := range []store.MessageLocator{a, b} {
			if err := rs.DeleteRecord(ctx, l); err != nil {
				t.Fatalf("DeleteRecord(%s): %v", l, err)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := rs.DeleteRecord(ctx, loc); err != nil {
			t.Fatalf("DeleteRecord: %v", err)
		}
		if _, err := rs.GetRecord(ctx, loc); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := rs.DeleteRecord(ctx, loc); err != nil {
			t.Errorf("deleting an absent record: %v", err)
		}
	})

	t.Run("invalid locator", func(t *testing.T) {
		if _, err := rs.GetRecord(ctx, store.MessageLocator{}); !errors.Is(err, store.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

// RunAttachmentIndex exercises a store.AttachmentIndex. The index must be
// empty when the test starts.
func RunAttachmentIndex(t *testing.T, idx store.AttachmentIndex) {
	t.Helper()
	ctx := context.Background()

	t.Run("get absent is empty", func(t *testing.T) {
		ids, err := idx.GetAttachmentIDs(ctx, "absent")
		if err != nil {
			t.Fatalf("GetAttachmentIDs: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected no ids, got %v", ids)
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		if err := idx.PutAttachmentIDs(ctx, "m-replace", []store.BlobID{ID(1), ID(2)}); err != nil {
			t.Fatalf("PutAttachmentIDs: %v", err)
		}
		if err := idx.PutAttachmentIDs(ctx, "m-replace", []store.BlobID{ID(3), ID(2), ID(3)}); err != nil {
			t.Fatalf("PutAttachmentIDs: %v", err)
		}
		got, err := idx.GetAttachmentIDs(ctx, "m-replace")
		if err != nil {
			t.Fatalf("GetAttachmentIDs: %v", err)
		}
		if diff := cmp.Diff([]store.BlobID{ID(2), ID(3)}, got); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
		if err := idx.DeleteAttachmentIDs(ctx, "m-replace"); err != nil {
			t.Fatalf("DeleteAttachmentIDs: %v", err)
		}
	})

	t.Run("empty set removes entry", func(t *testing.T) {
		if err := idx.PutAttachmentIDs(ctx, "m-empty", []store.BlobID{ID(1)}); err != nil {
			t.Fatalf("PutAttachmentIDs: %v", err)
		}
		if err := idx.PutAttachmentIDs(ctx, "m-empty", nil); err != nil {
			t.Fatalf("PutAttachmentIDs: %v", err)
		}
		got, err := idx.GetAttachmentIDs(ctx, "m-empty")
		if err != nil {
			t.Fatalf("GetAttachmentIDs: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected entry removed, got %v", got)
		}
	})

	t.Run("scan visits every non-empty entry once", func(t *testing.T) {
		want := make(map[string][]store.BlobID)
		for i := 0; i < 23; i++ {
			id := fmt.Sprintf("scan-%02d", i)
			ids := []store.BlobID{ID(100 + i), ID(200 + i)}
			if err := idx.PutAttachmentIDs(ctx, id, ids); err != nil {
				t.Fatalf("PutAttachmentIDs: %v", err)
			}
			want[id] = store.NormalizeBlobIDs(ids)
		}
		if err := idx.PutAttachmentIDs(ctx, "scan-none", []store.BlobID{}); err != nil {
			t.Fatalf("PutAttachmentIDs: %v", err)
		}

		got := make(map[string][]store.BlobID)
		cursor := ""
		for pages := 0; ; pages++ {
			if pages > 100 {
				t.Fatal("scan did not terminate")
			}
			page, next, err := idx.ScanAttachmentIDs(ctx, cursor, 5)
			if err != nil {
				t.Fatalf("ScanAttachmentIDs: %v", err)
			}
			for _, e := range page {
				if _, dup := got[e.MessageID()]; dup {
					t.Errorf("message %s returned twice", e.MessageID())
				}
				got[e.MessageID()] = e.AttachmentIDs()
			}
			if next == "" {
				break
			}
			cursor = next
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("scan mismatch (-want +got):\n%s", diff)
		}

		for id := range want {
			if err := idx.DeleteAttachmentIDs(ctx, id); err != nil {
				t.Fatalf("DeleteAttachmentIDs: %v", err)
			}
		}
	})

	t.Run("delete absent", func(t *testing.T) {
		if err := idx.DeleteAttachmentIDs(ctx, "absent"); err != nil {
			t.Errorf("DeleteAttachmentIDs: %v", err)
		}
	})
}

// RunBlobBackend exercises a store.BlobBackend.
func RunBlobBackend(t *testing.T, b store.BlobBackend) {
	t.Helper()
	ctx := context.Background()
	id := ID(0xb10b)

	t.Run("get absent", func(t *testing.T) {
		if _, err := b.GetBlob(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		ok, err := b.HasBlob(ctx, id)
		if err != nil || ok {
			t.Fatalf("HasBlob = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		if err := b.PutBlob(ctx, id, []byte("payload")); err != nil {
			t.Fatalf("PutBlob: %v", err)
		}
		got, err := b.GetBlob(ctx, id)
		if err != nil {
			t.Fatalf("GetBlob: %v", err)
		}
		if string(got) != "payload" {
			t.Errorf("got %q", got)
		}
		ok, err := b.HasBlob(ctx, id)
		if err != nil || !ok {
			t.Errorf("HasBlob = %v, %v; want true, nil", ok, err)
		}
	})

	t.Run("second put keeps first payload", func(t *testing.T) {
		if err := b.PutBlob(ctx, id, []byte("payload")); err != nil {
			t.Fatalf("PutBlob: %v", err)
		}
		got, err := b.GetBlob(ctx, id)
		if err != nil {
			t.Fatalf("GetBlob: %v", err)
		}
		if string(got) != "payload" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		empty := ID(0xe)
		if err := b.PutBlob(ctx, empty, []byte{}); err != nil {
			t.Fatalf("PutBlob: %v", err)
		}
		got, err := b.GetBlob(ctx, empty)
		if err != nil {
			t.Fatalf("GetBlob: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %q", got)
		}
	})
}
