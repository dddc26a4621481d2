package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var (
	idA = BlobID(strings.Repeat("a", BlobIDLength))
	idB = BlobID(strings.Repeat("b", BlobIDLength))
	idC = BlobID(strings.Repeat("c", BlobIDLength))
)

func TestMessageIDAttachmentIDs(t *testing.T) {
	t.Run("rejects empty message id", func(t *testing.T) {
		_, err := NewMessageIDAttachmentIDs("", []BlobID{})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects nil attachment ids", func(t *testing.T) {
		_, err := NewMessageIDAttachmentIDs(NewMessageID(), nil)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("accepts empty set", func(t *testing.T) {
		e, err := NewMessageIDAttachmentIDs("m1", []BlobID{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(e.AttachmentIDs()) != 0 {
			t.Errorf("expected empty set, got %v", e.AttachmentIDs())
		}
	})

	t.Run("equality ignores order and duplicates", func(t *testing.T) {
		a, _ := NewMessageIDAttachmentIDs("m1", []BlobID{idA, idB})
		b, _ := NewMessageIDAttachmentIDs("m1", []BlobID{idB, idA, idB})
		if !a.Equal(b) {
			t.Errorf("expected %v == %v", a, b)
		}
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("cmp mismatch (-a +b):\n%s", diff)
		}
	})

	t.Run("all fields take part in equality", func(t *testing.T) {
		base, _ := NewMessageIDAttachmentIDs("m1", []BlobID{idA})
		otherID, _ := NewMessageIDAttachmentIDs("m2", []BlobID{idA})
		otherSet, _ := NewMessageIDAttachmentIDs("m1", []BlobID{idA, idC})
		if base.Equal(otherID) {
			t.Error("different message ids must not be equal")
		}
		if base.Equal(otherSet) {
			t.Error("different attachment sets must not be equal")
		}
	})

	t.Run("AttachmentIDs returns a copy", func(t *testing.T) {
		e, _ := NewMessageIDAttachmentIDs("m1", []BlobID{idA})
		ids := e.AttachmentIDs()
		ids[0] = idC
		if e.AttachmentIDs()[0] != idA {
			t.Error("mutating the returned slice changed the entry")
		}
	})
}

func TestParseBlobID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid", strings.Repeat("0f", 32), false},
		{"too short", "abc", true},
		{"not hex", strings.Repeat("zz", 32), true},
		{"uppercase", strings.Repeat("AB", 32), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBlobID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBlobID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidID) {
				t.Errorf("expected ErrInvalidID, got %v", err)
			}
		})
	}
}

func TestMessageLocatorValidate(t *testing.T) {
	valid := MessageLocator{MailboxID: "inbox", MessageID: "m1", UID: 1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invalid := []MessageLocator{
		{MessageID: "m1", UID: 1},
		{MailboxID: "inbox", UID: 1},
		{MailboxID: "inbox", MessageID: "m1"},
	}
	for _, loc := range invalid {
		if err := loc.Validate(); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Validate(%+v): expected ErrInvalidArgument, got %v", loc, err)
		}
	}

	withSeq := valid
	withSeq.ModSeq = 42
	if valid.Key() != withSeq.Key() {
		t.Error("ModSeq must not be part of the row key")
	}

	a := MessageLocator{MailboxID: "a/b", MessageID: "c", UID: 1}
	b := MessageLocator{MailboxID: "a", MessageID: "b/c", UID: 1}
	if a.Key() == b.Key() {
		t.Errorf("distinct locators share key %q", a.Key())
	}
}

func TestNewFlags(t *testing.T) {
	got := NewFlags(FlagSeen, " ", FlagFlagged, FlagSeen, "$Label")
	want := Flags{"$Label", FlagFlagged, FlagSeen}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewFlags mismatch (-want +got):\n%s", diff)
	}
	if !got.Has(FlagSeen) || got.Has(FlagDraft) {
		t.Error("Has returned the wrong answer")
	}
}

func TestMessageRecordClone(t *testing.T) {
	rec := &MessageRecord{
		Flags:       NewFlags(FlagSeen),
		Attachments: []AttachmentRef{{ID: idA}},
		Properties:  Properties{ContentParams: map[string]string{"charset": "utf-8"}},
	}
	c := rec.Clone()
	c.Flags[0] = FlagDraft
	c.Attachments[0].ID = idB
	c.Properties.ContentParams["charset"] = "latin1"

	if rec.Flags[0] != FlagSeen || rec.Attachments[0].ID != idA || rec.Properties.ContentParams["charset"] != "utf-8" {
		t.Error("Clone shares state with the original")
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	t.Run("properties", func(t *testing.T) {
		p := Properties{
			MediaType:        "text",
			SubType:          "plain",
			ContentParams:    map[string]string{"charset": "utf-8", "format": "flowed"},
			TextualLineCount: 10,
		}
		data, err := EncodeProperties(p)
		if err != nil {
			t.Fatalf("EncodeProperties: %v", err)
		}
		again, _ := EncodeProperties(p)
		if string(data) != string(again) {
			t.Error("encoding is not deterministic")
		}
		got, err := DecodeProperties(data)
		if err != nil {
			t.Fatalf("DecodeProperties: %v", err)
		}
		if diff := cmp.Diff(p, got); diff != "" {
			t.Errorf("properties mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty properties decode to zero line count", func(t *testing.T) {
		got, err := DecodeProperties(nil)
		if err != nil {
			t.Fatalf("DecodeProperties: %v", err)
		}
		if got.TextualLineCount != 0 {
			t.Errorf("TextualLineCount = %d, want 0", got.TextualLineCount)
		}
	})

	t.Run("blob ids are normalized", func(t *testing.T) {
		data, err := EncodeBlobIDs([]BlobID{idB, idA, idB})
		if err != nil {
			t.Fatalf("EncodeBlobIDs: %v", err)
		}
		got, err := DecodeBlobIDs(data)
		if err != nil {
			t.Fatalf("DecodeBlobIDs: %v", err)
		}
		if diff := cmp.Diff([]BlobID{idA, idB}, got); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("attachment refs", func(t *testing.T) {
		refs := []AttachmentRef{{ID: idA, MediaType: "image/png", Name: "a.png", Size: 12}}
		data, err := EncodeAttachmentRefs(refs)
		if err != nil {
			t.Fatalf("EncodeAttachmentRefs: %v", err)
		}
		got, err := DecodeAttachmentRefs(data)
		if err != nil {
			t.Fatalf("DecodeAttachmentRefs: %v", err)
		}
		if diff := cmp.Diff(refs, got); diff != "" {
			t.Errorf("refs mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestRecordEncoding(t *testing.T) {
	rec := &MessageRecord{
		MessageLocator: MessageLocator{MailboxID: "inbox", MessageID: "m1", UID: 9, ModSeq: 4},
		InternalDate:   time.Date(2024, 3, 1, 12, 0, 0, 123, time.UTC),
		Size:           25,
		BodyStartOctet: 16,
		Flags:          NewFlags(FlagSeen, FlagAnswered),
		Properties:     Properties{MediaType: "text", SubType: "plain", TextualLineCount: 2},
		HeaderBlobID:   idA,
		BodyBlobID:     idB,
		Attachments:    []AttachmentRef{{ID: idC, MediaType: "application/pdf", Size: 3}},
	}
	data, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	got, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	zero, err := EncodeRecord(&MessageRecord{MessageLocator: rec.MessageLocator})
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	back, err := DecodeRecord(zero)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if !back.InternalDate.IsZero() || back.Flags != nil || back.Attachments != nil {
		t.Errorf("zero fields did not round trip: %+v", back)
	}
}
