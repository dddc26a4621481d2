package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Standard IMAP system flags. Flags are free-form names; these are the
// ones every front end understands.
const (
	FlagSeen     = `\Seen`
	FlagAnswered = `\Answered`
	FlagFlagged  = `\Flagged`
	FlagDeleted  = `\Deleted`
	FlagDraft    = `\Draft`
	FlagRecent   = `\Recent`
)

// MessageLocator identifies one message within one mailbox.
//
// (MailboxID, UID) is unique within a mailbox. MessageID is globally unique
// and shared by every mailbox copy of the same logical message. ModSeq is
// the per-mailbox modification sequence at which the locator was issued.
type MessageLocator struct {
	MailboxID string `json:"mailbox_id"`
	MessageID string `json:"message_id"`
	UID       uint32 `json:"uid"`
	ModSeq    uint64 `json:"mod_seq"`
}

// Validate checks that every key component is present.
func (l MessageLocator) Validate() error {
	switch {
	case l.MailboxID == "":
		return fmt.Errorf("%w: empty mailbox id", ErrInvalidArgument)
	case l.MessageID == "":
		return fmt.Errorf("%w: empty message id", ErrInvalidArgument)
	case l.UID == 0:
		return fmt.Errorf("%w: uid must be positive", ErrInvalidArgument)
	}
	return nil
}

// Key returns the row key (mailbox, message, uid). ModSeq is not part of it.
// Ids are length-prefixed, so ids containing the separator cannot collide.
func (l MessageLocator) Key() string {
	return fmt.Sprintf("%d:%s%d:%s/%d", len(l.MailboxID), l.MailboxID, len(l.MessageID), l.MessageID, l.UID)
}

func (l MessageLocator) String() string {
	return fmt.Sprintf("%s:%d(%s)", l.MailboxID, l.UID, l.MessageID)
}

// NewMessageID returns a fresh globally unique message id.
func NewMessageID() string {
	return uuid.New().String()
}

// Flags is a set of message flags. Use NewFlags to build a normalized set.
type Flags []string

// NewFlags returns the sorted, de-duplicated set of the given names.
// Empty names are dropped.
func NewFlags(names ...string) Flags {
	out := make(Flags, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Has reports whether the set contains name.
func (f Flags) Has(name string) bool {
	return slices.Contains(f, name)
}

// Properties holds structural attributes computed once at ingestion and
// stored verbatim.
//
// Absent values are represented by their zero value: a message ingested
// without a textual line count reads back with TextualLineCount == 0.
type Properties struct {
	MediaType        string            `json:"media_type,omitempty" cbor:"1,keyasint,omitempty" bson:"media_type,omitempty"`
	SubType          string            `json:"sub_type,omitempty" cbor:"2,keyasint,omitempty" bson:"sub_type,omitempty"`
	ContentParams    map[string]string `json:"content_params,omitempty" cbor:"3,keyasint,omitempty" bson:"content_params,omitempty"`
	ContentID        string            `json:"content_id,omitempty" cbor:"4,keyasint,omitempty" bson:"content_id,omitempty"`
	TransferEncoding string            `json:"transfer_encoding,omitempty" cbor:"5,keyasint,omitempty" bson:"transfer_encoding,omitempty"`
	TextualLineCount int64             `json:"textual_line_count" cbor:"6,keyasint" bson:"textual_line_count"`
}

// AttachmentRef is a record's reference to one stored attachment.
type AttachmentRef struct {
	ID        BlobID `json:"id" cbor:"1,keyasint" bson:"id"`
	MediaType string `json:"media_type" cbor:"2,keyasint" bson:"media_type"`
	Name      string `json:"name,omitempty" cbor:"3,keyasint,omitempty" bson:"name,omitempty"`
	Size      int64  `json:"size" cbor:"4,keyasint" bson:"size"`
}

// Attachment is an attachment payload supplied at ingestion time. Its id is
// the BlobID of Data.
type Attachment struct {
	MediaType string
	Name      string
	Data      []byte
}

// MessageRecord is the per-message metadata row.
//
// Size and BodyStartOctet always describe the original whole message,
// regardless of how header and body are split into blobs.
type MessageRecord struct {
	MessageLocator

	InternalDate   time.Time
	Size           int64
	BodyStartOctet int64
	Flags          Flags
	Properties     Properties
	HeaderBlobID   BlobID
	BodyBlobID     BlobID
	Attachments    []AttachmentRef
}

// AttachmentIDs returns the normalized set of attachment ids referenced by
// the record.
func (r *MessageRecord) AttachmentIDs() []BlobID {
	ids := make([]BlobID, len(r.Attachments))
	for i, a := range r.Attachments {
		ids[i] = a.ID
	}
	return NormalizeBlobIDs(ids)
}

// HeaderLength is the number of header bytes in the original message.
func (r *MessageRecord) HeaderLength() int64 {
	return r.BodyStartOctet
}

// BodyLength is the number of body bytes in the original message.
func (r *MessageRecord) BodyLength() int64 {
	return r.Size - r.BodyStartOctet
}

// Clone returns a deep copy of the record.
func (r *MessageRecord) Clone() *MessageRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Flags = slices.Clone(r.Flags)
	c.Attachments = slices.Clone(r.Attachments)
	if r.Properties.ContentParams != nil {
		c.Properties.ContentParams = make(map[string]string, len(r.Properties.ContentParams))
		for k, v := range r.Properties.ContentParams {
			c.Properties.ContentParams[k] = v
		}
	}
	return &c
}
