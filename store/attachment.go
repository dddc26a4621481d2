package store

import (
	"encoding/hex"
	"fmt"
	"slices"
)

// BlobIDLength is the length of a hex-encoded BlobID (a 32-byte digest).
const BlobIDLength = 64

// BlobID identifies a content-addressed payload: the lowercase hex digest
// of its uncompressed bytes. Attachment ids are BlobIDs of attachment data.
type BlobID string

// ParseBlobID validates s and returns it as a BlobID.
func ParseBlobID(s string) (BlobID, error) {
	if len(s) != BlobIDLength {
		return "", fmt.Errorf("%w: blob id is %d chars, want %d", ErrInvalidID, len(s), BlobIDLength)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: blob id: %v", ErrInvalidID, err)
	}
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'F' {
			return "", fmt.Errorf("%w: blob id must be lowercase", ErrInvalidID)
		}
	}
	return BlobID(s), nil
}

func (id BlobID) String() string { return string(id) }

// Short returns the first 12 characters, for logs.
func (id BlobID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:12])
}

// NormalizeBlobIDs returns ids sorted with duplicates removed. The input is
// not modified. A nil input yields an empty, non-nil slice.
func NormalizeBlobIDs(ids []BlobID) []BlobID {
	out := slices.Clone(ids)
	if out == nil {
		out = []BlobID{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// MessageIDAttachmentIDs pairs a message id with the set of attachment ids
// it references. It is the element type of an attachment index scan.
//
// Equality is structural: two values are equal iff the message ids match
// and the attachment id sets match, irrespective of order.
type MessageIDAttachmentIDs struct {
	messageID     string
	attachmentIDs []BlobID
}

// NewMessageIDAttachmentIDs builds an index entry. Both fields are
// mandatory: an empty message id or a nil id set fails with
// ErrInvalidArgument. An empty, non-nil set is accepted.
func NewMessageIDAttachmentIDs(messageID string, attachmentIDs []BlobID) (MessageIDAttachmentIDs, error) {
	if messageID == "" {
		return MessageIDAttachmentIDs{}, fmt.Errorf("%w: message id is required", ErrInvalidArgument)
	}
	if attachmentIDs == nil {
		return MessageIDAttachmentIDs{}, fmt.Errorf("%w: attachment ids are required", ErrInvalidArgument)
	}
	return MessageIDAttachmentIDs{
		messageID:     messageID,
		attachmentIDs: NormalizeBlobIDs(attachmentIDs),
	}, nil
}

// MessageID returns the message id.
func (m MessageIDAttachmentIDs) MessageID() string { return m.messageID }

// AttachmentIDs returns a sorted copy of the attachment id set.
func (m MessageIDAttachmentIDs) AttachmentIDs() []BlobID {
	return slices.Clone(m.attachmentIDs)
}

// Equal reports structural equality.
func (m MessageIDAttachmentIDs) Equal(other MessageIDAttachmentIDs) bool {
	return m.messageID == other.messageID && slices.Equal(m.attachmentIDs, other.attachmentIDs)
}

func (m MessageIDAttachmentIDs) String() string {
	return fmt.Sprintf("%s%v", m.messageID, m.attachmentIDs)
}
