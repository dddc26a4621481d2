package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Row backends that persist structured columns as opaque bytes (postgres,
// redis) encode them with deterministic CBOR: sorted map keys, smallest
// integer encoding, no indefinite-length items. The same logical value
// always produces identical bytes, which keeps full-row replacement
// idempotent at the byte level.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeProperties encodes p for storage.
func EncodeProperties(p Properties) ([]byte, error) {
	data, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	return data, nil
}

// DecodeProperties decodes bytes written by EncodeProperties. Empty input
// decodes to zero-valued Properties.
func DecodeProperties(data []byte) (Properties, error) {
	var p Properties
	if len(data) == 0 {
		return p, nil
	}
	if err := decMode.Unmarshal(data, &p); err != nil {
		return Properties{}, fmt.Errorf("decode properties: %w", err)
	}
	return p, nil
}

// EncodeAttachmentRefs encodes a record's attachment references.
func EncodeAttachmentRefs(refs []AttachmentRef) ([]byte, error) {
	if refs == nil {
		refs = []AttachmentRef{}
	}
	data, err := encMode.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("encode attachment refs: %w", err)
	}
	return data, nil
}

// DecodeAttachmentRefs decodes bytes written by EncodeAttachmentRefs.
func DecodeAttachmentRefs(data []byte) ([]AttachmentRef, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var refs []AttachmentRef
	if err := decMode.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("decode attachment refs: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return refs, nil
}

// EncodeBlobIDs encodes an attachment id set. The set is normalized first.
func EncodeBlobIDs(ids []BlobID) ([]byte, error) {
	data, err := encMode.Marshal(NormalizeBlobIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("encode blob ids: %w", err)
	}
	return data, nil
}

// DecodeBlobIDs decodes bytes written by EncodeBlobIDs.
func DecodeBlobIDs(data []byte) ([]BlobID, error) {
	var ids []BlobID
	if len(data) > 0 {
		if err := decMode.Unmarshal(data, &ids); err != nil {
			return nil, fmt.Errorf("decode blob ids: %w", err)
		}
	}
	return NormalizeBlobIDs(ids), nil
}

// recordWire is the CBOR layout of a MessageRecord. InternalDate is stored
// as Unix nanoseconds, zero for the zero time.
type recordWire struct {
	MailboxID      string          `cbor:"1,keyasint"`
	MessageID      string          `cbor:"2,keyasint"`
	UID            uint32          `cbor:"3,keyasint"`
	ModSeq         uint64          `cbor:"4,keyasint,omitempty"`
	InternalDate   int64           `cbor:"5,keyasint,omitempty"`
	Size           int64           `cbor:"6,keyasint"`
	BodyStartOctet int64           `cbor:"7,keyasint"`
	Flags          []string        `cbor:"8,keyasint,omitempty"`
	Properties     Properties      `cbor:"9,keyasint"`
	HeaderBlobID   BlobID          `cbor:"10,keyasint"`
	BodyBlobID     BlobID          `cbor:"11,keyasint"`
	Attachments    []AttachmentRef `cbor:"12,keyasint,omitempty"`
}

// EncodeRecord encodes a whole record for key/value backends.
func EncodeRecord(rec *MessageRecord) ([]byte, error) {
	w := recordWire{
		MailboxID:      rec.MailboxID,
		MessageID:      rec.MessageID,
		UID:            rec.UID,
		ModSeq:         rec.ModSeq,
		Size:           rec.Size,
		BodyStartOctet: rec.BodyStartOctet,
		Flags:          rec.Flags,
		Properties:     rec.Properties,
		HeaderBlobID:   rec.HeaderBlobID,
		BodyBlobID:     rec.BodyBlobID,
		Attachments:    rec.Attachments,
	}
	if !rec.InternalDate.IsZero() {
		w.InternalDate = rec.InternalDate.UnixNano()
	}
	data, err := encMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord decodes bytes written by EncodeRecord.
func DecodeRecord(data []byte) (*MessageRecord, error) {
	var w recordWire
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec := &MessageRecord{
		MessageLocator: MessageLocator{
			MailboxID: w.MailboxID,
			MessageID: w.MessageID,
			UID:       w.UID,
			ModSeq:    w.ModSeq,
		},
		Size:           w.Size,
		BodyStartOctet: w.BodyStartOctet,
		Properties:     w.Properties,
		HeaderBlobID:   w.HeaderBlobID,
		BodyBlobID:     w.BodyBlobID,
	}
	if w.InternalDate != 0 {
		rec.InternalDate = time.Unix(0, w.InternalDate).UTC()
	}
	if len(w.Flags) > 0 {
		rec.Flags = Flags(w.Flags)
	}
	if len(w.Attachments) > 0 {
		rec.Attachments = w.Attachments
	}
	return rec, nil
}
