package content

import (
	"bytes"
	"io"
)

// Region is a contiguous slice of a message addressed by whole-message
// offsets. A body region starts at the message's body start offset, a
// header region or a full message starts at zero.
//
// Reading through Reader yields exactly Data. ReadAt interprets its offset
// relative to the start of the original message, so a consumer that
// tracks octets of the whole message can read a body region without any
// header bytes being present.
type Region struct {
	Start int64
	Data  []byte
}

var _ io.ReaderAt = Region{}

// Len returns the number of bytes in the region.
func (r Region) Len() int64 { return int64(len(r.Data)) }

// End returns the whole-message offset one past the last byte.
func (r Region) End() int64 { return r.Start + int64(len(r.Data)) }

// Reader returns a reader over the region bytes.
func (r Region) Reader() *bytes.Reader { return bytes.NewReader(r.Data) }

// ReadAt reads len(p) bytes starting at whole-message offset off.
// Offsets before Start fail with ErrOutOfRange; reads past End return
// io.EOF as usual.
func (r Region) ReadAt(p []byte, off int64) (int, error) {
	if off < r.Start {
		return 0, ErrOutOfRange
	}
	rel := off - r.Start
	if rel >= int64(len(r.Data)) {
		return 0, io.EOF
	}
	n := copy(p, r.Data[rel:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
