// Package content splits raw message bytes into header and body regions and
// reassembles them.
//
// A message is stored as two blobs: the header region, bytes
// [0, bodyStart), and the body region, bytes [bodyStart, size). The split
// point is the offset of the first body byte and is recorded alongside the
// message so that readers can address either region, or the whole message,
// with the original byte offsets.
//
// # Round Trip
//
// For every buffer x and every offset o with 0 <= o <= len(x):
//
//	header, body, _ := content.Split(x, o)
//	bytes.Equal(content.Join(header, body), x) // always true
//
// All functions are pure: they never modify their inputs and hold no state.
package content

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/rbaliyan/mailstore/store"
)

// Sentinel errors.
var (
	// ErrInvalidOffset is returned when a body start offset lies outside the
	// message. It wraps store.ErrInvalidArgument.
	ErrInvalidOffset = fmt.Errorf("content: %w: body start offset out of range", store.ErrInvalidArgument)

	// ErrOutOfRange is returned by Region.ReadAt for offsets before the
	// region start.
	ErrOutOfRange = errors.New("content: offset before region start")
)

// Split returns the header region raw[:bodyStart] and the body region
// raw[bodyStart:]. The returned slices share memory with raw.
func Split(raw []byte, bodyStart int64) (header, body []byte, err error) {
	if bodyStart < 0 || bodyStart > int64(len(raw)) {
		return nil, nil, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidOffset, bodyStart, len(raw))
	}
	return raw[:bodyStart], raw[bodyStart:], nil
}

// Join concatenates header and body into a newly allocated buffer.
func Join(header, body []byte) []byte {
	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	return append(out, body...)
}

// FindBodyStart returns the offset of the first body byte: the byte after
// the first empty line (CRLF CRLF or LF LF). When the message has no empty
// line it is all header and len(raw) is returned.
func FindBodyStart(raw []byte) int64 {
	// A message that starts with an empty line has no header fields.
	if bytes.HasPrefix(raw, []byte("\r\n")) {
		return 2
	}
	if bytes.HasPrefix(raw, []byte("\n")) {
		return 1
	}

	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))
	switch {
	case crlf < 0 && lf < 0:
		return int64(len(raw))
	case lf < 0 || (crlf >= 0 && crlf < lf):
		return int64(crlf + 4)
	default:
		return int64(lf + 2)
	}
}

// CountLines returns the number of text lines in body. A final line
// without a terminating newline still counts; an empty body has no lines.
func CountLines(body []byte) int64 {
	if len(body) == 0 {
		return 0
	}
	n := int64(bytes.Count(body, []byte("\n")))
	if body[len(body)-1] != '\n' {
		n++
	}
	return n
}
