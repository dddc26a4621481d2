package mailstore

import (
	"github.com/dustin/go-humanize"

	"github.com/rbaliyan/mailstore/store"
)

// SizeOf returns the size of the whole message described by rec. The size
// is absent (false) when the record carries no positive size.
func SizeOf(rec *store.MessageRecord) (int64, bool) {
	if rec == nil || rec.Size <= 0 {
		return 0, false
	}
	return rec.Size, true
}

// HumanSize renders the size of rec for notifications, such as "42 B" or
// "1.2 MB". It returns "" when the size is absent.
func HumanSize(rec *store.MessageRecord) string {
	size, ok := SizeOf(rec)
	if !ok {
		return ""
	}
	return humanize.Bytes(uint64(size))
}
