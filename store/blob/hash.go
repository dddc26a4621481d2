package blob

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/rbaliyan/mailstore/store"
)

// domainKey keys the BLAKE3 hash so blob ids never collide with digests
// computed for other purposes over the same bytes. Changing it invalidates
// every stored id.
var domainKey = [32]byte{
	'm', 'a', 'i', 'l', 's', 't', 'o', 'r', 'e', '.', 'b', 'l', 'o', 'b',
}

// ID returns the content address of data: the lowercase hex keyed BLAKE3
// digest of the uncompressed bytes.
func ID(data []byte) store.BlobID {
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		// Only returned for a key of the wrong length.
		panic("blob: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return store.BlobID(hex.EncodeToString(hasher.Sum(nil)))
}
