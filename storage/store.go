// Package storage defines the content-addressable store contract and
// combinators over it. Backends live in subpackages (localfs, grpcstore).
package storage

import (
	"io"

	"xdao.co/overlay/address"
)

// Store is a content-addressable store.
//
// Contract:
//   - Put derives the address from the bytes (address.FromHash) and is idempotent:
//     storing bytes that are already present succeeds and changes nothing.
//   - Stored objects are immutable.
//   - Get returns ErrNotFound when the address is absent and never returns
//     bytes that do not hash to the requested address.
type Store interface {
	Put(data []byte) (address.Address, error)
	Get(addr address.Address) ([]byte, error)
	Has(addr address.Address) bool
}

// Streamer is implemented by stores that can move content without holding
// it in memory. Large values should go through Streamer rather than Get.
type Streamer interface {
	// PutReader stores everything read from r.
	PutReader(r io.Reader) (address.Address, error)
	// Open returns a reader over the stored bytes. The reader reports
	// ErrContentMismatch at EOF if the bytes do not hash to addr.
	Open(addr address.Address) (io.ReadCloser, error)
}
