package storage

import (
	"os"

	"xdao.co/overlay/address"
)

// Record ties an address to the local file holding its content.
//
// The invariant Address == address.FromHash(contents of Path) holds for
// every Record produced by this module.
type Record struct {
	Address address.Address
	Path    string
}

// OpenRecord hashes an existing file and returns its Record.
func OpenRecord(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, IOError("open "+path, err)
	}
	defer f.Close()
	a, err := address.FromReader(f)
	if err != nil {
		return Record{}, IOError("hash "+path, err)
	}
	return Record{Address: a, Path: path}, nil
}

// Verify re-hashes the file and reports ErrContentMismatch if it changed.
func (r Record) Verify() error {
	got, err := OpenRecord(r.Path)
	if err != nil {
		return err
	}
	if got.Address != r.Address {
		return ErrContentMismatch
	}
	return nil
}

func (r Record) String() string {
	return "Record{address=" + r.Address.String() + ", path=" + r.Path + "}"
}
