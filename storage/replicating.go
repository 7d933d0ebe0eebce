package storage

import (
	"fmt"

	"xdao.co/overlay/address"
)

// NamedStore associates a Store with a stable backend name.
type NamedStore struct {
	Name  string
	Store Store
}

// ReplicatingStore writes to every backend and reads from the first that
// has the content.
//
// Every backend must report the address computed locally from the bytes;
// otherwise Put fails with ErrContentMismatch.
type ReplicatingStore struct {
	Backends []NamedStore
}

var _ Store = ReplicatingStore{}

// PutAll writes data to all backends and returns the address each reported.
func (r ReplicatingStore) PutAll(data []byte) (address.Address, map[string]address.Address, error) {
	want := address.FromHash(data)
	if len(r.Backends) == 0 {
		return address.Address{}, nil, fmt.Errorf("storage: ReplicatingStore has no backends")
	}

	out := make(map[string]address.Address, len(r.Backends))
	for _, b := range r.Backends {
		if b.Store == nil {
			return address.Address{}, nil, fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
		got, err := b.Store.Put(data)
		if err != nil {
			return address.Address{}, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if got != want {
			return address.Address{}, out, ErrContentMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingStore) Put(data []byte) (address.Address, error) {
	a, _, err := r.PutAll(data)
	return a, err
}

func (r ReplicatingStore) Get(addr address.Address) ([]byte, error) {
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		out, err := b.Store.Get(addr)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r ReplicatingStore) Has(addr address.Address) bool {
	for _, b := range r.Backends {
		if b.Store != nil && b.Store.Has(addr) {
			return true
		}
	}
	return false
}
