package storage

import (
	"errors"

	"xdao.co/overlay/address"
)

// MultiStore reads through several stores in a fixed order.
//
// Lookup order is the slice order in Stores; callers must supply a fixed
// order so retrieval is deterministic. Put writes only to the first store.
type MultiStore struct {
	Stores []Store
}

var _ Store = MultiStore{}

func (m MultiStore) Put(data []byte) (address.Address, error) {
	if len(m.Stores) == 0 {
		return address.Address{}, errors.New("storage: MultiStore has no stores")
	}
	return m.Stores[0].Put(data)
}

// Get returns the first hit. A non-NotFound error from any store stops the
// search and is returned as is.
func (m MultiStore) Get(addr address.Address) ([]byte, error) {
	for _, s := range m.Stores {
		b, err := s.Get(addr)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiStore) Has(addr address.Address) bool {
	for _, s := range m.Stores {
		if s.Has(addr) {
			return true
		}
	}
	return false
}
