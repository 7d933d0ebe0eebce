// Package rpc defines the overlay's RPC messages, a builder for them and
// their JSON wire form.
//
// A Message is one of Ping, Lookup or Put. The set is closed: the
// unexported isMessage method keeps other packages from adding variants,
// and every switch over Kind in this package must handle all three.
package rpc

import (
	"bytes"

	"xdao.co/overlay/address"
)

// Kind is the wire discriminator of a message.
type Kind string

const (
	KindPing   Kind = "ping"
	KindLookup Kind = "lookup"
	KindPut    Kind = "put"
)

// Kinds lists every message kind in wire order.
var Kinds = []Kind{KindPing, KindLookup, KindPut}

func (k Kind) Valid() bool {
	switch k {
	case KindPing, KindLookup, KindPut:
		return true
	default:
		return false
	}
}

// Header carries the fields common to every message.
type Header struct {
	Source      address.Locator
	Destination address.Address
}

// Head returns the common fields; it is promoted into every variant.
func (h Header) Head() Header { return h }

// Message is implemented by Ping, Lookup and Put only.
type Message interface {
	Kind() Kind
	Head() Header
	isMessage()
}

// Ping is a liveness check addressed to Destination.
type Ping struct{ Header }

// Lookup asks for the nodes or content nearest to Destination.
type Lookup struct{ Header }

// Put asks the receiver to store Value at or near Destination. Destination
// is not required to equal the hash of Value.
type Put struct {
	Header
	Value []byte
}

func (Ping) Kind() Kind   { return KindPing }
func (Lookup) Kind() Kind { return KindLookup }
func (Put) Kind() Kind    { return KindPut }

func (Ping) isMessage()   {}
func (Lookup) isMessage() {}
func (Put) isMessage()    {}

// Equal reports whether a and b are the same variant with equal fields.
// A nil Value and an empty Value compare equal.
func Equal(a, b Message) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.Head() != b.Head() {
		return false
	}
	switch x := a.(type) {
	case Ping, Lookup:
		return true
	case Put:
		y, ok := b.(Put)
		return ok && bytes.Equal(x.Value, y.Value)
	default:
		return false
	}
}
