package rpc

import (
	"net/netip"

	"xdao.co/overlay/address"
	"xdao.co/overlay/model"
)

// Builder accumulates message fields and builds any variant from them.
//
// Build calls read the current fields without resetting them, so one
// builder can produce a Lookup, a Ping and a Put for the same peer. A
// Builder is not safe for concurrent use.
type Builder struct {
	destination    address.Address
	hasDestination bool

	sourceIP   string
	hasIP      bool
	sourcePort int
	hasPort    bool

	value    []byte
	hasValue bool
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) SetDestination(a address.Address) *Builder {
	b.destination = a
	b.hasDestination = true
	return b
}

// SetSourceIP records the source IP text. It is parsed at build time.
func (b *Builder) SetSourceIP(ip string) *Builder {
	b.sourceIP = ip
	b.hasIP = true
	return b
}

func (b *Builder) SetSourceAddr(ip netip.Addr) *Builder {
	if !ip.IsValid() {
		return b.SetSourceIP("")
	}
	return b.SetSourceIP(ip.String())
}

// SetSourcePort records the source port. It is range checked at build time.
func (b *Builder) SetSourcePort(port int) *Builder {
	b.sourcePort = port
	b.hasPort = true
	return b
}

func (b *Builder) SetSource(l address.Locator) *Builder {
	return b.SetSourceAddr(l.IP).SetSourcePort(int(l.Port))
}

// SetValue records the Put payload. The slice is copied; an empty slice is
// a valid value.
func (b *Builder) SetValue(v []byte) *Builder {
	b.value = append(make([]byte, 0, len(v)), v...)
	b.hasValue = true
	return b
}

func (b *Builder) BuildPing() (Ping, error) {
	h, err := b.header(KindPing)
	if err != nil {
		return Ping{}, err
	}
	return Ping{Header: h}, nil
}

func (b *Builder) BuildLookup() (Lookup, error) {
	h, err := b.header(KindLookup)
	if err != nil {
		return Lookup{}, err
	}
	return Lookup{Header: h}, nil
}

func (b *Builder) BuildPut() (Put, error) {
	h, err := b.header(KindPut)
	if err != nil {
		return Put{}, err
	}
	if !b.hasValue {
		return Put{}, incomplete(KindPut, "value")
	}
	return Put{Header: h, Value: append(make([]byte, 0, len(b.value)), b.value...)}, nil
}

// Build dispatches to the build method for kind.
func (b *Builder) Build(kind Kind) (Message, error) {
	var (
		m   Message
		err error
	)
	switch kind {
	case KindPing:
		m, err = b.BuildPing()
	case KindLookup:
		m, err = b.BuildLookup()
	case KindPut:
		m, err = b.BuildPut()
	default:
		return nil, model.Errorf(model.ErrIncompleteMessage, "rpc: unknown message kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (b *Builder) header(kind Kind) (Header, error) {
	if !b.hasIP {
		return Header{}, incomplete(kind, "source ip")
	}
	if !b.hasPort {
		return Header{}, incomplete(kind, "source port")
	}
	if !b.hasDestination {
		return Header{}, incomplete(kind, "destination")
	}
	src, err := address.NewLocator(b.sourceIP, b.sourcePort)
	if err != nil {
		return Header{}, err
	}
	return Header{Source: src, Destination: b.destination}, nil
}
