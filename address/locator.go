package address

import (
	"net/netip"
	"strconv"

	"xdao.co/overlay/model"
)

const maxPort = 65535

// Locator is the network address of a peer: an IP and a port.
//
// IPv4-mapped IPv6 addresses are stored unmapped, so a Locator built from
// "::ffff:127.0.0.1" equals one built from "127.0.0.1".
type Locator struct {
	IP   netip.Addr
	Port uint16
}

// NewLocator parses ip and validates port.
func NewLocator(ip string, port int) (Locator, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Locator{}, model.WrapError(model.ErrInvalidAddress, "invalid ip "+strconv.Quote(ip), err)
	}
	return LocatorFrom(addr, port)
}

// LocatorFrom validates an already parsed IP and a port.
func LocatorFrom(ip netip.Addr, port int) (Locator, error) {
	if !ip.IsValid() {
		return Locator{}, model.NewError(model.ErrInvalidAddress, "missing ip")
	}
	if port < 0 || port > maxPort {
		return Locator{}, model.Errorf(model.ErrInvalidAddress, "port %d out of range 0-%d", port, maxPort)
	}
	// Zones are not part of the locator identity.
	return Locator{IP: ip.Unmap().WithZone(""), Port: uint16(port)}, nil
}

// ParseLocator parses "ip:port" (IPv6 in brackets).
func ParseLocator(s string) (Locator, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Locator{}, model.WrapError(model.ErrInvalidAddress, "invalid locator "+strconv.Quote(s), err)
	}
	return LocatorFrom(ap.Addr(), int(ap.Port()))
}

// Loopback returns 127.0.0.1:port.
func Loopback(port int) (Locator, error) {
	return LocatorFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), port)
}

func (l Locator) AddrPort() netip.AddrPort { return netip.AddrPortFrom(l.IP, l.Port) }

func (l Locator) String() string { return l.AddrPort().String() }

func (l Locator) IsValid() bool { return l.IP.IsValid() }
