// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"fmt"
	"net/netip"
)

// Postgres inet/cidr binary wire families, per src/backend/utils/adt/network.c.
const (
	pgAfInet  = 2
	pgAfInet6 = 3
)

// IpAddress is an IPv4 or IPv6 host address, carried on the wire using the
// same binary layout Postgres uses for its inet type: family byte, prefix
// length byte, is_cidr byte, address length byte, then the raw address
// octets (4 for IPv4, 16 for IPv6).
type IpAddress struct {
	addr netip.Addr
}

// NewIpAddress wraps a netip.Addr as an IpAddress.
func NewIpAddress(a netip.Addr) IpAddress {
	return IpAddress{addr: a}
}

// Addr returns the underlying netip.Addr.
func (i IpAddress) Addr() netip.Addr {
	return i.addr
}

// IsV6 reports whether the address is IPv6.
func (i IpAddress) IsV6() bool {
	return i.addr.Is6() && !i.addr.Is4In6()
}

// String renders the address in its usual textual form.
func (i IpAddress) String() string {
	return i.addr.String()
}

// EncodeInet renders i using Postgres's binary inet wire format:
// family(1) + prefix(1) + is_cidr(1) + length(1) + octets(4 or 16).
func EncodeInet(i IpAddress) []byte {
	a := i.addr
	if a.Is4In6() {
		a = a.Unmap()
	}

	var family byte
	var prefix byte
	var octets []byte
	if a.Is4() {
		family = pgAfInet
		prefix = 32
		b := a.As4()
		octets = b[:]
	} else {
		family = pgAfInet6
		prefix = 128
		b := a.As16()
		octets = b[:]
	}

	out := make([]byte, 4+len(octets))
	out[0] = family
	out[1] = prefix
	out[2] = 1 // is_cidr
	out[3] = byte(len(octets))
	copy(out[4:], octets)
	return out
}

// DecodeInet parses Postgres's binary inet wire format back into an
// IpAddress.
func DecodeInet(b []byte) (IpAddress, error) {
	if len(b) < 4 {
		return IpAddress{}, fmt.Errorf("wire: inet payload too short: %d bytes", len(b))
	}
	family := b[0]
	length := int(b[3])
	octets := b[4:]
	if len(octets) < length {
		return IpAddress{}, fmt.Errorf("wire: inet payload truncated: want %d octets, have %d", length, len(octets))
	}
	octets = octets[:length]

	switch family {
	case pgAfInet:
		if length != 4 {
			return IpAddress{}, fmt.Errorf("wire: inet v4 length must be 4, got %d", length)
		}
		var a4 [4]byte
		copy(a4[:], octets)
		return IpAddress{addr: netip.AddrFrom4(a4)}, nil
	case pgAfInet6:
		if length != 16 {
			return IpAddress{}, fmt.Errorf("wire: inet v6 length must be 16, got %d", length)
		}
		var a16 [16]byte
		copy(a16[:], octets)
		return IpAddress{addr: netip.AddrFrom16(a16)}, nil
	default:
		return IpAddress{}, fmt.Errorf("wire: unknown inet family byte %d", family)
	}
}
