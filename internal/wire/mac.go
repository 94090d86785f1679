// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wire holds the raw value types shared by the packet pipeline and
// its storage layer: MAC/IP addresses and the EtherType/IpProtocol code
// tables, each with the exact wire encodings the rest of the system
// depends on.
package wire

import (
	"encoding/hex"
	"fmt"
)

// MacAddress is a 6-byte Ethernet hardware address.
type MacAddress [6]byte

// ErrShortMac is returned when fewer than 6 bytes are available to parse
// a MacAddress from.
var ErrShortMac = fmt.Errorf("wire: mac address requires 6 bytes")

// ParseMac reads a MacAddress from the first 6 bytes of b.
func ParseMac(b []byte) (MacAddress, error) {
	var m MacAddress
	if len(b) < 6 {
		return m, ErrShortMac
	}
	copy(m[:], b[:6])
	return m, nil
}

// Bytes returns the raw 6-byte representation.
func (m MacAddress) Bytes() []byte {
	out := make([]byte, 6)
	copy(out, m[:])
	return out
}

// String renders the address in lowercase colon-hex notation.
func (m MacAddress) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		hex.EncodeToString(m[0:1]),
		hex.EncodeToString(m[1:2]),
		hex.EncodeToString(m[2:3]),
		hex.EncodeToString(m[3:4]),
		hex.EncodeToString(m[4:5]),
		hex.EncodeToString(m[5:6]),
	)
}

// IsBroadcast reports whether m is the all-ones broadcast address.
func (m MacAddress) IsBroadcast() bool {
	for _, b := range m {
		if b != 0xff {
			return false
		}
	}
	return true
}
