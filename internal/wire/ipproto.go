// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

// IpProtocol is the 8-bit IP protocol number from the IPv4 "Protocol" /
// IPv6 "Next Header" field, widened to a signed 32-bit integer for
// storage in an INTEGER column.
type IpProtocol uint8

const (
	IpProtocolICMP   IpProtocol = 1
	IpProtocolTCP    IpProtocol = 6
	IpProtocolUDP    IpProtocol = 17
	IpProtocolDNS    IpProtocol = 53
	IpProtocolDHCP   IpProtocol = 67
	IpProtocolICMPv6 IpProtocol = 58
)

// AsI32 widens the protocol number for storage in an INTEGER column.
func (p IpProtocol) AsI32() int32 {
	return int32(p)
}

func (p IpProtocol) String() string {
	switch p {
	case IpProtocolICMP:
		return "ICMP"
	case IpProtocolTCP:
		return "TCP"
	case IpProtocolUDP:
		return "UDP"
	case IpProtocolDNS:
		return "DNS"
	case IpProtocolDHCP:
		return "DHCP"
	case IpProtocolICMPv6:
		return "ICMPv6"
	default:
		return "Unknown"
	}
}
