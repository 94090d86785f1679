// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package parser decodes a captured Ethernet frame into a ParsedPacket,
// rejecting anything too short or structurally invalid before it ever
// reaches the firewall.
package parser

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"stagrdb.node/internal/firewall"
	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/wire"
)

// ParsedPacket is the fully decoded record handed to the firewall and,
// if accepted, the packet buffer for eventual storage.
type ParsedPacket struct {
	SrcMac     wire.MacAddress
	DstMac     wire.MacAddress
	EtherType  wire.EtherType
	SrcIP      netip.Addr
	DstIP      netip.Addr
	IPProtocol wire.IpProtocol
	SrcPort    int32
	DstPort    int32
	Timestamp  time.Time
	Raw        []byte
}

// RejectError explains why Parse declined a frame. It is never fatal to
// the capture loop; the frame is simply dropped.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return e.Reason }

func reject(format string, args ...any) error {
	return &RejectError{Reason: fmt.Sprintf(format, args...)}
}

const (
	ethernetHeaderLen = 14
	minIPv4HeaderLen  = 20
	ipv6HeaderLen     = 40
	minTransportLen   = 14
)

// Parse decodes frame, an Ethernet frame as handed back by the raw
// capture socket, into a ParsedPacket. IPv6 frames parse successfully
// (so the firewall still sees them) but are rejected at the very end;
// the IPv6 guard runs after the firewall check and applies regardless
// of the firewall's disposition. A TCP checksum mismatch is logged to
// logger (if non-nil) and never affects the outcome.
func Parse(frame []byte, checker func(firewall.Packet) bool, now func() time.Time, logger *logging.Logger) (ParsedPacket, error) {
	if len(frame) < ethernetHeaderLen+minIPv4HeaderLen {
		return ParsedPacket{}, reject("frame too short: %d bytes", len(frame))
	}

	dstMac, err := wire.ParseMac(frame[0:6])
	if err != nil {
		return ParsedPacket{}, reject("ethernet header: %v", err)
	}
	srcMac, err := wire.ParseMac(frame[6:12])
	if err != nil {
		return ParsedPacket{}, reject("ethernet header: %v", err)
	}
	etherType := wire.EtherType(binary.BigEndian.Uint16(frame[12:14]))

	ipData := frame[ethernetHeaderLen:]

	var srcIP, dstIP netip.Addr
	var proto wire.IpProtocol
	var srcPort, dstPort uint16
	var isV6 bool

	switch etherType {
	case wire.EtherTypeIPv4, wire.EtherTypeIPv6:
		var transportData []byte
		srcIP, dstIP, proto, transportData, isV6, err = parseIPHeader(ipData)
		if err != nil {
			return ParsedPacket{}, err
		}
		if th, err := parseTransportHeader(transportData); err == nil {
			srcPort, dstPort = th.srcPort, th.dstPort
			if !isV6 && proto == wire.IpProtocolTCP && len(transportData) >= 18 {
				if !verifyTCPChecksum(transportData, srcIP, dstIP) && logger != nil {
					logger.Debug("tcp checksum mismatch",
						"src", srcIP.String(), "dst", dstIP.String(),
						"src_port", srcPort, "dst_port", dstPort)
				}
			}
		}
	default:
		srcIP = netip.IPv4Unspecified()
		dstIP = netip.IPv4Unspecified()
		proto = 0
	}

	pkt := firewall.NewPacket(srcMac, dstMac, etherType, srcIP, dstIP, proto, srcPort, dstPort)
	if checker != nil && !checker(pkt) {
		return ParsedPacket{}, reject("denied by firewall: %s -> %s", srcIP, dstIP)
	}

	if etherType == wire.EtherTypeIPv6 {
		return ParsedPacket{}, reject("ipv6 not yet supported for storage")
	}

	ts := time.Now()
	if now != nil {
		ts = now()
	}

	return ParsedPacket{
		SrcMac: srcMac, DstMac: dstMac, EtherType: etherType,
		SrcIP: srcIP, DstIP: dstIP, IPProtocol: proto,
		SrcPort: int32(srcPort), DstPort: int32(dstPort),
		Timestamp: ts, Raw: append([]byte(nil), frame...),
	}, nil
}

// parseIPHeader decodes the IPv4 or IPv6 header at the start of data,
// returning the addresses, protocol, and the slice beginning at the
// transport header.
func parseIPHeader(data []byte) (src, dst netip.Addr, proto wire.IpProtocol, transportData []byte, isV6 bool, err error) {
	if len(data) < 1 {
		return src, dst, proto, nil, false, reject("ip header missing")
	}
	version := (data[0] >> 4) & 0xF

	switch version {
	case 4:
		if len(data) < minIPv4HeaderLen {
			return src, dst, proto, nil, false, reject("ipv4 header too short: %d bytes", len(data))
		}
		ihl := int(data[0]&0xF) * 4
		if len(data) < ihl {
			return src, dst, proto, nil, false, reject("ipv4 declared header length %d exceeds packet length %d", ihl, len(data))
		}
		proto = wire.IpProtocol(data[9])
		src = netip.AddrFrom4([4]byte{data[12], data[13], data[14], data[15]})
		dst = netip.AddrFrom4([4]byte{data[16], data[17], data[18], data[19]})
		return src, dst, proto, data[ihl:], false, nil

	case 6:
		if len(data) < ipv6HeaderLen {
			return src, dst, proto, nil, false, reject("ipv6 header too short: %d bytes", len(data))
		}
		proto = wire.IpProtocol(data[6])
		var srcB, dstB [16]byte
		copy(srcB[:], data[8:24])
		copy(dstB[:], data[24:40])
		src = netip.AddrFrom16(srcB)
		dst = netip.AddrFrom16(dstB)
		return src, dst, proto, data[ipv6HeaderLen:], true, nil

	default:
		return src, dst, proto, nil, false, reject("invalid ip version %d", version)
	}
}

type transportHeader struct {
	srcPort, dstPort uint16
	flags            uint8
}

// parseTransportHeader reads the first 14 bytes of the transport segment
// (ports + flags byte), regardless of whether the underlying protocol is
// actually TCP; the same offsets are extracted for any protocol, and
// Parse keeps the ports it reads for every protocol, ICMP included.
func parseTransportHeader(data []byte) (transportHeader, error) {
	if len(data) < minTransportLen {
		return transportHeader{}, reject("transport header too short: %d bytes", len(data))
	}
	return transportHeader{
		srcPort: binary.BigEndian.Uint16(data[0:2]),
		dstPort: binary.BigEndian.Uint16(data[2:4]),
		flags:   data[13],
	}, nil
}

// verifyTCPChecksum recomputes the TCP pseudo-header checksum and reports
// whether it matches the segment's checksum field; Parse logs a mismatch
// and never lets it affect accept/reject disposition (Design Note:
// checksum failures are diagnostic only).
func verifyTCPChecksum(transportData []byte, srcIP, dstIP netip.Addr) bool {
	if len(transportData) < 18 || !srcIP.Is4() {
		return false
	}
	packetChecksum := binary.BigEndian.Uint16(transportData[16:18])

	pseudoHeader := make([]byte, 0, 12)
	src4 := srcIP.As4()
	dst4 := dstIP.As4()
	pseudoHeader = append(pseudoHeader, src4[:]...)
	pseudoHeader = append(pseudoHeader, dst4[:]...)
	pseudoHeader = append(pseudoHeader, 0, uint8(wire.IpProtocolTCP))
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(transportData)))
	pseudoHeader = append(pseudoHeader, lenBuf...)

	segment := append([]byte(nil), transportData...)
	segment[16] = 0
	segment[17] = 0

	sum := checksumSum(pseudoHeader) + checksumSum(segment)
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	calculated := uint16(^sum)
	return calculated == packetChecksum
}

func checksumSum(data []byte) uint32 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	return sum
}
