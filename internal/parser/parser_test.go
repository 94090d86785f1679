// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package parser

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stagrdb.node/internal/firewall"
)

func allowAll(firewall.Packet) bool { return true }
func denyAll(firewall.Packet) bool  { return false }

// buildIPv4TCPFrame constructs a minimal Ethernet+IPv4+TCP-shaped frame
// good enough to exercise the parser's offsets.
func buildIPv4TCPFrame(srcIP, dstIP [4]byte, srcPort, dstPort uint16) []byte {
	frame := make([]byte, 14+20+20)
	// dst/src mac already zero, ethertype:
	binary.BigEndian.PutUint16(frame[12:14], 0x0800)

	ip := frame[14:]
	ip[0] = 0x45 // version 4, IHL 5
	ip[9] = 6    // TCP
	copy(ip[12:16], srcIP[:])
	copy(ip[16:20], dstIP[:])

	tcp := ip[20:]
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)

	return frame
}

func TestParseTooShortRejected(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3}, allowAll, nil, nil)
	var re *RejectError
	assert.ErrorAs(t, err, &re)
}

func TestParseAcceptsValidIPv4TCP(t *testing.T) {
	frame := buildIPv4TCPFrame([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1234, 80)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pkt, err := Parse(frame, allowAll, func() time.Time { return fixed }, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1234), pkt.SrcPort)
	assert.Equal(t, int32(80), pkt.DstPort)
	assert.Equal(t, fixed, pkt.Timestamp)
	assert.Equal(t, "10.0.0.1", pkt.SrcIP.String())
}

func TestParseRejectsWhenFirewallDenies(t *testing.T) {
	frame := buildIPv4TCPFrame([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1234, 80)
	_, err := Parse(frame, denyAll, nil, nil)
	assert.Error(t, err)
}

func TestParseRejectsIPv6AfterFirewallCheck(t *testing.T) {
	frame := make([]byte, 14+40+20)
	binary.BigEndian.PutUint16(frame[12:14], 0x86DD)
	frame[14] = 0x60 // version 6
	_, err := Parse(frame, allowAll, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ipv6")
}

func TestParseUnknownEtherTypePassesThroughWithZeroAddrs(t *testing.T) {
	frame := make([]byte, 14+20)
	binary.BigEndian.PutUint16(frame[12:14], 0x0806) // ARP
	pkt, err := Parse(frame, allowAll, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", pkt.SrcIP.String())
	assert.Equal(t, "0.0.0.0", pkt.DstIP.String())
}

func TestParseInvalidIPVersionRejected(t *testing.T) {
	frame := make([]byte, 14+20)
	binary.BigEndian.PutUint16(frame[12:14], 0x0800)
	frame[14] = 0x50 // version 5: invalid
	_, err := Parse(frame, allowAll, nil, nil)
	assert.Error(t, err)
}
