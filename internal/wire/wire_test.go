// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacRoundTrip(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	m, err := ParseMac(raw)
	require.NoError(t, err)
	assert.Equal(t, "de:ad:be:ef:00:01", m.String())
	assert.Equal(t, raw, m.Bytes())
	assert.False(t, m.IsBroadcast())
}

func TestMacTooShort(t *testing.T) {
	_, err := ParseMac([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortMac)
}

func TestMacBroadcast(t *testing.T) {
	m, err := ParseMac([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	assert.True(t, m.IsBroadcast())
}

func TestInetRoundTripV4(t *testing.T) {
	addr := NewIpAddress(netip.MustParseAddr("192.168.1.10"))
	enc := EncodeInet(addr)
	require.Len(t, enc, 8)
	assert.Equal(t, byte(pgAfInet), enc[0])
	assert.Equal(t, byte(32), enc[1])
	assert.Equal(t, byte(1), enc[2])
	assert.Equal(t, byte(4), enc[3])

	dec, err := DecodeInet(enc)
	require.NoError(t, err)
	assert.Equal(t, addr.String(), dec.String())
	assert.False(t, dec.IsV6())
}

func TestInetRoundTripV6(t *testing.T) {
	addr := NewIpAddress(netip.MustParseAddr("2001:db8::1"))
	enc := EncodeInet(addr)
	require.Len(t, enc, 20)
	assert.Equal(t, byte(pgAfInet6), enc[0])
	assert.Equal(t, byte(128), enc[1])

	dec, err := DecodeInet(enc)
	require.NoError(t, err)
	assert.Equal(t, addr.String(), dec.String())
	assert.True(t, dec.IsV6())
}

func TestDecodeInetTruncated(t *testing.T) {
	_, err := DecodeInet([]byte{pgAfInet, 32, 1, 4, 1, 2})
	assert.Error(t, err)
}

func TestEtherTypeWidening(t *testing.T) {
	assert.Equal(t, int32(0x0800), EtherTypeIPv4.AsI32())
	assert.Equal(t, "IPv6", EtherTypeIPv6.String())
}

func TestIpProtocolWidening(t *testing.T) {
	assert.Equal(t, int32(6), IpProtocolTCP.AsI32())
	assert.Equal(t, "UDP", IpProtocolUDP.String())
}
