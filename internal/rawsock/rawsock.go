// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

// Package rawsock opens a promiscuous AF_PACKET/SOCK_RAW socket bound to
// a single interface, shared by internal/capture (reading) and
// internal/replay (writing). Frames this node sends itself are filtered
// out at the socket layer via the sockaddr_ll PACKET_OUTGOING pkttype,
// which is what keeps replayed traffic from being recaptured.
package rawsock

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

const (
	readTimeout  = time.Second
	bufferBytes  = 64 * 1024
	etherAll     = 0x0003 // ETH_P_ALL, host byte order
	MaxFrameSize = 1500
)

// Socket wraps a single AF_PACKET socket bound to one interface.
type Socket struct {
	fd       int
	ifaceIdx int
	recvBuf  []byte
}

// Open binds a promiscuous raw socket to interfaceName with a 1s receive
// timeout and 64KiB send/receive buffers.
func Open(interfaceName string) (*Socket, error) {
	iface, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return nil, fmt.Errorf("rawsock: interface %s not found: %w", interfaceName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(etherAll)))
	if err != nil {
		return nil, fmt.Errorf("rawsock: socket: %w", err)
	}

	s := &Socket{fd: fd, ifaceIdx: iface.Index, recvBuf: make([]byte, bufferBytes)}

	addr := &unix.SockaddrLinklayer{Protocol: htons(etherAll), Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: bind: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, bufferBytes); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: set recv buffer: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, bufferBytes); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: set send buffer: %w", err)
	}

	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: set recv timeout: %w", err)
	}

	mreq := &unix.PacketMreq{Ifindex: int32(iface.Index), Type: unix.PACKET_MR_PROMISC}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: enable promiscuous mode: %w", err)
	}

	return s, nil
}

// ReadFrame blocks (up to the 1s SO_RCVTIMEO) for the next frame. It
// returns unix.EAGAIN on a read timeout so callers can loop and
// re-check their shutdown signal. Frames that are this node's own
// outgoing traffic (PACKET_OUTGOING) are skipped transparently; they
// never reach the caller.
func (s *Socket) ReadFrame() ([]byte, error) {
	for {
		n, from, err := unix.Recvfrom(s.fd, s.recvBuf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, err
		}
		if n <= 0 {
			continue
		}

		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}

		frame := make([]byte, n)
		copy(frame, s.recvBuf[:n])
		return frame, nil
	}
}

// WriteFrame transmits frame as-is on the bound interface.
func (s *Socket) WriteFrame(frame []byte) error {
	_, err := unix.Write(s.fd, frame)
	return err
}

// Close releases the promiscuous membership and the socket fd.
func (s *Socket) Close() error {
	mreq := &unix.PacketMreq{Ifindex: int32(s.ifaceIdx), Type: unix.PACKET_MR_PROMISC}
	_ = unix.SetsockoptPacketMreq(s.fd, unix.SOL_PACKET, unix.PACKET_DROP_MEMBERSHIP, mreq)
	return unix.Close(s.fd)
}

func htons(i uint16) uint16 {
	return (i<<8)&0xff00 | i>>8
}
