// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command stagrdb-sim drives synthetic traffic through the parse →
// firewall → buffer → replay pipeline without a live interface or
// database. It uses the static test firewall set, so only traffic to or
// from the 192.168.0.0/24 example hosts passes.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"time"

	"stagrdb.node/internal/buffer"
	"stagrdb.node/internal/firewall"
	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/parser"
	"stagrdb.node/internal/replay"
)

func main() {
	count := flag.Int("count", 10000, "Number of synthetic frames to generate")
	gap := flag.Duration("gap", 100*time.Microsecond, "Inter-arrival gap between synthetic frames")
	paced := flag.Bool("paced", false, "Honor inter-arrival timing during replay instead of replaying flat-out")
	flag.Parse()

	logger := logging.New(logging.Config{Mode: logging.ModeNone})
	fw := firewall.StaticTestSet()
	buf := buffer.New[parser.ParsedPacket]()

	hosts := []netip.Addr{
		netip.MustParseAddr("192.168.0.1"),
		netip.MustParseAddr("192.168.0.30"),
		netip.MustParseAddr("192.168.0.155"),
		netip.MustParseAddr("10.99.0.7"), // never whitelisted
	}

	start := time.Now()
	base := start
	accepted, rejected := 0, 0

	for i := 0; i < *count; i++ {
		src := hosts[i%len(hosts)]
		dst := hosts[(i+1)%len(hosts)]
		ts := base.Add(time.Duration(i) * *gap)

		frame := synthFrame(src, dst, uint16(1024+i%50000), 80)
		pkt, err := parser.Parse(frame, fw.Check, func() time.Time { return ts }, nil)
		if err != nil {
			rejected++
			continue
		}
		buf.Push(pkt)
		accepted++

		if (i+1)%1000 == 0 {
			fmt.Printf("\rProcessed %d frames...", i+1)
		}
	}
	fmt.Printf("\rProcessed %d frames in %v\n", *count, time.Since(start))
	fmt.Printf("accepted=%d rejected=%d buffered=%d\n", accepted, rejected, buf.Len())

	frames := make([]replay.Frame, 0, buf.Len())
	for _, p := range buf.Drain() {
		frames = append(frames, replay.Frame{Timestamp: p.Timestamp, Raw: p.Raw})
	}

	sleep := func(time.Duration) {}
	if *paced {
		sleep = time.Sleep
	}

	replayStart := time.Now()
	sent, err := replay.Send(countingWriter{}, frames, logger, sleep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("replayed %d frames in %v\n", sent, time.Since(replayStart))
}

// countingWriter satisfies replay.Writer without touching a real socket.
type countingWriter struct{}

func (countingWriter) WriteFrame([]byte) error { return nil }

// synthFrame builds a minimal Ethernet + IPv4 + TCP frame: 14-byte
// Ethernet header, 20-byte IPv4 header (IHL=5, protocol=TCP), 20-byte
// TCP header with the SYN flag set.
func synthFrame(src, dst netip.Addr, srcPort, dstPort uint16) []byte {
	frame := make([]byte, 54)

	copy(frame[0:6], []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02})
	copy(frame[6:12], []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01})
	binary.BigEndian.PutUint16(frame[12:14], 0x0800)

	ip := frame[14:34]
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], 40)
	ip[8] = 64
	ip[9] = 6
	s4, d4 := src.As4(), dst.As4()
	copy(ip[12:16], s4[:])
	copy(ip[16:20], d4[:])

	tcp := frame[34:54]
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)
	tcp[12] = 0x50
	tcp[13] = 0x02

	return frame
}
