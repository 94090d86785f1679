// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall implements the in-process accept/deny decision over a
// parsed packet's L2/L3/L4 fields. It never touches the kernel packet
// path; it is consulted once per captured frame by internal/firewallsvc.
package firewall

import (
	"net/netip"
	"sort"

	"stagrdb.node/internal/wire"
)

// Policy selects the default disposition of a Set.
type Policy int

const (
	// Whitelist denies by default; a packet is allowed only if some rule
	// matches it.
	Whitelist Policy = iota
	// Blacklist allows by default; a packet is denied if any rule
	// matches it.
	Blacklist
)

func (p Policy) String() string {
	if p == Blacklist {
		return "blacklist"
	}
	return "whitelist"
}

// FilterKind discriminates the equality test a Filter performs.
type FilterKind int

const (
	FilterSrcMac FilterKind = iota
	FilterDstMac
	FilterEtherType
	FilterSrcIP
	FilterDstIP
	FilterIPProtocol
	FilterSrcPort
	FilterDstPort
)

// Filter is a single L2/L3/L4 equality test. Exactly one of the typed
// fields is meaningful, selected by Kind.
type Filter struct {
	Kind FilterKind
	Mac  wire.MacAddress
	IP   netip.Addr
	U16  uint16 // EtherType / SrcPort / DstPort
	U8   uint8  // IpProtocol
}

func SrcMacFilter(m wire.MacAddress) Filter { return Filter{Kind: FilterSrcMac, Mac: m} }
func DstMacFilter(m wire.MacAddress) Filter { return Filter{Kind: FilterDstMac, Mac: m} }
func EtherTypeFilter(t uint16) Filter       { return Filter{Kind: FilterEtherType, U16: t} }
func SrcIPFilter(a netip.Addr) Filter       { return Filter{Kind: FilterSrcIP, IP: a} }
func DstIPFilter(a netip.Addr) Filter       { return Filter{Kind: FilterDstIP, IP: a} }
func IPProtocolFilter(p uint8) Filter       { return Filter{Kind: FilterIPProtocol, U8: p} }
func SrcPortFilter(port uint16) Filter      { return Filter{Kind: FilterSrcPort, U16: port} }
func DstPortFilter(port uint16) Filter      { return Filter{Kind: FilterDstPort, U16: port} }

// Packet carries the fields a Filter is matched against. It is derived
// from a parsed frame by internal/parser, independent of that package's
// storage-oriented ParsedPacket type.
type Packet struct {
	SrcMac     wire.MacAddress
	DstMac     wire.MacAddress
	EtherType  wire.EtherType
	SrcIP      netip.Addr
	DstIP      netip.Addr
	IPVersion  uint8
	IPProtocol wire.IpProtocol
	SrcPort    uint16
	DstPort    uint16
}

// NewPacket builds a Packet, deriving IPVersion from SrcIP's family
// (an IPv4 source implies version 4, otherwise 6).
func NewPacket(srcMac, dstMac wire.MacAddress, etherType wire.EtherType, srcIP, dstIP netip.Addr, proto wire.IpProtocol, srcPort, dstPort uint16) Packet {
	version := uint8(6)
	if srcIP.Is4() || srcIP.Is4In6() {
		version = 4
	}
	return Packet{
		SrcMac: srcMac, DstMac: dstMac, EtherType: etherType,
		SrcIP: srcIP, DstIP: dstIP, IPVersion: version,
		IPProtocol: proto, SrcPort: srcPort, DstPort: dstPort,
	}
}

func (f Filter) matches(p Packet) bool {
	switch f.Kind {
	case FilterSrcMac:
		return f.Mac == p.SrcMac
	case FilterDstMac:
		return f.Mac == p.DstMac
	case FilterEtherType:
		return f.U16 == uint16(p.EtherType)
	case FilterSrcIP:
		return f.IP == p.SrcIP
	case FilterDstIP:
		return f.IP == p.DstIP
	case FilterIPProtocol:
		return f.U8 == uint8(p.IPProtocol)
	case FilterSrcPort:
		return f.U16 == p.SrcPort
	case FilterDstPort:
		return f.U16 == p.DstPort
	default:
		return false
	}
}

type rule struct {
	filter   Filter
	priority uint8
}

// Set is an immutable, priority-ordered collection of rules under a single
// Policy. Build one with NewSet/AddRule and never mutate it afterward;
// internal/firewallsvc swaps Sets atomically rather than editing one in
// place.
type Set struct {
	policy Policy
	rules  []rule
}

// NewSet creates an empty rule Set under the given Policy.
func NewSet(policy Policy) *Set {
	return &Set{policy: policy}
}

// AddRule appends a rule. Rules are kept sorted by descending priority
// with a stable sort, so rules of equal priority stay in insertion order
// and Check meets them in that order.
func (s *Set) AddRule(f Filter, priority uint8) {
	s.rules = append(s.rules, rule{filter: f, priority: priority})
	sort.SliceStable(s.rules, func(i, j int) bool {
		return s.rules[i].priority > s.rules[j].priority
	})
}

// Policy returns the Set's default disposition.
func (s *Set) Policy() Policy {
	return s.policy
}

// Check reports whether p is allowed through. The walk is
// strict-greater-than on priority: once a rule has matched, a later rule
// is only consulted if its priority is strictly greater than the highest
// matched priority, so ties resolve in favor of whichever same-priority
// rule is encountered first in the (sorted) rule list. A rule of priority
// 0 still counts as a match.
func (s *Set) Check(p Packet) bool {
	var block, allow, matched bool
	var maxPriority uint8

	for _, r := range s.rules {
		if !matched || r.priority > maxPriority {
			if r.filter.matches(p) {
				matched = true
				maxPriority = r.priority
				switch s.policy {
				case Whitelist:
					allow = true
				case Blacklist:
					block = true
				}
			}
		}
	}

	switch s.policy {
	case Blacklist:
		return !block
	default:
		return allow
	}
}

// StaticTestSet returns a fixed whitelist over three example LAN hosts,
// used only by tests and the cmd/stagrdb-sim demo tool. The production
// path always loads a Set from storage (internal/firewallsvc.Initialize).
func StaticTestSet() *Set {
	s := NewSet(Whitelist)
	s.AddRule(DstIPFilter(netip.MustParseAddr("192.168.0.1")), 100)
	s.AddRule(SrcIPFilter(netip.MustParseAddr("192.168.0.1")), 99)
	s.AddRule(DstIPFilter(netip.MustParseAddr("192.168.0.30")), 98)
	s.AddRule(SrcIPFilter(netip.MustParseAddr("192.168.0.30")), 97)
	s.AddRule(DstIPFilter(netip.MustParseAddr("192.168.0.155")), 96)
	s.AddRule(SrcIPFilter(netip.MustParseAddr("192.168.0.155")), 95)
	return s
}
