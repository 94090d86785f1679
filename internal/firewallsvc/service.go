// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewallsvc holds the database-backed Set behind an atomically
// swappable pointer, so a rule reload never blocks concurrent checks and
// a check always observes either the full old set or the full new one.
package firewallsvc

import (
	"context"
	"fmt"
	"net/netip"
	"sync/atomic"

	"stagrdb.node/internal/firewall"
	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/nodeerrors"
	"stagrdb.node/internal/wire"
)

// Loader resolves the firewall rows and effective policy for a node. The
// storage package implements this against Postgres; tests substitute a
// fake.
type Loader interface {
	LoadFirewallRows(ctx context.Context, nodeID int16) ([]Row, firewall.Policy, error)
}

// Row is one firewall rule as read from storage, prior to being turned
// into a firewall.Filter.
type Row struct {
	FilterKind firewall.FilterKind
	MacHex     string
	IP         string
	U16        uint16
	U8         uint8
	Priority   uint8
}

// Service holds the current rule Set and allows it to be reloaded without
// blocking concurrent Check calls.
type Service struct {
	current atomic.Pointer[firewall.Set]
	logger  *logging.Logger
}

// New creates a Service with no rules loaded; Check denies everything
// (closed-on-unknown) until Initialize succeeds.
func New(logger *logging.Logger) *Service {
	return &Service{logger: logger}
}

// Initialize loads the node's firewall rows from storage, builds a Set,
// and swaps it in. It is also used to reload after a configuration
// change.
func (s *Service) Initialize(ctx context.Context, loader Loader, nodeID int16) error {
	rows, policy, err := loader.LoadFirewallRows(ctx, nodeID)
	if err != nil {
		return nodeerrors.Wrapf(err, nodeerrors.KindStorageTransient, "load firewall rows for node %d", nodeID)
	}

	set := firewall.NewSet(policy)
	for _, r := range rows {
		f, err := rowToFilter(r)
		if err != nil {
			return nodeerrors.Wrapf(err, nodeerrors.KindStartupConfig, "invalid firewall row for node %d", nodeID)
		}
		set.AddRule(f, r.Priority)
	}

	s.current.Store(set)
	if s.logger != nil {
		s.logger.Info("firewall rules loaded", "node_id", nodeID, "rule_count", len(rows), "policy", policy.String())
	}
	return nil
}

// Check evaluates pkt against the currently loaded Set. Before
// Initialize has ever succeeded, current is nil and every packet is
// denied (closed-on-unknown).
func (s *Service) Check(pkt firewall.Packet) bool {
	set := s.current.Load()
	if set == nil {
		return false
	}
	return set.Check(pkt)
}

func rowToFilter(r Row) (firewall.Filter, error) {
	switch r.FilterKind {
	case firewall.FilterSrcMac, firewall.FilterDstMac:
		raw, err := parseMacHex(r.MacHex)
		if err != nil {
			return firewall.Filter{}, err
		}
		mac, err := wire.ParseMac(raw)
		if err != nil {
			return firewall.Filter{}, err
		}
		if r.FilterKind == firewall.FilterSrcMac {
			return firewall.SrcMacFilter(mac), nil
		}
		return firewall.DstMacFilter(mac), nil
	case firewall.FilterSrcIP, firewall.FilterDstIP:
		addr, err := netip.ParseAddr(r.IP)
		if err != nil {
			return firewall.Filter{}, fmt.Errorf("parse ip %q: %w", r.IP, err)
		}
		if r.FilterKind == firewall.FilterSrcIP {
			return firewall.SrcIPFilter(addr), nil
		}
		return firewall.DstIPFilter(addr), nil
	case firewall.FilterEtherType, firewall.FilterSrcPort, firewall.FilterDstPort:
		return firewall.Filter{Kind: r.FilterKind, U16: r.U16}, nil
	case firewall.FilterIPProtocol:
		return firewall.Filter{Kind: r.FilterKind, U8: r.U8}, nil
	default:
		return firewall.Filter{}, fmt.Errorf("unsupported filter kind %d", r.FilterKind)
	}
}

// parseMacHex parses a colon-hex MAC string ("aa:bb:cc:dd:ee:ff") into raw
// bytes.
func parseMacHex(s string) ([]byte, error) {
	out := make([]byte, 0, 6)
	var octet [2]byte
	pos := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			continue
		}
		octet[pos] = c
		pos++
		if pos == 2 {
			var b byte
			if _, err := fmt.Sscanf(string(octet[:]), "%02x", &b); err != nil {
				return nil, fmt.Errorf("parse mac %q: %w", s, err)
			}
			out = append(out, b)
			pos = 0
		}
	}
	if len(out) != 6 {
		return nil, fmt.Errorf("parse mac %q: expected 6 octets, got %d", s, len(out))
	}
	return out, nil
}
