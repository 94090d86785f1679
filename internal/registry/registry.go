// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package registry performs the node's startup validation-and-record
// step: confirm the configured node ID is known to the control plane,
// then record its boot-time interface, MAC, and IP state.
package registry

import (
	"context"

	"stagrdb.node/internal/iface"
	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/storage"
	"stagrdb.node/internal/wire"
)

// Recorder is the subset of *storage.Store the registry needs.
type Recorder interface {
	EnsureNode(ctx context.Context, nodeID int16) (string, error)
	RecordActivity(ctx context.Context, a storage.NodeActivity) error
}

// ValidateAndRecord confirms nodeID is registered, then records its
// boot-time activity against the selected interface. It returns the
// node's configured name. A missing or unparsable interface MAC
// degrades to the zero MacAddress and a missing IP set degrades to
// "0.0.0.0/0"; startup never fails over cosmetic activity-log fields.
func ValidateAndRecord(ctx context.Context, store Recorder, nodeID int16, interfaceName string, logger *logging.Logger) (string, error) {
	name, err := store.EnsureNode(ctx, nodeID)
	if err != nil {
		return "", err
	}
	if logger != nil {
		logger.Info("node validated", "node_id", nodeID, "name", name)
	}

	macStr, ips, err := iface.Addresses(interfaceName)
	var mac wire.MacAddress
	if err != nil {
		if logger != nil {
			logger.Warn("could not read interface addresses, recording zero MAC and no IPs", "interface", interfaceName, "error", err.Error())
		}
	} else if macStr != "" {
		if parsed, perr := wire.ParseMac(hardwareAddrBytes(macStr)); perr == nil {
			mac = parsed
		} else if logger != nil {
			logger.Warn("interface MAC address did not parse, recording zero MAC", "interface", interfaceName, "mac", macStr)
		}
	} else if logger != nil {
		logger.Warn("selected interface has no MAC address", "interface", interfaceName)
	}

	if len(ips) == 0 && logger != nil {
		logger.Warn("selected interface has no IP addresses", "interface", interfaceName)
	}

	if err := store.RecordActivity(ctx, storage.NodeActivity{
		NodeID:        nodeID,
		InterfaceName: interfaceName,
		MacAddress:    mac,
		IPAddresses:   ips,
	}); err != nil {
		return "", err
	}

	if logger != nil {
		logger.Info("recorded node boot activity", "node_id", nodeID, "interface", interfaceName, "mac", mac.String(), "ip_count", len(ips))
	}
	return name, nil
}

func hardwareAddrBytes(s string) []byte {
	b := make([]byte, 0, 6)
	cur := byte(0)
	nibbles := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			continue
		}
		cur = cur<<4 | v
		nibbles++
		if nibbles == 2 {
			b = append(b, cur)
			cur, nibbles = 0, 0
		}
	}
	return b
}
