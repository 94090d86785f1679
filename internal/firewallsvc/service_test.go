// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewallsvc

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stagrdb.node/internal/firewall"
)

type fakeLoader struct {
	rows   []Row
	policy firewall.Policy
	err    error
}

func (f fakeLoader) LoadFirewallRows(ctx context.Context, nodeID int16) ([]Row, firewall.Policy, error) {
	return f.rows, f.policy, f.err
}

func TestDeniesBeforeInitialize(t *testing.T) {
	svc := New(nil)
	pkt := firewall.NewPacket([6]byte{}, [6]byte{}, 0x0800,
		netip.MustParseAddr("1.2.3.4"), netip.MustParseAddr("5.6.7.8"), 6, 1, 2)
	assert.False(t, svc.Check(pkt))
}

func TestInitializeLoadsRulesAndEvaluates(t *testing.T) {
	svc := New(nil)
	loader := fakeLoader{
		policy: firewall.Whitelist,
		rows: []Row{
			{FilterKind: firewall.FilterDstIP, IP: "192.168.0.1", Priority: 10},
		},
	}
	require.NoError(t, svc.Initialize(context.Background(), loader, 1))

	allowed := firewall.NewPacket([6]byte{}, [6]byte{}, 0x0800,
		netip.MustParseAddr("1.2.3.4"), netip.MustParseAddr("192.168.0.1"), 6, 1, 2)
	denied := firewall.NewPacket([6]byte{}, [6]byte{}, 0x0800,
		netip.MustParseAddr("1.2.3.4"), netip.MustParseAddr("8.8.8.8"), 6, 1, 2)

	assert.True(t, svc.Check(allowed))
	assert.False(t, svc.Check(denied))
}

func TestInitializePropagatesLoaderError(t *testing.T) {
	svc := New(nil)
	loader := fakeLoader{err: assertErr{}}
	err := svc.Initialize(context.Background(), loader, 1)
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "load failed" }
