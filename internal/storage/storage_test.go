// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"stagrdb.node/internal/firewall"
)

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, firewall.Blacklist, parsePolicy("Blacklist"))
	assert.Equal(t, firewall.Whitelist, parsePolicy("whitelist"))
	assert.Equal(t, firewall.Whitelist, parsePolicy("unknown-policy"))
}

func TestParseFilterRuleIPAndPort(t *testing.T) {
	row, ok := parseFilterRule("SrcIpAddress", "192.168.0.1", 50)
	assert.True(t, ok)
	assert.Equal(t, firewall.FilterSrcIP, row.FilterKind)
	assert.Equal(t, "192.168.0.1", row.IP)

	row, ok = parseFilterRule("DstPort", "8080", 10)
	assert.True(t, ok)
	assert.Equal(t, uint16(8080), row.U16)
}

func TestParseFilterRuleEtherTypeHex(t *testing.T) {
	row, ok := parseFilterRule("EtherType", "0x0800", 1)
	assert.True(t, ok)
	assert.Equal(t, uint16(0x0800), row.U16)
}

func TestParseFilterRuleEtherTypeDecimal(t *testing.T) {
	row, ok := parseFilterRule("EtherType", "2048", 1)
	assert.True(t, ok)
	assert.Equal(t, uint16(2048), row.U16)
}

func TestParseFilterRuleInvalidReturnsNotOK(t *testing.T) {
	_, ok := parseFilterRule("SrcPort", "not-a-number", 1)
	assert.False(t, ok)
}

func TestParseFilterRuleUnknownType(t *testing.T) {
	_, ok := parseFilterRule("Bogus", "x", 1)
	assert.False(t, ok)
}

func TestNormalizeMac(t *testing.T) {
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", normalizeMac("aa-bb-cc-dd-ee-ff"))
}
