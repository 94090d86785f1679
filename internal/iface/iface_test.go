// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package iface

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstInterfaceOrSkip(t *testing.T) string {
	t.Helper()
	ifaces, err := net.Interfaces()
	require.NoError(t, err)
	if len(ifaces) == 0 {
		t.Skip("no network interfaces available in this environment")
	}
	return ifaces[0].Name
}

func TestSelectDockerModeFindsMatch(t *testing.T) {
	name := firstInterfaceOrSkip(t)
	out := &bytes.Buffer{}
	got, err := Select(true, name, strings.NewReader(""), out, nil)
	require.NoError(t, err)
	assert.Equal(t, name, got)
}

func TestSelectDockerModeMissingInterfaceErrors(t *testing.T) {
	out := &bytes.Buffer{}
	_, err := Select(true, "definitely-not-a-real-interface-xyz", strings.NewReader(""), out, nil)
	assert.Error(t, err)
}

func TestSelectInteractivePicksByIndex(t *testing.T) {
	firstInterfaceOrSkip(t)
	out := &bytes.Buffer{}
	got, err := Select(false, "", strings.NewReader("1\n"), out, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Contains(t, out.String(), "available network interfaces")
}

func TestSelectInteractiveOutOfRangeErrors(t *testing.T) {
	firstInterfaceOrSkip(t)
	out := &bytes.Buffer{}
	_, err := Select(false, "", strings.NewReader("999999\n"), out, nil)
	assert.Error(t, err)
}

func TestSelectInteractiveNonNumericErrors(t *testing.T) {
	firstInterfaceOrSkip(t)
	out := &bytes.Buffer{}
	_, err := Select(false, "", strings.NewReader("not-a-number\n"), out, nil)
	assert.Error(t, err)
}
