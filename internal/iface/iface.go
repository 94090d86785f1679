// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package iface selects the network interface the node captures from
// and replays onto: an automatic match by name in Docker mode, or an
// interactive prompt otherwise.
package iface

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/nodeerrors"
)

// Select returns the chosen interface's name. In Docker mode it matches
// dockerInterfaceName against the host's interfaces exactly, failing if
// absent. Otherwise it lists every interface to out and reads a 1-based
// selection from in.
func Select(dockerMode bool, dockerInterfaceName string, in io.Reader, out io.Writer, logger *logging.Logger) (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", nodeerrors.Wrap(err, nodeerrors.KindStartupConfig, "list network interfaces")
	}
	if len(interfaces) == 0 {
		return "", nodeerrors.New(nodeerrors.KindStartupConfig, "no network interfaces available")
	}

	if dockerMode {
		if logger != nil {
			logger.Info("docker mode enabled, selecting interface automatically", "interface", dockerInterfaceName)
		}
		for _, i := range interfaces {
			if i.Name == dockerInterfaceName {
				return i.Name, nil
			}
		}
		return "", nodeerrors.Errorf(nodeerrors.KindStartupConfig, "docker interface %q not found", dockerInterfaceName)
	}

	fmt.Fprintln(out, "\navailable network interfaces:")
	for idx, i := range interfaces {
		fmt.Fprintf(out, "%d. %s (%s)\n", idx+1, i.Name, i.Flags.String())
	}
	fmt.Fprintf(out, "\nselect an interface [1-%d]: ", len(interfaces))

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return "", nodeerrors.New(nodeerrors.KindStartupConfig, "failed to read interface selection")
	}

	selection, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return "", nodeerrors.Wrap(err, nodeerrors.KindStartupConfig, "invalid interface number")
	}
	if selection < 1 || selection > len(interfaces) {
		return "", nodeerrors.Errorf(nodeerrors.KindStartupConfig, "interface number %d out of range [1-%d]", selection, len(interfaces))
	}

	return interfaces[selection-1].Name, nil
}

// Addresses returns the IP addresses and MAC address (empty if none)
// configured on the named interface.
func Addresses(name string) (mac string, ips []string, err error) {
	i, err := net.InterfaceByName(name)
	if err != nil {
		return "", nil, nodeerrors.Wrapf(err, nodeerrors.KindStartupConfig, "look up interface %q", name)
	}

	if i.HardwareAddr != nil && len(i.HardwareAddr) == 6 {
		mac = i.HardwareAddr.String()
	}

	addrs, err := i.Addrs()
	if err != nil {
		return mac, nil, nodeerrors.Wrapf(err, nodeerrors.KindStartupConfig, "list addresses for interface %q", name)
	}
	for _, a := range addrs {
		ips = append(ips, a.String())
	}
	return mac, ips, nil
}
