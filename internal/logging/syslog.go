// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"net"
)

// SyslogConfig configures forwarding of log lines to a remote syslog
// collector, letting a fleet of nodes aggregate IDS events centrally.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns syslog forwarding disabled, with RFC 5424
// defaults (UDP/514) applied once enabled.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "stagrdb",
		Facility: 1,
	}
}

// syslogWriter forwards written bytes as syslog messages over a UDP or
// TCP connection to cfg.Host:cfg.Port.
type syslogWriter struct {
	conn net.Conn
	cfg  SyslogConfig
}

// NewSyslogWriter dials the configured syslog collector. It returns an
// error if Enabled is true but Host is empty.
func NewSyslogWriter(cfg SyslogConfig) (*syslogWriter, error) {
	if cfg.Enabled && cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog enabled but host is empty")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "stagrdb"
	}
	if !cfg.Enabled {
		return &syslogWriter{cfg: cfg}, nil
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := net.Dial(cfg.Protocol, addr)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog %s://%s: %w", cfg.Protocol, addr, err)
	}
	return &syslogWriter{conn: conn, cfg: cfg}, nil
}

func (w *syslogWriter) Write(p []byte) (int, error) {
	if w.conn == nil {
		return len(p), nil
	}
	priority := w.cfg.Facility*8 + 6 // severity 6 = informational
	msg := fmt.Sprintf("<%d>%s: %s", priority, w.cfg.Tag, p)
	return w.conn.Write([]byte(msg))
}

func (w *syslogWriter) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}
