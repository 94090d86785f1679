// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

// Package capture runs the raw-socket read loop: every inbound frame is
// parsed, checked against the firewall, and on acceptance pushed onto
// the packet buffer for the writer task to flush.
package capture

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"

	"stagrdb.node/internal/buffer"
	"stagrdb.node/internal/firewall"
	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/nodeerrors"
	"stagrdb.node/internal/parser"
	"stagrdb.node/internal/rawsock"
)

// Checker evaluates a firewall.Packet, typically *firewallsvc.Service.
type Checker interface {
	Check(firewall.Packet) bool
}

// Metrics is the subset of *metrics.Collector the capture task reports
// to. Nil is accepted and treated as a no-op.
type Metrics interface {
	IncCaptured()
	IncAccepted()
	IncDenied()
}

// Task drives the capture loop over a shared raw socket. The socket is
// owned by the caller (it is also the replay sender's write side) and is
// not closed when the task exits.
type Task struct {
	sock    *rawsock.Socket
	buf     *buffer.Buffer[parser.ParsedPacket]
	checker Checker
	logger  *logging.Logger
	metrics Metrics
}

// New returns a ready-to-run Task reading from sock.
func New(sock *rawsock.Socket, buf *buffer.Buffer[parser.ParsedPacket], checker Checker, logger *logging.Logger, m Metrics) *Task {
	return &Task{sock: sock, buf: buf, checker: checker, logger: logger, metrics: m}
}

// Run blocks, reading and processing frames until ctx is cancelled or an
// unrecoverable socket error occurs. A read timeout is not an error: the
// loop just re-checks ctx and tries again.
func (t *Task) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := t.sock.ReadFrame()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				continue
			}
			return nodeerrors.Wrap(err, nodeerrors.KindTaskExit, "capture socket read failed")
		}
		if t.metrics != nil {
			t.metrics.IncCaptured()
		}

		pkt, err := parser.Parse(frame, t.checker.Check, nil, t.logger)
		if err != nil {
			var reject *parser.RejectError
			if errors.As(err, &reject) {
				if t.logger != nil {
					t.logger.Debug("frame rejected", "reason", reject.Error())
				}
				if t.metrics != nil {
					t.metrics.IncDenied()
				}
			}
			continue
		}
		if t.metrics != nil {
			t.metrics.IncAccepted()
		}
		t.buf.Push(pkt)
	}
}
