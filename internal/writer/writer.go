// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package writer ticks the packet buffer and flushes its contents to
// storage in bounded chunks.
package writer

import (
	"context"
	"time"

	"stagrdb.node/internal/buffer"
	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/nodeerrors"
	"stagrdb.node/internal/parser"
)

// TickInterval is how often the buffer is drained and flushed.
const TickInterval = 10 * time.Millisecond

// Storage is the subset of *storage.Store the writer needs.
type Storage interface {
	BulkInsertPackets(ctx context.Context, nodeID int16, packets []parser.ParsedPacket, sleep func(time.Duration)) error
}

// Task drains the shared buffer on a fixed tick and flushes it to
// storage.
type Task struct {
	nodeID  int16
	buf     *buffer.Buffer[parser.ParsedPacket]
	store   Storage
	logger  *logging.Logger
	metrics Metrics
}

// Metrics is the subset of *metrics.Collector the writer reports to.
type Metrics interface {
	ObservePacketsWritten(n int)
	ObserveFlushDuration(d time.Duration)
}

// New creates a writer Task.
func New(nodeID int16, buf *buffer.Buffer[parser.ParsedPacket], store Storage, logger *logging.Logger, m Metrics) *Task {
	return &Task{nodeID: nodeID, buf: buf, store: store, logger: logger, metrics: m}
}

// Run ticks every TickInterval, draining and flushing the buffer, until
// ctx is cancelled. A flush error is logged and contained to that tick;
// it never terminates the task (only a canceled context does).
func (t *Task) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.flush(ctx)
		}
	}
}

func (t *Task) flush(ctx context.Context) {
	packets := t.buf.Drain()
	if len(packets) == 0 {
		return
	}

	start := time.Now()
	err := t.store.BulkInsertPackets(ctx, t.nodeID, packets, time.Sleep)
	elapsed := time.Since(start)

	if t.metrics != nil {
		t.metrics.ObserveFlushDuration(elapsed)
	}

	if err != nil {
		if t.logger != nil {
			t.logger.Error("flush failed", "error", nodeerrors.Wrap(err, nodeerrors.KindStoragePermanent, "flush").Error(), "packet_count", len(packets))
		}
		return
	}

	if t.metrics != nil {
		t.metrics.ObservePacketsWritten(len(packets))
	}
	if t.logger != nil {
		perPacketMs := float64(elapsed.Milliseconds()) / float64(len(packets))
		t.logger.Info("flushed packets", "count", len(packets),
			"elapsed_ms", elapsed.Milliseconds(), "per_packet_ms", perPacketMs)
	}
}
