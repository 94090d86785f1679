// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package reader polls storage for packets captured by peer nodes and
// hands them to internal/replay for retransmission on the local
// interface, preserving their capture-time cadence.
package reader

import (
	"context"
	"time"

	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/replay"
	"stagrdb.node/internal/storage"
)

// pollInterval is the pause after a successful fetch-and-send cycle.
const pollInterval = 10 * time.Millisecond

// errorBackoff is the pause after a failed fetch.
const errorBackoff = 5 * time.Second

// Fetcher is the subset of *storage.Store the reader needs.
type Fetcher interface {
	FetchPeerPackets(ctx context.Context, nodeID int16, isFirst bool, lastTimestamp *time.Time) ([]storage.PeerPacketRow, error)
}

// Metrics is the subset of *metrics.Collector the reader reports to.
// Nil is accepted and treated as a no-op.
type Metrics interface {
	IncReplayed()
	ObserveReplaySendDuration(d time.Duration)
}

// Task polls for peer packets and replays them.
type Task struct {
	nodeID        int16
	store         Fetcher
	writer        replay.Writer
	logger        *logging.Logger
	metrics       Metrics
	isFirstFetch  bool
	lastTimestamp *time.Time
	sleep         func(time.Duration)
}

// New creates a reader Task targeting nodeID's peers, replaying onto w.
func New(nodeID int16, store Fetcher, w replay.Writer, logger *logging.Logger, m Metrics) *Task {
	return &Task{
		nodeID:       nodeID,
		store:        store,
		writer:       w,
		logger:       logger,
		metrics:      m,
		isFirstFetch: true,
		sleep:        time.Sleep,
	}
}

// Run loops fetch-and-send cycles until ctx is cancelled: pollInterval
// after a successful cycle, errorBackoff after a fetch error (which is
// logged first).
func (t *Task) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := t.fetchAndSend(ctx); err != nil {
			if t.logger != nil {
				t.logger.Error("peer packet fetch failed", "error", err.Error())
			}
			if !sleepOrDone(ctx, errorBackoff, t.sleep) {
				return nil
			}
			continue
		}

		if !sleepOrDone(ctx, pollInterval, t.sleep) {
			return nil
		}
	}
}

// fetchAndSend performs one fetch cycle. The watermark (lastTimestamp)
// only advances when rows were actually returned; a fetch that returns
// zero rows leaves it untouched. The watermark always comes from a
// fetched row's timestamp, never from the local clock.
// Replay errors are logged inside replay.Send and do not propagate:
// fetchAndSend only fails when the fetch itself fails.
func (t *Task) fetchAndSend(ctx context.Context) error {
	rows, err := t.store.FetchPeerPackets(ctx, t.nodeID, t.isFirstFetch, t.lastTimestamp)
	if err != nil {
		return err
	}

	if len(rows) > 0 {
		last := rows[len(rows)-1].Timestamp
		t.lastTimestamp = &last

		frames := make([]replay.Frame, len(rows))
		for i, r := range rows {
			frames[i] = replay.Frame{Timestamp: r.Timestamp, Raw: r.Raw}
		}

		start := time.Now()
		sent, _ := replay.Send(t.writer, frames, t.logger, t.sleep)
		if t.metrics != nil {
			t.metrics.ObserveReplaySendDuration(time.Since(start))
			for i := 0; i < sent; i++ {
				t.metrics.IncReplayed()
			}
		}
	}

	t.isFirstFetch = false
	return nil
}

// sleepOrDone waits d, or returns false early if ctx is cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration, sleep func(time.Duration)) bool {
	if sleep == nil {
		sleep = time.Sleep
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
