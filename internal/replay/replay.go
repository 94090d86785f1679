// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package replay transmits a batch of previously captured frames back
// onto the wire, preserving their capture-time inter-arrival cadence.
package replay

import (
	"time"

	"stagrdb.node/internal/logging"
)

// MaxFrameSize is the MTU above which a frame is dropped rather than
// sent.
const MaxFrameSize = 1500

// Frame is one packet to replay.
type Frame struct {
	Timestamp time.Time
	Raw       []byte
}

// Writer transmits a raw frame on the replay interface.
type Writer interface {
	WriteFrame(frame []byte) error
}

// Send replays frames in order, sleeping the positive microsecond delta
// between each frame's timestamp and the previous *successfully sent*
// frame's timestamp before sending it. A frame over MaxFrameSize is
// logged and skipped; so is one that fails to send. In both skip cases
// the "last sent" timestamp used for pacing is left unchanged — only a
// genuinely sent frame moves the pacing clock forward. It returns the
// count of frames actually transmitted.
func Send(w Writer, frames []Frame, logger *logging.Logger, sleep func(time.Duration)) (int, error) {
	if len(frames) == 0 {
		return 0, nil
	}
	if sleep == nil {
		sleep = time.Sleep
	}

	lastSentTime := frames[0].Timestamp
	sent := 0

	for i, f := range frames {
		delta := f.Timestamp.Sub(lastSentTime)
		if delta > 0 {
			sleep(delta)
		}

		if len(f.Raw) > MaxFrameSize {
			if logger != nil {
				logger.Error("frame exceeds MTU, dropping", "index", i, "size", len(f.Raw), "max", MaxFrameSize)
			}
			continue
		}

		if err := w.WriteFrame(f.Raw); err != nil {
			if logger != nil {
				logger.Error("replay send failed", "index", i, "error", err.Error())
			}
			continue
		}

		if logger != nil {
			logger.Info("replayed frame", "index", i+1, "size", len(f.Raw), "timestamp", f.Timestamp)
		}
		lastSentTime = f.Timestamp
		sent++
	}

	return sent, nil
}
