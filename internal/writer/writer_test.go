// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stagrdb.node/internal/buffer"
	"stagrdb.node/internal/parser"
)

type fakeStorage struct {
	calls    [][]parser.ParsedPacket
	failNext bool
}

func (f *fakeStorage) BulkInsertPackets(ctx context.Context, nodeID int16, packets []parser.ParsedPacket, sleep func(time.Duration)) error {
	f.calls = append(f.calls, packets)
	if f.failNext {
		f.failNext = false
		return errors.New("boom")
	}
	return nil
}

type fakeMetrics struct {
	written int
	flushes int
}

func (f *fakeMetrics) ObservePacketsWritten(n int)          { f.written += n }
func (f *fakeMetrics) ObserveFlushDuration(d time.Duration) { f.flushes++ }

func TestFlushSkipsEmptyBuffer(t *testing.T) {
	buf := buffer.New[parser.ParsedPacket]()
	store := &fakeStorage{}
	task := New(1, buf, store, nil, nil)
	task.flush(context.Background())
	assert.Empty(t, store.calls)
}

func TestFlushDrainsAndInserts(t *testing.T) {
	buf := buffer.New[parser.ParsedPacket]()
	buf.Push(parser.ParsedPacket{})
	buf.Push(parser.ParsedPacket{})
	store := &fakeStorage{}
	m := &fakeMetrics{}
	task := New(1, buf, store, nil, m)
	task.flush(context.Background())
	require.Len(t, store.calls, 1)
	assert.Len(t, store.calls[0], 2)
	assert.Equal(t, 2, m.written)
	assert.Equal(t, 1, m.flushes)
	assert.True(t, buf.IsEmpty())
}

func TestFlushErrorDoesNotPanicOrRetryWithinCall(t *testing.T) {
	buf := buffer.New[parser.ParsedPacket]()
	buf.Push(parser.ParsedPacket{})
	store := &fakeStorage{failNext: true}
	m := &fakeMetrics{}
	task := New(1, buf, store, nil, m)
	task.flush(context.Background())
	assert.Len(t, store.calls, 1)
	assert.Equal(t, 0, m.written)
	assert.Equal(t, 1, m.flushes)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	buf := buffer.New[parser.ParsedPacket]()
	store := &fakeStorage{}
	task := New(1, buf, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
