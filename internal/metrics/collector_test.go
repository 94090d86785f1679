// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewCollectorRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	require.NotNil(t, c)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCounterIncrementsReflectInWrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.IncCaptured()
	c.IncCaptured()
	c.IncAccepted()
	c.IncDenied()
	c.IncReplayed()
	c.IncDropped("mtu_exceeded")

	assert.Equal(t, float64(2), counterValue(t, c.Captured))
	assert.Equal(t, float64(1), counterValue(t, c.Accepted))
	assert.Equal(t, float64(1), counterValue(t, c.Denied))
	assert.Equal(t, float64(1), counterValue(t, c.Replayed))
}

func TestObserveDurationsDoNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObservePacketsWritten(10)
	c.ObserveFlushDuration(5 * time.Millisecond)
	c.ObserveReplaySendDuration(2 * time.Millisecond)
}

func TestNewCollectorDefaultsToDefaultRegisterer(t *testing.T) {
	c := NewCollector(nil)
	assert.NotNil(t, c)
}
