package state

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oladejiayo/localzure-sub003/pkg/metrics"
)

func TestInstrumentedDelegatesAndRecordsMetrics(t *testing.T) {
	inst := Instrument(NewMemory())
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.StateOpsTotal.WithLabelValues("set", "ns", "ok"))

	require.NoError(t, inst.Set(ctx, "ns", "k", "v", 0))

	value, found, err := inst.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)

	deleted, err := inst.Delete(ctx, "ns", "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	after := testutil.ToFloat64(metrics.StateOpsTotal.WithLabelValues("set", "ns", "ok"))
	assert.Equal(t, before+1, after)
}

func TestInstrumentedRecordsErrorOutcome(t *testing.T) {
	inst := Instrument(NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := testutil.ToFloat64(metrics.StateOpsTotal.WithLabelValues("get", "ns", "error"))
	_, _, err := inst.Get(ctx, "ns", "k")
	assert.Error(t, err)
	after := testutil.ToFloat64(metrics.StateOpsTotal.WithLabelValues("get", "ns", "error"))
	assert.Equal(t, before+1, after)
}
