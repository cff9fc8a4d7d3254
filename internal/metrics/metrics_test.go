package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSweep(time.Second)
	m.PoolOutcome("settled")
	m.Transaction("swap", nil)
	m.ReferenceMiss()
	m.PriceCache("hit")

	var s *Server
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
	require.Nil(t, NewServer("", nil))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Transaction("migrate", nil)
	m.Transaction("migrate", errors.New("x"))
	m.Transaction("migrate", errors.New("y"))
	m.PoolOutcome("failed")

	require.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("migrate", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.transactions.WithLabelValues("migrate", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.poolOutcomes.WithLabelValues("failed")))
}
