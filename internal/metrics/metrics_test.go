package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersStartAtZero(t *testing.T) {
	m := New()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SignalsConfirmed))
}

func TestTwoRegistriesDoNotCollide(t *testing.T) {
	a := New()
	b := New()

	a.BookErrors.WithLabelValues("BTCUSDT").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.BookErrors.WithLabelValues("BTCUSDT")))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.BookErrors.WithLabelValues("BTCUSDT")))
}

func TestGathererExposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.DetectorEmissions.WithLabelValues("absorption").Inc()

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "orderflow_detector_emissions_total" {
			found = true
		}
	}
	assert.True(t, found)
}
