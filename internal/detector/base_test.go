package detector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

func candidateAt(price int64, confidence float64, tsMs int64) (*model.SignalCandidate, error) {
	return &model.SignalCandidate{
		Type:       model.SignalAbsorption,
		Side:       model.SideBuy,
		Confidence: confidence,
		TsMs:       tsMs,
		Data:       model.SignalCandidateData{Price: price},
	}, nil
}

func TestGuardEmitsFirstCandidate(t *testing.T) {
	b := NewBase("absorption", 10_000, 5, 100, 0.5)
	result := b.Guard(func() (*model.SignalCandidate, error) { return candidateAt(1000, 0.6, 1000) })
	require.NotNil(t, result)
}

func TestGuardSuppressesWithinCooldownSamePrice(t *testing.T) {
	b := NewBase("absorption", 10_000, 5, 100, 0.5)
	b.Guard(func() (*model.SignalCandidate, error) { return candidateAt(1000, 0.6, 1000) })

	result := b.Guard(func() (*model.SignalCandidate, error) { return candidateAt(1000, 0.7, 2000) })
	assert.Nil(t, result, "same price within cooldown must be suppressed even at higher confidence")
}

func TestGuardAllowsOverrideOutsideRadiusWithHigherConfidence(t *testing.T) {
	b := NewBase("absorption", 10_000, 5, 100, 0.5)
	b.Guard(func() (*model.SignalCandidate, error) { return candidateAt(1000, 0.6, 1000) })

	// 600 units (6 ticks of 100) away, outside the 5*100=500 radius, higher confidence.
	result := b.Guard(func() (*model.SignalCandidate, error) { return candidateAt(1600, 0.8, 2000) })
	assert.NotNil(t, result)
}

func TestGuardAllowsAfterCooldownExpires(t *testing.T) {
	b := NewBase("absorption", 1_000, 5, 100, 0.5)
	b.Guard(func() (*model.SignalCandidate, error) { return candidateAt(1000, 0.6, 1000) })

	result := b.Guard(func() (*model.SignalCandidate, error) { return candidateAt(1000, 0.5, 5000) })
	assert.NotNil(t, result)
}

func TestGuardQuarantinesPastErrorRateThreshold(t *testing.T) {
	b := NewBase("absorption", 1_000, 5, 100, 0.3)
	failing := func() (*model.SignalCandidate, error) { return nil, errors.New("boom") }

	for i := 0; i < 10; i++ {
		b.Guard(failing)
	}

	assert.True(t, b.Quarantined())
	result := b.Guard(func() (*model.SignalCandidate, error) { return candidateAt(1000, 0.9, 9999) })
	assert.Nil(t, result, "quarantined detector must not analyze further trades")
}

func TestGuardRecoversFromPanic(t *testing.T) {
	b := NewBase("absorption", 1_000, 5, 100, 1.0)
	result := b.Guard(func() (*model.SignalCandidate, error) { panic("unexpected") })
	assert.Nil(t, result)
	assert.Equal(t, int64(1), b.ErrorCount())
}
