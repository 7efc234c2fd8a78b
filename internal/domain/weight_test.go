package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() WeightEngine {
	return NewWeightEngine(decimal.RequireFromString("0.5"))
}

func TestWeightAtWindowStart(t *testing.T) {
	e := testEngine()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	w, err := e.Weight(decimal.NewFromInt(100), start, start, end)
	require.NoError(t, err)
	assert.True(t, w.Equal(decimal.NewFromInt(150)), "got %s", w)
}

func TestWeightNeverBelowPrincipal(t *testing.T) {
	e := testEngine()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	principal := decimal.NewFromInt(37)

	for _, offset := range []time.Duration{0, time.Second, 30 * time.Minute, time.Hour - time.Second} {
		w, err := e.Weight(principal, start.Add(offset), start, end)
		require.NoError(t, err)
		assert.True(t, w.GreaterThanOrEqual(principal), "offset %s: weight %s", offset, w)
	}
}

func TestWeightMonotonicInTime(t *testing.T) {
	e := testEngine()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)
	principal := decimal.NewFromInt(1000)

	prev, err := e.Weight(principal, start, start, end)
	require.NoError(t, err)
	for h := 1; h < 10; h++ {
		w, err := e.Weight(principal, start.Add(time.Duration(h)*time.Hour), start, end)
		require.NoError(t, err)
		assert.True(t, w.LessThanOrEqual(prev), "hour %d: %s > %s", h, w, prev)
		prev = w
	}
}

func TestWeightDeterministic(t *testing.T) {
	e := testEngine()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)
	placed := start.Add(17*time.Hour + 31*time.Minute)
	principal := decimal.RequireFromString("12.345678")

	w1, err := e.Weight(principal, placed, start, end)
	require.NoError(t, err)
	w2, err := e.Weight(principal, placed, start, end)
	require.NoError(t, err)
	assert.True(t, w1.Equal(w2))
}

func TestWeightRejectsZeroPrincipal(t *testing.T) {
	e := testEngine()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	_, err := e.Weight(decimal.Zero, start, start, end)
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = e.Weight(decimal.NewFromInt(-5), start, start, end)
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestWeightRejectsOutOfWindow(t *testing.T) {
	e := testEngine()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	_, err := e.Weight(decimal.NewFromInt(1), start.Add(-time.Second), start, end)
	assert.ErrorIs(t, err, ErrInvalidBetTiming)

	// A bet at the exact end instant is already closed.
	_, err = e.Weight(decimal.NewFromInt(1), end, start, end)
	assert.ErrorIs(t, err, ErrInvalidBetTiming)
}
