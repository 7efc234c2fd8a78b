package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPoolStateProgression(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	p := Pool{CreatedAt: start, BettingEndTime: end}

	assert.Equal(t, StateOpen, p.State(start))
	assert.Equal(t, StateOpen, p.State(end.Add(-time.Second)))

	// The end instant itself is already closed.
	assert.Equal(t, StateBettingEnded, p.State(end))
	assert.False(t, p.IsLive(end))

	reqAt := end.Add(time.Minute)
	p.ResolutionRequestedAt = &reqAt
	assert.Equal(t, StateResolutionRequested, p.State(end.Add(2*time.Minute)))

	p.Resolved = true
	p.Outcome = SideYes
	assert.Equal(t, StateResolved, p.State(end.Add(time.Hour)))
}

func TestPoolNotLiveOnceRequested(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Pool{CreatedAt: start, BettingEndTime: start.Add(time.Hour)}
	reqAt := start.Add(30 * time.Minute)
	p.ResolutionRequestedAt = &reqAt

	// Even inside the betting window, a requested pool takes no bets.
	assert.False(t, p.IsLive(start.Add(40*time.Minute)))
}

func TestCanSettleLivenessWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Pool{CreatedAt: start, BettingEndTime: start.Add(time.Hour)}
	liveness := 30 * time.Second

	assert.False(t, p.CanSettle(start.Add(2*time.Hour), liveness), "no request yet")

	reqAt := start.Add(time.Hour)
	p.ResolutionRequestedAt = &reqAt
	assert.False(t, p.CanSettle(reqAt.Add(29*time.Second), liveness))
	assert.True(t, p.CanSettle(reqAt.Add(30*time.Second), liveness))

	p.Resolved = true
	assert.False(t, p.CanSettle(reqAt.Add(time.Minute), liveness), "already resolved")
}

func TestPrincipalInvariant(t *testing.T) {
	p := Pool{
		TotalPrincipal: decimal.NewFromInt(100),
		YesPrincipal:   decimal.NewFromInt(60),
		NoPrincipal:    decimal.NewFromInt(40),
	}
	assert.True(t, p.CheckPrincipalInvariant())

	p.NoPrincipal = decimal.NewFromInt(41)
	assert.False(t, p.CheckPrincipalInvariant())
}

func TestTimeLeftFloorsAtZero(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Pool{CreatedAt: start, BettingEndTime: start.Add(time.Hour)}

	assert.Equal(t, time.Hour, p.TimeLeft(start))
	assert.Equal(t, time.Duration(0), p.TimeLeft(start.Add(2*time.Hour)))
}

func TestErrorTaxonomy(t *testing.T) {
	assert.Equal(t, KindStateConflict, Kind(ErrDuplicateBet))
	assert.Equal(t, KindNotYetEligible, Kind(ErrLivenessNotElapsed))
	assert.True(t, Terminal(ErrBettingClosed))
	assert.False(t, Terminal(ErrLivenessNotElapsed))
	assert.False(t, Terminal(ErrExternal))
}
