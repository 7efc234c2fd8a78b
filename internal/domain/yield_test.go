package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitValidate(t *testing.T) {
	require.NoError(t, DefaultSplit().Validate())
	assert.Error(t, YieldSplit{PrizePoolPercent: 60, CreatorPercent: 50}.Validate())
	assert.Error(t, YieldSplit{PrizePoolPercent: -10, CreatorPercent: 110}.Validate())
}

func TestSettledSplitExact(t *testing.T) {
	p := NewYieldProjector(DefaultSplit(), 6)

	proj := p.Settled(decimal.RequireFromString("0.2877"))
	assert.True(t, proj.Settled)
	assert.Equal(t, "0.11508", proj.CreatorReward.String())
	assert.Equal(t, "0.17262", proj.PrizePool.String())
	assert.True(t, proj.PrizePool.Add(proj.CreatorReward).Equal(proj.Total))
}

func TestSplitReconstructsTotal(t *testing.T) {
	p := NewYieldProjector(DefaultSplit(), 6)

	for _, s := range []string{"0.000001", "1", "3.1415926", "999999.999999", "0.2877"} {
		total := decimal.RequireFromString(s)
		proj := p.Settled(total)
		assert.True(t, proj.PrizePool.Add(proj.CreatorReward).Equal(total), "total %s", s)
		assert.True(t, proj.CreatorReward.GreaterThanOrEqual(decimal.Zero))
		// Truncation residue lands in the prize pool, never the creator.
		exactCreator := total.Mul(decimal.NewFromInt(40)).Div(decimal.NewFromInt(100))
		assert.True(t, proj.CreatorReward.LessThanOrEqual(exactCreator), "total %s", s)
	}
}

func TestProjectionSimpleInterest(t *testing.T) {
	p := NewYieldProjector(DefaultSplit(), 6)

	// 10000 at 3.5% for half a year, on top of 50 already accrued:
	// 10000 * 0.035 * 0.5 = 175, total 225.
	half := time.Duration(secondsPerYear/2) * time.Second
	proj := p.Project(
		decimal.NewFromInt(10000),
		decimal.NewFromInt(50),
		decimal.RequireFromString("3.5"),
		half,
	)
	assert.False(t, proj.Settled)
	assert.True(t, proj.Total.Equal(decimal.NewFromInt(225)), "got %s", proj.Total)
}

func TestProjectionClampsExpiredWindow(t *testing.T) {
	p := NewYieldProjector(DefaultSplit(), 6)

	accrued := decimal.RequireFromString("12.5")
	proj := p.Project(decimal.NewFromInt(10000), accrued, decimal.RequireFromString("3.5"), -time.Hour)
	assert.True(t, proj.Total.Equal(accrued), "got %s", proj.Total)
}
