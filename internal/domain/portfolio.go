package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// historyLimit caps the recent-activity list in portfolio stats.
const historyLimit = 10

// Position is one address's stake in one pool as shown in a portfolio,
// enriched with the pool's current state and the position's outcome once
// the pool resolves. A created pool appears as a position too: Created is
// set, Principal is the creator deposit, and Side and Weight are zero.
type Position struct {
	PoolID    uint64
	Chain     string
	Question  string
	Bettor    string
	Principal decimal.Decimal
	Side      bool
	Weight    decimal.Decimal
	PlacedAt  time.Time
	State     ResolutionState
	Won       bool // meaningful only when State == StateResolved
	Claimed   bool
	Created   bool

	// Profit is the yield earned on top of principal: a winner's prize
	// share, or the creator reward. Zero until the pool resolves; never
	// negative, principal always comes back.
	Profit decimal.Decimal
}

// PortfolioStats are the aggregate figures over an address's positions.
// Win figures count bet positions only; created pools have no side to win.
type PortfolioStats struct {
	TotalPools     int
	ActivePools    int
	ResolvedPools  int
	CreatedPools   int
	TotalBets      int
	TotalPrincipal decimal.Decimal
	Wins           int
	Losses         int

	// WinRate is Wins over TotalBets, in [0, 1]. Zero while no bet has
	// been placed.
	WinRate decimal.Decimal

	// Profit is the summed yield earned across all resolved positions.
	Profit decimal.Decimal
}

// Portfolio is the merged view of one address across all chains.
type Portfolio struct {
	Address     string
	DisplayName string
	Positions   []Position
	Stats       PortfolioStats

	// History is the most recent positions, newest pool first, capped.
	History []Position
}

// positionKey dedups positions: each (pool, bettor) pair appears at most
// once per chain, and the same pool id on different chains is distinct. A
// creator who also bet on their own pool would hold two distinct positions,
// so created entries key separately.
type positionKey struct {
	chain   string
	poolID  uint64
	bettor  string
	created bool
}

// BuildPortfolio merges position slices gathered from several sources
// into one portfolio. Duplicates (same chain, pool and bettor, as can
// happen when a source is queried twice) collapse to a single entry; the
// first occurrence wins. Ordering and stats are recomputed from scratch,
// so the merge is independent of source arrival order.
func BuildPortfolio(address string, sources ...[]Position) Portfolio {
	seen := make(map[positionKey]struct{})
	var merged []Position
	for _, src := range sources {
		for _, pos := range src {
			k := positionKey{chain: pos.Chain, poolID: pos.PoolID, bettor: pos.Bettor, created: pos.Created}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, pos)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].PoolID != merged[j].PoolID {
			return merged[i].PoolID > merged[j].PoolID
		}
		if merged[i].Chain != merged[j].Chain {
			return merged[i].Chain < merged[j].Chain
		}
		// Bet before created entry for the same pool.
		return !merged[i].Created && merged[j].Created
	})

	stats := PortfolioStats{
		TotalPrincipal: decimal.Zero,
		WinRate:        decimal.Zero,
		Profit:         decimal.Zero,
	}
	for _, pos := range merged {
		stats.TotalPools++
		stats.TotalPrincipal = stats.TotalPrincipal.Add(pos.Principal)
		stats.Profit = stats.Profit.Add(pos.Profit)
		if pos.Created {
			stats.CreatedPools++
		} else {
			stats.TotalBets++
		}
		switch pos.State {
		case StateResolved:
			stats.ResolvedPools++
			if pos.Created {
				break
			}
			if pos.Won {
				stats.Wins++
			} else {
				stats.Losses++
			}
		default:
			stats.ActivePools++
		}
	}
	if stats.TotalBets > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).
			Div(decimal.NewFromInt(int64(stats.TotalBets)))
	}

	history := merged
	if len(history) > historyLimit {
		history = history[:historyLimit]
	}

	return Portfolio{
		Address:   address,
		Positions: merged,
		Stats:     stats,
		History:   history,
	}
}
