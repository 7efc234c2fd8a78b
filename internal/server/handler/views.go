package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// poolView is the API shape of a pool. Amounts render as decimal strings;
// the lifecycle state is derived at render time.
type poolView struct {
	Chain          string    `json:"chain"`
	PoolID         uint64    `json:"pool_id"`
	Question       string    `json:"question"`
	Creator        string    `json:"creator"`
	CreatedAt      time.Time `json:"created_at"`
	BettingEndTime time.Time `json:"betting_end_time"`
	State          string    `json:"state"`
	TimeLeftSec    int64     `json:"time_left_seconds"`

	TotalPrincipal   decimal.Decimal `json:"total_principal"`
	YesPrincipal     decimal.Decimal `json:"yes_principal"`
	NoPrincipal      decimal.Decimal `json:"no_principal"`
	TotalYesWeight   decimal.Decimal `json:"total_yes_weight"`
	TotalNoWeight    decimal.Decimal `json:"total_no_weight"`
	CreatorPrincipal decimal.Decimal `json:"creator_principal"`
	CreatorClaimed   bool            `json:"creator_claimed"`

	ResolutionRequestedAt *time.Time       `json:"resolution_requested_at,omitempty"`
	Resolved              bool             `json:"resolved"`
	Outcome               *string          `json:"outcome,omitempty"`
	SettledYield          *decimal.Decimal `json:"settled_yield,omitempty"`
}

func toPoolView(p domain.Pool, now time.Time) poolView {
	v := poolView{
		Chain:                 p.Chain,
		PoolID:                p.ID,
		Question:              p.Question,
		Creator:               p.Creator,
		CreatedAt:             p.CreatedAt,
		BettingEndTime:        p.BettingEndTime,
		State:                 string(p.State(now)),
		TimeLeftSec:           int64(p.TimeLeft(now).Seconds()),
		TotalPrincipal:        p.TotalPrincipal,
		YesPrincipal:          p.YesPrincipal,
		NoPrincipal:           p.NoPrincipal,
		TotalYesWeight:        p.TotalYesWeight,
		TotalNoWeight:         p.TotalNoWeight,
		CreatorPrincipal:      p.CreatorPrincipal,
		CreatorClaimed:        p.CreatorClaimed,
		ResolutionRequestedAt: p.ResolutionRequestedAt,
		Resolved:              p.Resolved,
	}
	if p.Resolved {
		outcome := domain.SideLabel(p.Outcome)
		v.Outcome = &outcome
		yield := p.SettledYield
		v.SettledYield = &yield
	}
	return v
}

// betView is the API shape of a bet.
type betView struct {
	Chain     string          `json:"chain"`
	PoolID    uint64          `json:"pool_id"`
	Bettor    string          `json:"bettor"`
	Principal decimal.Decimal `json:"principal"`
	Side      string          `json:"side"`
	Weight    decimal.Decimal `json:"weight"`
	PlacedAt  time.Time       `json:"placed_at"`
	Claimed   bool            `json:"claimed"`
}

func toBetView(b domain.Bet) betView {
	return betView{
		Chain:     b.Chain,
		PoolID:    b.PoolID,
		Bettor:    b.Bettor,
		Principal: b.Principal,
		Side:      b.SideString(),
		Weight:    b.Weight,
		PlacedAt:  b.PlacedAt,
		Claimed:   b.Claimed,
	}
}

// payoutView is the API shape of a payout or payout preview.
type payoutView struct {
	Principal  decimal.Decimal `json:"principal"`
	YieldShare decimal.Decimal `json:"yield_share"`
	Total      decimal.Decimal `json:"total"`
	Won        bool            `json:"won"`
}

func toPayoutView(p domain.Payout) payoutView {
	return payoutView{
		Principal:  p.Principal,
		YieldShare: p.YieldShare,
		Total:      p.Total,
		Won:        p.Won,
	}
}
