package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/crypto"
	"github.com/extralife/marketd/internal/domain"
)

// marketABI is the slice of the market contract interface the daemon
// actually uses: pool reads, the settlement entry point, and the rate view.
const marketABI = `[
	{"name":"poolCount","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"pools","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[
		{"name":"question","type":"string"},
		{"name":"creator","type":"address"},
		{"name":"createdAt","type":"uint256"},
		{"name":"bettingEndTime","type":"uint256"},
		{"name":"totalAmount","type":"uint256"},
		{"name":"yesAmount","type":"uint256"},
		{"name":"noAmount","type":"uint256"},
		{"name":"creatorDeposit","type":"uint256"},
		{"name":"resolutionRequestedAt","type":"uint256"},
		{"name":"resolved","type":"bool"},
		{"name":"outcome","type":"bool"}
	]},
	{"name":"currentTotalYield","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
	{"name":"settledYield","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
	{"name":"proposedOutcome","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"bool"}]},
	{"name":"currentAPYBps","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"settleResolution","type":"function","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"bool"}],"outputs":[]}
]`

// Market implements domain.MarketAuthority over the deployed market
// contract. Reads go through eth_call; SubmitResolution signs and sends a
// real transaction with the settlement wallet.
type Market struct {
	client *Client
	abi    abi.ABI
	signer *crypto.TxSigner
}

// NewMarket creates a Market over the given client. signer may be nil for
// read-only deployments (mirror and server modes); SubmitResolution then
// fails cleanly.
func NewMarket(client *Client, signer *crypto.TxSigner) (*Market, error) {
	parsed, err := abi.JSON(strings.NewReader(marketABI))
	if err != nil {
		return nil, fmt.Errorf("chain %s: parse abi: %w", client.Name(), err)
	}
	return &Market{client: client, abi: parsed, signer: signer}, nil
}

func (m *Market) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := m.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain %s: pack %s: %w", m.client.Name(), method, err)
	}

	contract := m.client.Contract()
	raw, err := m.client.Eth().CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain %s: call %s: %w", m.client.Name(), method, err)
	}

	out, err := m.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain %s: unpack %s: %w", m.client.Name(), method, err)
	}
	return out, nil
}

// toAmount converts an integer base-unit amount to the decimal asset amount.
func (m *Market) toAmount(v *big.Int) decimal.Decimal {
	return decimalFromBase(v, m.client.decimals)
}

// FetchPool reads the authoritative pool state from the contract.
func (m *Market) FetchPool(ctx context.Context, id uint64) (*domain.Pool, error) {
	out, err := m.call(ctx, "pools", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	if len(out) != 11 {
		return nil, fmt.Errorf("chain %s: pools(%d): unexpected output arity %d", m.client.Name(), id, len(out))
	}

	p := &domain.Pool{
		ID:               id,
		Chain:            m.client.Name(),
		Question:         out[0].(string),
		Creator:          strings.ToLower(out[1].(common.Address).Hex()),
		CreatedAt:        time.Unix(out[2].(*big.Int).Int64(), 0).UTC(),
		BettingEndTime:   time.Unix(out[3].(*big.Int).Int64(), 0).UTC(),
		TotalPrincipal:   m.toAmount(out[4].(*big.Int)),
		YesPrincipal:     m.toAmount(out[5].(*big.Int)),
		NoPrincipal:      m.toAmount(out[6].(*big.Int)),
		CreatorPrincipal: m.toAmount(out[7].(*big.Int)),
		Resolved:         out[9].(bool),
		Outcome:          out[10].(bool),
	}
	if req := out[8].(*big.Int); req.Sign() > 0 {
		t := time.Unix(req.Int64(), 0).UTC()
		p.ResolutionRequestedAt = &t
	}
	return p, nil
}

// PoolCount returns the number of pools ever created on this chain.
func (m *Market) PoolCount(ctx context.Context) (uint64, error) {
	out, err := m.call(ctx, "poolCount")
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

// CurrentYield returns the yield the contract reports as accrued so far
// for a pool, in asset units.
func (m *Market) CurrentYield(ctx context.Context, id uint64) (decimal.Decimal, error) {
	out, err := m.call(ctx, "currentTotalYield", new(big.Int).SetUint64(id))
	if err != nil {
		return decimal.Zero, err
	}
	return m.toAmount(out[0].(*big.Int)), nil
}

// SettledYield returns the total yield the contract reports for a resolved
// pool, in asset units.
func (m *Market) SettledYield(ctx context.Context, id uint64) (decimal.Decimal, error) {
	out, err := m.call(ctx, "settledYield", new(big.Int).SetUint64(id))
	if err != nil {
		return decimal.Zero, err
	}
	return m.toAmount(out[0].(*big.Int)), nil
}

// SubmitResolution signs and sends the settle transaction. It returns the
// transaction hash once the transaction is accepted by the mempool; the
// poller observes the resulting PoolResolved log like any other event.
func (m *Market) SubmitResolution(ctx context.Context, id uint64, outcome bool) (string, error) {
	if m.signer == nil {
		return "", fmt.Errorf("chain %s: submit resolution: no wallet configured", m.client.Name())
	}

	data, err := m.abi.Pack("settleResolution", new(big.Int).SetUint64(id), outcome)
	if err != nil {
		return "", fmt.Errorf("chain %s: pack settleResolution: %w", m.client.Name(), err)
	}

	eth := m.client.Eth()
	from := m.signer.Address()

	nonce, err := eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("chain %s: nonce: %w", m.client.Name(), err)
	}
	gasPrice, err := eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("chain %s: gas price: %w", m.client.Name(), err)
	}

	contract := m.client.Contract()
	gasLimit, err := eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("chain %s: estimate gas: %w", m.client.Name(), err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := m.signer.SignTx(tx)
	if err != nil {
		return "", fmt.Errorf("chain %s: %w", m.client.Name(), err)
	}
	if err := eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain %s: send settleResolution(%d): %w", m.client.Name(), id, err)
	}

	return signed.Hash().Hex(), nil
}

// Outcome implements domain.OutcomeOracle by reading the outcome proposed
// on chain during the liveness window.
func (m *Market) Outcome(ctx context.Context, p domain.Pool) (bool, error) {
	out, err := m.call(ctx, "proposedOutcome", new(big.Int).SetUint64(p.ID))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// CurrentAPY implements domain.YieldRateOracle. The contract reports the
// lending rate in basis points; the domain works in percent.
func (m *Market) CurrentAPY(ctx context.Context) (decimal.Decimal, error) {
	out, err := m.call(ctx, "currentAPYBps")
	if err != nil {
		return decimal.Zero, err
	}
	bps := decimal.NewFromBigInt(out[0].(*big.Int), 0)
	return bps.Div(decimal.NewFromInt(100)), nil
}

// Compile-time interface checks.
var (
	_ domain.MarketAuthority = (*Market)(nil)
	_ domain.YieldRateOracle = (*Market)(nil)
	_ domain.OutcomeOracle   = (*Market)(nil)
)
