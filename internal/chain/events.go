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
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/extralife/marketd/internal/domain"
)

// Canonical event signatures of the market contract. The topic hashes are
// what FilterLogs matches on.
var (
	topicPoolCreated         = ethcrypto.Keccak256Hash([]byte("PoolCreated(uint256,address,string,uint256)"))
	topicBetPlaced           = ethcrypto.Keccak256Hash([]byte("BetPlaced(uint256,address,uint256,bool)"))
	topicResolutionRequested = ethcrypto.Keccak256Hash([]byte("ResolutionRequested(uint256)"))
	topicPoolResolved        = ethcrypto.Keccak256Hash([]byte("PoolResolved(uint256,bool)"))
	topicPayoutClaimed       = ethcrypto.Keccak256Hash([]byte("PayoutClaimed(uint256,address,uint256)"))
)

// eventsABI describes the non-indexed data fields of each event, for
// unpacking log data. Indexed fields arrive as topics.
const eventsABI = `[
	{"name":"PoolCreated","type":"event","inputs":[
		{"name":"poolId","type":"uint256","indexed":true},
		{"name":"creator","type":"address","indexed":true},
		{"name":"question","type":"string","indexed":false},
		{"name":"bettingEndTime","type":"uint256","indexed":false}
	]},
	{"name":"BetPlaced","type":"event","inputs":[
		{"name":"poolId","type":"uint256","indexed":true},
		{"name":"bettor","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"side","type":"bool","indexed":false}
	]},
	{"name":"ResolutionRequested","type":"event","inputs":[
		{"name":"poolId","type":"uint256","indexed":true}
	]},
	{"name":"PoolResolved","type":"event","inputs":[
		{"name":"poolId","type":"uint256","indexed":true},
		{"name":"outcome","type":"bool","indexed":false}
	]},
	{"name":"PayoutClaimed","type":"event","inputs":[
		{"name":"poolId","type":"uint256","indexed":true},
		{"name":"claimer","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`

// EventReader decodes market contract logs into domain chain events.
type EventReader struct {
	client *Client
	abi    abi.ABI
}

// NewEventReader creates an EventReader over the given client.
func NewEventReader(client *Client) (*EventReader, error) {
	parsed, err := abi.JSON(strings.NewReader(eventsABI))
	if err != nil {
		return nil, fmt.Errorf("chain %s: parse events abi: %w", client.Name(), err)
	}
	return &EventReader{client: client, abi: parsed}, nil
}

// BlockNumber returns the current head block.
func (r *EventReader) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := r.client.Eth().BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain %s: block number: %w", r.client.Name(), err)
	}
	return n, nil
}

// BlockTime returns the timestamp of the given block.
func (r *EventReader) BlockTime(ctx context.Context, n uint64) (time.Time, error) {
	h, err := r.client.Eth().HeaderByNumber(ctx, new(big.Int).SetUint64(n))
	if err != nil {
		return time.Time{}, fmt.Errorf("chain %s: header %d: %w", r.client.Name(), n, err)
	}
	return time.Unix(int64(h.Time), 0).UTC(), nil
}

// FetchEvents reads the contract's logs in [from, to] and decodes them in
// log order. Logs with unknown topics are skipped.
func (r *EventReader) FetchEvents(ctx context.Context, from, to uint64) ([]domain.ChainEvent, error) {
	logs, err := r.client.Eth().FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{r.client.Contract()},
		Topics: [][]common.Hash{{
			topicPoolCreated,
			topicBetPlaced,
			topicResolutionRequested,
			topicPoolResolved,
			topicPayoutClaimed,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("chain %s: filter logs [%d,%d]: %w", r.client.Name(), from, to, err)
	}

	now := time.Now().UTC()
	events := make([]domain.ChainEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := r.decode(lg)
		if err != nil {
			continue
		}
		ev.ObservedAt = now
		events = append(events, ev)
	}
	return events, nil
}

func (r *EventReader) decode(lg types.Log) (domain.ChainEvent, error) {
	if len(lg.Topics) == 0 {
		return domain.ChainEvent{}, fmt.Errorf("log without topics")
	}

	ev := domain.ChainEvent{
		ID:          fmt.Sprintf("%s:%d", lg.TxHash.Hex(), lg.Index),
		Chain:       r.client.Name(),
		BlockNumber: lg.BlockNumber,
	}
	pe := domain.PoolEvent{Chain: r.client.Name()}

	switch lg.Topics[0] {
	case topicPoolCreated:
		pe.Type = domain.EventPoolCreated
		pe.PoolID = topicUint64(lg.Topics[1])

	case topicBetPlaced:
		pe.Type = domain.EventBetPlaced
		pe.PoolID = topicUint64(lg.Topics[1])
		pe.Bettor = topicAddress(lg.Topics[2])
		out, err := r.abi.Unpack("BetPlaced", lg.Data)
		if err != nil {
			return domain.ChainEvent{}, err
		}
		pe.Amount = decimalFromBase(out[0].(*big.Int), r.client.decimals)
		side := out[1].(bool)
		pe.Side = &side

	case topicResolutionRequested:
		pe.Type = domain.EventResolutionRequested
		pe.PoolID = topicUint64(lg.Topics[1])

	case topicPoolResolved:
		pe.Type = domain.EventPoolResolved
		pe.PoolID = topicUint64(lg.Topics[1])
		out, err := r.abi.Unpack("PoolResolved", lg.Data)
		if err != nil {
			return domain.ChainEvent{}, err
		}
		outcome := out[0].(bool)
		pe.Outcome = &outcome

	case topicPayoutClaimed:
		pe.Type = domain.EventPayoutClaimed
		pe.PoolID = topicUint64(lg.Topics[1])
		pe.Bettor = topicAddress(lg.Topics[2])
		out, err := r.abi.Unpack("PayoutClaimed", lg.Data)
		if err != nil {
			return domain.ChainEvent{}, err
		}
		pe.Amount = decimalFromBase(out[0].(*big.Int), r.client.decimals)

	default:
		return domain.ChainEvent{}, fmt.Errorf("unknown topic %s", lg.Topics[0].Hex())
	}

	ev.Event = pe
	return ev, nil
}

func topicUint64(h common.Hash) uint64 {
	return new(big.Int).SetBytes(h.Bytes()).Uint64()
}

func topicAddress(h common.Hash) string {
	return strings.ToLower(common.BytesToAddress(h.Bytes()).Hex())
}
