// Package chain adapts the on-chain market contract to the domain
// interfaces. Everything the settlement core believes about balances comes
// from here; the daemon mirrors contract state, it never invents it.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// ClientConfig holds the connection parameters for one chain.
type ClientConfig struct {
	Name            string
	ChainID         int64
	RpcURL          string
	ContractAddress string
	AssetDecimals   int32
}

// Client wraps an ethclient connection to one chain's RPC endpoint.
type Client struct {
	name     string
	eth      *ethclient.Client
	contract common.Address
	decimals int32
}

// Dial connects to the chain's RPC endpoint and verifies the chain id
// matches the configuration.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain %s: dial %s: %w", cfg.Name, cfg.RpcURL, err)
	}

	id, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain %s: chain id: %w", cfg.Name, err)
	}
	if id.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain %s: endpoint reports chain id %d, config says %d",
			cfg.Name, id.Int64(), cfg.ChainID)
	}

	if !common.IsHexAddress(cfg.ContractAddress) {
		eth.Close()
		return nil, fmt.Errorf("chain %s: invalid contract address %q", cfg.Name, cfg.ContractAddress)
	}

	return &Client{
		name:     cfg.Name,
		eth:      eth,
		contract: common.HexToAddress(cfg.ContractAddress),
		decimals: cfg.AssetDecimals,
	}, nil
}

// Name returns the configured chain name.
func (c *Client) Name() string {
	return c.name
}

// Eth returns the underlying ethclient connection.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// Contract returns the market contract address.
func (c *Client) Contract() common.Address {
	return c.contract
}

// Close shuts down the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// decimalFromBase converts an integer base-unit amount to the decimal asset
// amount for a chain with the given asset precision.
func decimalFromBase(v *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(v, -decimals)
}
