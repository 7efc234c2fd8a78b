// Package identity resolves wallet addresses to display names for portfolio
// views. Resolution is best effort: a missing or failing name service never
// blocks a read, the caller gets the truncated address instead.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/extralife/marketd/internal/domain"
)

// ensRegistryAddress is the ENS registry, same address on every chain that
// hosts an ENS deployment.
const ensRegistryAddress = "0x00000000000C2E074eC69A0dBb2997BA6C7d2e1e"

const (
	nameCacheTTL  = time.Hour
	lookupTimeout = 3 * time.Second
)

const registryABI = `[
	{"name":"resolver","type":"function","stateMutability":"view","inputs":[{"type":"bytes32"}],"outputs":[{"type":"address"}]}
]`

const resolverABI = `[
	{"name":"name","type":"function","stateMutability":"view","inputs":[{"type":"bytes32"}],"outputs":[{"type":"string"}]}
]`

// Truncate shortens an address to its familiar display form,
// 0x1234...abcd.
func Truncate(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// TruncateResolver renders addresses without any name service.
type TruncateResolver struct{}

func (TruncateResolver) DisplayName(_ context.Context, address string) string {
	return Truncate(address)
}

type cachedName struct {
	name    string
	expires time.Time
}

// ENSResolver resolves reverse records against an ENS deployment, caching
// results in memory. Failed lookups cache the truncated form so a dead
// endpoint costs one RPC per address per TTL, not one per request.
type ENSResolver struct {
	eth      *ethclient.Client
	registry abi.ABI
	resolver abi.ABI
	logger   *slog.Logger

	mu    sync.Mutex
	names map[string]cachedName
}

// NewENSResolver creates an ENSResolver over the given RPC endpoint.
func NewENSResolver(ctx context.Context, rpcURL string, logger *slog.Logger) (*ENSResolver, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("identity: dial %s: %w", rpcURL, err)
	}
	registry, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("identity: parse registry abi: %w", err)
	}
	resolver, err := abi.JSON(strings.NewReader(resolverABI))
	if err != nil {
		return nil, fmt.Errorf("identity: parse resolver abi: %w", err)
	}
	return &ENSResolver{
		eth:      eth,
		registry: registry,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "identity")),
		names:    make(map[string]cachedName),
	}, nil
}

// Close shuts down the RPC connection.
func (r *ENSResolver) Close() {
	r.eth.Close()
}

// DisplayName returns the ENS reverse record for the address, or the
// truncated address when no record exists or the lookup fails.
func (r *ENSResolver) DisplayName(ctx context.Context, address string) string {
	key := strings.ToLower(address)

	r.mu.Lock()
	if c, ok := r.names[key]; ok && time.Now().Before(c.expires) {
		r.mu.Unlock()
		return c.name
	}
	r.mu.Unlock()

	name := Truncate(address)
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	resolved, err := r.reverseLookup(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "ens lookup failed",
			slog.String("address", Truncate(address)),
			slog.String("error", err.Error()),
		)
	} else if resolved != "" {
		name = resolved
	}

	r.mu.Lock()
	r.names[key] = cachedName{name: name, expires: time.Now().Add(nameCacheTTL)}
	r.mu.Unlock()
	return name
}

func (r *ENSResolver) reverseLookup(ctx context.Context, address string) (string, error) {
	node := namehash(strings.TrimPrefix(address, "0x") + ".addr.reverse")

	out, err := r.call(ctx, common.HexToAddress(ensRegistryAddress), r.registry, "resolver", node)
	if err != nil {
		return "", err
	}
	resolverAddr := out[0].(common.Address)
	if resolverAddr == (common.Address{}) {
		return "", nil
	}

	out, err = r.call(ctx, resolverAddr, r.resolver, "name", node)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

func (r *ENSResolver) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("identity: pack %s: %w", method, err)
	}
	raw, err := r.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: call %s: %w", method, err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("identity: unpack %s: %w", method, err)
	}
	return out, nil
}

// namehash implements the ENS name hashing algorithm (EIP-137).
func namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := ethcrypto.Keccak256([]byte(labels[i]))
		node = [32]byte(ethcrypto.Keccak256(node[:], labelHash))
	}
	return node
}

var (
	_ domain.IdentityResolver = TruncateResolver{}
	_ domain.IdentityResolver = (*ENSResolver)(nil)
)
