package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	s3blob "github.com/extralife/marketd/internal/blob/s3"
	"github.com/extralife/marketd/internal/cache/redis"
	"github.com/extralife/marketd/internal/chain"
	"github.com/extralife/marketd/internal/config"
	"github.com/extralife/marketd/internal/crypto"
	"github.com/extralife/marketd/internal/domain"
	"github.com/extralife/marketd/internal/identity"
	"github.com/extralife/marketd/internal/notify"
	"github.com/extralife/marketd/internal/service"
	"github.com/extralife/marketd/internal/store/postgres"
)

// Dependencies bundles everything the modes need. Wire constructs it and
// the returned cleanup function tears it down in reverse order.
type Dependencies struct {
	// Stores
	PoolStore  domain.PoolStore
	BetStore   domain.BetStore
	AuditStore domain.AuditStore

	// Caches
	ApyCache     domain.ApyCache
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus
	RateLimiter  domain.RateLimiter
	ProcessedSet domain.ProcessedSet

	// Chains, keyed by chain name.
	Clients     map[string]*chain.Client
	Markets     map[string]*chain.Market
	Readers     map[string]*chain.EventReader
	Authorities map[string]domain.MarketAuthority

	// Blob storage
	Archiver domain.SettlementArchiver

	// Weights is shared by the bet path and the chain mirror so both
	// produce the same weight for the same bet.
	Weights domain.WeightEngine

	// Services
	Pools      *service.PoolService
	Resolution *service.ResolutionService
	Payouts    *service.PayoutService
	Yield      *service.YieldService
	Portfolio  *service.PortfolioService

	// Notifications
	Notifier *notify.Notifier
}

// needsWallet reports whether the mode submits settlement transactions.
func needsWallet(mode string) bool {
	return mode == "settle" || mode == "full"
}

// needsS3 reports whether the mode archives settled pools.
func needsS3(mode string) bool {
	return mode == "full"
}

// Wire constructs the concrete dependency graph from the configuration.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PoolStore = postgres.NewPoolStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ApyCache = redis.NewApyCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.ProcessedSet = redis.NewProcessedSet(redisClient)

	// --- Settlement wallet ---
	var keyHex string
	if needsWallet(cfg.Mode) {
		keyHex, err = crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
	}

	// --- Chains ---
	deps.Clients = make(map[string]*chain.Client, len(cfg.Chains))
	deps.Markets = make(map[string]*chain.Market, len(cfg.Chains))
	deps.Readers = make(map[string]*chain.EventReader, len(cfg.Chains))
	deps.Authorities = make(map[string]domain.MarketAuthority, len(cfg.Chains))

	for _, chainCfg := range cfg.Chains {
		client, err := chain.Dial(ctx, chain.ClientConfig{
			Name:            chainCfg.Name,
			ChainID:         chainCfg.ChainID,
			RpcURL:          chainCfg.RpcURL,
			ContractAddress: chainCfg.ContractAddress,
			AssetDecimals:   chainCfg.AssetDecimals,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		closers = append(closers, client.Close)

		var signer *crypto.TxSigner
		if keyHex != "" {
			signer, err = crypto.NewTxSigner(keyHex, chainCfg.ChainID)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: chain %s: %w", chainCfg.Name, err)
			}
		}

		market, err := chain.NewMarket(client, signer)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		reader, err := chain.NewEventReader(client)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		deps.Clients[chainCfg.Name] = client
		deps.Markets[chainCfg.Name] = market
		deps.Readers[chainCfg.Name] = reader
		deps.Authorities[chainCfg.Name] = market
	}

	// --- S3 settlement archive ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewSettlementArchive(
			s3blob.NewWriter(s3Client),
			deps.PoolStore,
			deps.BetStore,
			deps.AuditStore,
			logger,
		)
	}

	// --- Identity ---
	var resolver domain.IdentityResolver = identity.TruncateResolver{}
	if cfg.Identity.ENSRpcURL != "" {
		ens, err := identity.NewENSResolver(ctx, cfg.Identity.ENSRpcURL, logger)
		if err != nil {
			// Name resolution is cosmetic; fall back rather than abort.
			logger.Warn("ens resolver unavailable, using truncated addresses",
				slog.String("error", err.Error()))
		} else {
			closers = append(closers, ens.Close)
			resolver = ens
		}
	}

	// --- Domain math from market config ---
	maxBonus, err := decimal.NewFromString(cfg.Market.TimeBonusMax)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: market.time_bonus_max: %w", err)
	}
	minBet, err := decimal.NewFromString(cfg.Market.MinBet)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: market.min_bet: %w", err)
	}
	fallbackAPY, err := decimal.NewFromString(cfg.Market.FallbackAPYPercent)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: market.fallback_apy_percent: %w", err)
	}

	split := domain.YieldSplit{
		PrizePoolPercent: cfg.Market.PrizePoolSharePercent,
		CreatorPercent:   cfg.Market.CreatorSharePercent,
	}
	if err := split.Validate(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	weights := domain.NewWeightEngine(maxBonus)
	deps.Weights = weights
	clock := domain.RealClock{}

	chainNames := make([]string, 0, len(cfg.Chains))
	calculators := make(map[string]domain.PayoutCalculator, len(cfg.Chains))
	projectors := make(map[string]domain.YieldProjector, len(cfg.Chains))
	oracles := make(map[string]domain.YieldRateOracle, len(cfg.Chains))
	for _, chainCfg := range cfg.Chains {
		chainNames = append(chainNames, chainCfg.Name)
		calculators[chainCfg.Name] = domain.NewPayoutCalculator(chainCfg.AssetDecimals)
		projectors[chainCfg.Name] = domain.NewYieldProjector(split, chainCfg.AssetDecimals)
		oracles[chainCfg.Name] = deps.Markets[chainCfg.Name]
	}

	// --- Services ---
	deps.Pools = service.NewPoolService(
		deps.PoolStore, deps.BetStore, deps.AuditStore,
		weights, deps.LockManager, deps.SignalBus, clock,
		minBet, cfg.Market.AllowCreatorBet, logger,
	)
	deps.Resolution = service.NewResolutionService(
		deps.PoolStore, deps.AuditStore, deps.LockManager, deps.SignalBus, clock,
		deps.Authorities, oracleMux{markets: deps.Markets},
		cfg.Market.LivenessWindow.Duration, logger,
	)
	deps.Payouts = service.NewPayoutService(
		deps.PoolStore, deps.BetStore, deps.AuditStore, deps.SignalBus, clock,
		calculators, projectors, logger,
	)
	deps.Yield = service.NewYieldService(
		deps.PoolStore, deps.ApyCache, deps.Authorities, oracles, projectors,
		clock, fallbackAPY, logger,
	)
	deps.Portfolio = service.NewPortfolioService(
		deps.PoolStore, deps.BetStore, resolver, clock, chainNames,
		calculators, projectors, logger,
	)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, deps.SignalBus, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// oracleMux routes outcome reads to the pool's own chain.
type oracleMux struct {
	markets map[string]*chain.Market
}

func (m oracleMux) Outcome(ctx context.Context, p domain.Pool) (bool, error) {
	market, ok := m.markets[p.Chain]
	if !ok {
		return false, fmt.Errorf("wire: no market for chain %q", p.Chain)
	}
	return market.Outcome(ctx, p)
}
