package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/driplabs/merkledrop-go/pkg/auth"
	"github.com/driplabs/merkledrop-go/pkg/config"
	"github.com/driplabs/merkledrop-go/pkg/distributor"
	"github.com/driplabs/merkledrop-go/pkg/ledger"
	ledgerERC20 "github.com/driplabs/merkledrop-go/pkg/ledger/erc20"
	ledgerMemory "github.com/driplabs/merkledrop-go/pkg/ledger/memory"
	"github.com/driplabs/merkledrop-go/pkg/logger"
	"github.com/driplabs/merkledrop-go/pkg/persistence"
	persistenceBadger "github.com/driplabs/merkledrop-go/pkg/persistence/badger"
	persistenceMemory "github.com/driplabs/merkledrop-go/pkg/persistence/memory"
	persistenceRedis "github.com/driplabs/merkledrop-go/pkg/persistence/redis"
	"github.com/driplabs/merkledrop-go/pkg/types"
)

// defaultHoldingAddress funds the in-memory ledger when no holding key is
// configured. Dev/test only; the erc20 ledger derives its holding address
// from the configured private key.
var defaultHoldingAddress = common.HexToAddress("0xD1517001d1517001d1517001d1517001d1517001")

func main() {
	app := &cli.App{
		Name:  "distributor",
		Usage: "Merkle-gated token distribution server",
		Description: `Serves one-shot token claims against a trusted merkle root.

Each eligible (account, amount) pair appears as a leaf in an off-chain merkle
tree. A claimant presents its allocation plus a proof; the server verifies the
proof against the trusted root, durably marks the account claimed, and pays
out from the holding account. Administrative operations (root rotation,
pause, withdraw) are authenticated by EIP-191 signature.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "admin-address",
				Aliases:  []string{"admin"},
				Usage:    "Address holding the administrative capability",
				EnvVars:  []string{config.EnvDropAdminAddress},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvDropPort},
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Bootstrap merkle root (0x-prefixed 32-byte hash); a persisted root wins",
				EnvVars: []string{config.EnvDropRoot},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Value:   string(config.PersistenceTypeMemory),
				Usage:   "State backend: memory, badger, redis",
				EnvVars: []string{config.EnvDropPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory for the badger backend",
				EnvVars: []string{config.EnvDropDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvDropRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvDropRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvDropRedisDB},
			},
			&cli.StringFlag{
				Name:    "ledger",
				Value:   string(config.LedgerModeMemory),
				Usage:   "Token ledger: memory (dev), erc20",
				EnvVars: []string{config.EnvDropLedgerMode},
			},
			&cli.StringFlag{
				Name:    "token-address",
				Usage:   "ERC-20 token contract address",
				EnvVars: []string{config.EnvDropTokenAddress},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Ethereum JSON-RPC endpoint for the erc20 ledger",
				EnvVars: []string{config.EnvDropRPCURL},
			},
			&cli.StringFlag{
				Name:    "holding-private-key",
				Usage:   "Hex private key of the token holding account",
				EnvVars: []string{config.EnvDropHoldingPrivateKey},
			},
			&cli.StringFlag{
				Name:    "initial-balance",
				Value:   "0",
				Usage:   "Holding balance for the memory ledger (decimal)",
				EnvVars: []string{config.EnvDropInitialBalance},
			},
			&cli.Float64Flag{
				Name:    "claim-rate",
				Value:   10,
				Usage:   "Claim requests allowed per second",
				EnvVars: []string{config.EnvDropClaimRate},
			},
			&cli.IntFlag{
				Name:    "claim-burst",
				Value:   20,
				Usage:   "Claim request burst size",
				EnvVars: []string{config.EnvDropClaimBurst},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runDistributor,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runDistributor(c *cli.Context) error {
	cfg := parseConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer l.Sync() //nolint:errcheck

	store, err := buildPersistence(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to open persistence backend: %w", err)
	}
	defer store.Close()

	tokenLedger, holding, err := buildLedger(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to build token ledger: %w", err)
	}

	adminAddress := common.HexToAddress(cfg.AdminAddress)
	authorizer, err := auth.NewStaticAuthorizer(adminAddress)
	if err != nil {
		return fmt.Errorf("failed to build authorizer: %w", err)
	}

	d, err := distributor.NewDistributor(store, tokenLedger, authorizer, holding, l)
	if err != nil {
		return fmt.Errorf("failed to build distributor: %w", err)
	}

	if err := bootstrapRoot(c.Context, cfg, d, adminAddress, l); err != nil {
		return err
	}

	server := distributor.NewServer(d, store, cfg.Port, cfg.ClaimRatePerSecond, cfg.ClaimBurst)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Distributor running",
		"port", cfg.Port,
		"admin", adminAddress.Hex(),
		"holding", holding.Hex(),
		"persistence", cfg.PersistenceType,
		"ledger", cfg.LedgerMode,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	l.Sugar().Infow("Shutting down", "signal", sig.String())
	return server.Stop()
}

func parseConfig(c *cli.Context) *config.DistributorConfig {
	return &config.DistributorConfig{
		AdminAddress:       c.String("admin-address"),
		Port:               c.Int("port"),
		Root:               c.String("root"),
		PersistenceType:    config.PersistenceType(c.String("persistence")),
		DataDir:            c.String("data-dir"),
		RedisAddress:       c.String("redis-address"),
		RedisPassword:      c.String("redis-password"),
		RedisDB:            c.Int("redis-db"),
		LedgerMode:         config.LedgerMode(c.String("ledger")),
		TokenAddress:       c.String("token-address"),
		RpcUrl:             c.String("rpc-url"),
		HoldingPrivateKey:  c.String("holding-private-key"),
		InitialBalance:     c.String("initial-balance"),
		ClaimRatePerSecond: c.Float64("claim-rate"),
		ClaimBurst:         c.Int("claim-burst"),
		Verbose:            c.Bool("verbose"),
	}
}

func buildPersistence(cfg *config.DistributorConfig, l *zap.Logger) (persistence.IDistributorPersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeBadger:
		return persistenceBadger.NewBadgerPersistence(cfg.DataDir, l)
	case config.PersistenceTypeRedis:
		return persistenceRedis.NewRedisPersistence(&persistenceRedis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
	default:
		l.Sugar().Warnw("Using in-memory persistence; claim state will not survive restarts")
		return persistenceMemory.NewMemoryPersistence(), nil
	}
}

func buildLedger(cfg *config.DistributorConfig, l *zap.Logger) (ledger.ITokenLedger, common.Address, error) {
	switch cfg.LedgerMode {
	case config.LedgerModeERC20:
		client, err := ethclient.Dial(cfg.RpcUrl)
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("failed to dial %s: %w", cfg.RpcUrl, err)
		}
		erc20, err := ledgerERC20.NewERC20Ledger(client, common.HexToAddress(cfg.TokenAddress), cfg.HoldingPrivateKey, l)
		if err != nil {
			return nil, common.Address{}, err
		}
		return erc20, erc20.HoldingAddress(), nil
	default:
		holding := defaultHoldingAddress
		if cfg.HoldingPrivateKey != "" {
			key, err := crypto.HexToECDSA(cfg.HoldingPrivateKey)
			if err != nil {
				return nil, common.Address{}, fmt.Errorf("failed to parse holding key: %w", err)
			}
			holding = crypto.PubkeyToAddress(key.PublicKey)
		}
		balance, err := types.ParseAmount(cfg.InitialBalance)
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("failed to parse initial balance: %w", err)
		}
		l.Sugar().Warnw("Using in-memory token ledger; transfers are not real", "holding", holding.Hex())
		return ledgerMemory.NewMemoryLedger(holding, balance), holding, nil
	}
}

// bootstrapRoot installs the configured root unless a previous run already
// persisted one.
func bootstrapRoot(ctx context.Context, cfg *config.DistributorConfig, d *distributor.Distributor, admin common.Address, l *zap.Logger) error {
	root, ok, err := cfg.RootHash()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if existing, set := d.Root(); set {
		l.Sugar().Infow("Persisted root takes precedence over --root",
			"persisted", fmt.Sprintf("0x%x", existing))
		return nil
	}

	if err := d.SetRoot(ctx, admin, root); err != nil {
		return fmt.Errorf("failed to bootstrap root: %w", err)
	}
	l.Sugar().Infow("Bootstrapped merkle root", "root", cfg.Root)
	return nil
}
