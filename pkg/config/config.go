package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for distributor configuration
const (
	EnvDropAdminAddress      = "DROP_ADMIN_ADDRESS"
	EnvDropPort              = "DROP_PORT"
	EnvDropRoot              = "DROP_ROOT"
	EnvDropPersistenceType   = "DROP_PERSISTENCE_TYPE"
	EnvDropDataDir           = "DROP_DATA_DIR"
	EnvDropRedisAddress      = "DROP_REDIS_ADDRESS"
	EnvDropRedisPassword     = "DROP_REDIS_PASSWORD"
	EnvDropRedisDB           = "DROP_REDIS_DB"
	EnvDropLedgerMode        = "DROP_LEDGER_MODE"
	EnvDropTokenAddress      = "DROP_TOKEN_ADDRESS"
	EnvDropRPCURL            = "DROP_RPC_URL"
	EnvDropHoldingPrivateKey = "DROP_HOLDING_PRIVATE_KEY"
	EnvDropInitialBalance    = "DROP_INITIAL_BALANCE"
	EnvDropClaimRate         = "DROP_CLAIM_RATE"
	EnvDropClaimBurst        = "DROP_CLAIM_BURST"
	EnvDropVerbose           = "DROP_VERBOSE"
)

// PersistenceType selects the state backend.
type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// LedgerMode selects the token ledger backing the distributor.
type LedgerMode string

const (
	// LedgerModeMemory keeps balances in process memory. Dev/test only.
	LedgerModeMemory LedgerMode = "memory"
	// LedgerModeERC20 draws on an ERC-20 token contract over JSON-RPC.
	LedgerModeERC20 LedgerMode = "erc20"
)

// DistributorConfig represents the complete configuration for a
// distributor server.
type DistributorConfig struct {
	// AdminAddress holds the administrative capability: set root, pause,
	// withdraw. Withdrawals are paid out to this address.
	AdminAddress string `json:"admin_address"`
	Port         int    `json:"port"`

	// Root optionally bootstraps the trusted merkle root (0x-prefixed,
	// 32 bytes). A root already persisted by a previous run wins.
	Root string `json:"root,omitempty"`

	// Persistence
	PersistenceType PersistenceType `json:"persistence_type"`
	DataDir         string          `json:"data_dir,omitempty"`
	RedisAddress    string          `json:"redis_address,omitempty"`
	RedisPassword   string          `json:"-"`
	RedisDB         int             `json:"redis_db,omitempty"`

	// Ledger
	LedgerMode        LedgerMode `json:"ledger_mode"`
	TokenAddress      string     `json:"token_address,omitempty"`
	RpcUrl            string     `json:"rpc_url,omitempty"`
	HoldingPrivateKey string     `json:"-"`
	// InitialBalance funds the memory ledger's holding account (decimal).
	InitialBalance string `json:"initial_balance,omitempty"`

	// Claim endpoint rate limiting
	ClaimRatePerSecond float64 `json:"claim_rate_per_second"`
	ClaimBurst         int     `json:"claim_burst"`

	// Operational settings
	Verbose bool `json:"verbose"`
}

// Validate validates the distributor configuration.
func (c *DistributorConfig) Validate() error {
	var allErrors field.ErrorList

	if c.AdminAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("adminAddress"), "admin address is required"))
	} else if !common.IsHexAddress(c.AdminAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("adminAddress"), c.AdminAddress, "not a valid hex address"))
	}

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	if c.Root != "" {
		if b, err := hexutil.Decode(c.Root); err != nil || len(b) != 32 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("root"), c.Root, "root must be a 0x-prefixed 32-byte hash"))
		}
	}

	switch c.PersistenceType {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.DataDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataDir"), "data dir is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redis address is required for redis persistence"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"), c.RedisDB, "redis db must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), string(c.PersistenceType),
			[]string{string(PersistenceTypeMemory), string(PersistenceTypeBadger), string(PersistenceTypeRedis)}))
	}

	switch c.LedgerMode {
	case LedgerModeMemory:
	case LedgerModeERC20:
		if c.TokenAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("tokenAddress"), "token address is required for erc20 ledger"))
		} else if !common.IsHexAddress(c.TokenAddress) {
			allErrors = append(allErrors, field.Invalid(field.NewPath("tokenAddress"), c.TokenAddress, "not a valid hex address"))
		}
		if c.RpcUrl == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpc url is required for erc20 ledger"))
		}
		if c.HoldingPrivateKey == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("holdingPrivateKey"), "holding private key is required for erc20 ledger"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("ledgerMode"), string(c.LedgerMode),
			[]string{string(LedgerModeMemory), string(LedgerModeERC20)}))
	}

	if c.ClaimRatePerSecond <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("claimRatePerSecond"), c.ClaimRatePerSecond, "claim rate must be positive"))
	}
	if c.ClaimBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("claimBurst"), c.ClaimBurst, "claim burst must be at least 1"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// RootHash parses the bootstrap root. Only call after Validate.
func (c *DistributorConfig) RootHash() ([32]byte, bool, error) {
	if c.Root == "" {
		return [32]byte{}, false, nil
	}
	b, err := hexutil.Decode(c.Root)
	if err != nil || len(b) != 32 {
		return [32]byte{}, false, fmt.Errorf("root %q is not a 32-byte hash", c.Root)
	}
	var root [32]byte
	copy(root[:], b)
	return root, true, nil
}
