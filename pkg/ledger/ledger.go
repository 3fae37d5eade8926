package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ITokenLedger is the external token ledger the distributor draws on.
//
// Transfer moves amount from the distributor's holding account to the
// recipient. A declined transfer (e.g. insufficient holding funds) returns
// (false, nil), mirroring the boolean-return token convention; errors are
// reserved for transport-level failures such as an unreachable node.
type ITokenLedger interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (bool, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}
