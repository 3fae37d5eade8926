package erc20

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Minimal ERC-20 fragment: the two methods the distributor consumes.
const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// Fallback tip when the backend doesn't support eth_maxPriorityFeePerGas.
var fallbackGasTipCap = big.NewInt(1500000000) // 1.5 gwei

// ERC20Ledger implements ITokenLedger against an ERC-20 token contract.
// transfer is sent as a signed EIP-1559 transaction from the distributor's
// holding key; balanceOf is a read-only eth_call.
type ERC20Ledger struct {
	client     *ethclient.Client
	token      common.Address
	tokenABI   abi.ABI
	privateKey *ecdsa.PrivateKey
	holding    common.Address
	chainID    *big.Int
	logger     *zap.Logger
}

// NewERC20Ledger creates an ERC-20 backed ledger. privateKeyHex is the
// holding account's key, with or without 0x prefix.
func NewERC20Ledger(client *ethclient.Client, token common.Address, privateKeyHex string, logger *zap.Logger) (*ERC20Ledger, error) {
	if token == (common.Address{}) {
		return nil, fmt.Errorf("token contract address cannot be the zero address")
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse holding private key: %w", err)
	}
	holding := crypto.PubkeyToAddress(privateKey.PublicKey)

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain ID: %w", err)
	}

	logger.Sugar().Infow("ERC20 ledger initialized",
		"token", token.Hex(), "holding", holding.Hex(), "chain_id", chainID.String())

	return &ERC20Ledger{
		client:     client,
		token:      token,
		tokenABI:   parsedABI,
		privateKey: privateKey,
		holding:    holding,
		chainID:    chainID,
		logger:     logger,
	}, nil
}

// HoldingAddress returns the address the ledger transfers out of.
func (l *ERC20Ledger) HoldingAddress() common.Address {
	return l.holding
}

// BalanceOf reads an account's token balance via eth_call.
func (l *ERC20Ledger) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	input, err := l.tokenABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	output, err := l.client.CallContract(ctx, ethereum.CallMsg{
		To:   &l.token,
		Data: input,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	results, err := l.tokenABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}

	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", results[0])
	}
	return balance, nil
}

// Transfer sends a signed ERC-20 transfer and waits for it to mine.
// A reverted transaction (receipt status 0) reports a declined transfer
// (false, nil); transport and signing failures return an error.
func (l *ERC20Ledger) Transfer(ctx context.Context, to common.Address, amount *big.Int) (bool, error) {
	input, err := l.tokenABI.Pack("transfer", to, amount)
	if err != nil {
		return false, fmt.Errorf("failed to pack transfer call: %w", err)
	}

	gasTipCap, err := l.client.SuggestGasTipCap(ctx)
	if err != nil {
		l.logger.Sugar().Warnw("Transfer: cannot get gasTipCap, using fallback", "error", err)
		gasTipCap = fallbackGasTipCap
	}

	header, err := l.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get latest block header: %w", err)
	}

	// basefee * 2 + tip gives headroom for fee spikes between now and inclusion
	gasFeeCap := new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(2)),
		gasTipCap,
	)

	gasLimit, err := l.client.EstimateGas(ctx, ethereum.CallMsg{
		From:      l.holding,
		To:        &l.token,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Data:      input,
	})
	if err != nil {
		return false, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gasLimit = gasLimit + gasLimit/5 // 20% buffer

	nonce, err := l.client.PendingNonceAt(ctx, l.holding)
	if err != nil {
		return false, fmt.Errorf("failed to get nonce: %w", err)
	}

	tx, err := ethereumTypes.SignNewTx(l.privateKey, ethereumTypes.LatestSignerForChainID(l.chainID), &ethereumTypes.DynamicFeeTx{
		ChainID:   l.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &l.token,
		Data:      input,
	})
	if err != nil {
		return false, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := l.client.SendTransaction(ctx, tx); err != nil {
		return false, fmt.Errorf("failed to send transaction: %w", err)
	}

	l.logger.Sugar().Infow("Transfer: transaction sent",
		"tx_hash", tx.Hash().Hex(), "to", to.Hex(), "amount", amount.String(), "nonce", nonce)

	receipt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return false, fmt.Errorf("failed to wait for transaction receipt: %w", err)
	}

	if receipt.Status != ethereumTypes.ReceiptStatusSuccessful {
		l.logger.Sugar().Warnw("Transfer: transaction reverted",
			"tx_hash", receipt.TxHash.Hex(), "gas_used", receipt.GasUsed)
		return false, nil
	}

	l.logger.Sugar().Infow("Transfer: transaction succeeded",
		"tx_hash", receipt.TxHash.Hex(), "gas_used", receipt.GasUsed, "block", receipt.BlockNumber.Uint64())

	return true, nil
}
