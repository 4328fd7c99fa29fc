package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Transactor signs and submits contract transactions for one account.
type Transactor struct {
	client *Client
	key    *ecdsa.PrivateKey
	from   common.Address
	logger *zap.Logger
}

// NewTransactor parses a hex private key (with or without 0x).
func NewTransactor(client *Client, hexKey string, logger *zap.Logger) (*Transactor, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Transactor{
		client: client,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
		logger: logger,
	}, nil
}

// From is the signing account.
func (t *Transactor) From() common.Address {
	return t.from
}

// Transact packs method and sends it to contract with value wei attached.
func (t *Transactor) Transact(
	ctx context.Context,
	contract common.Address,
	parsed abi.ABI,
	value *big.Int,
	method string,
	args ...interface{},
) (*types.Transaction, error) {
	chainID, err := t.client.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(t.key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	if value != nil && value.Sign() > 0 {
		opts.Value = new(big.Int).Set(value)
	}

	if err := t.client.wait(ctx); err != nil {
		return nil, err
	}
	bound := bind.NewBoundContract(contract, parsed, t.client.Eth(), t.client.Eth(), t.client.Eth())
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	t.logger.Info("transaction sent",
		zap.String("method", method),
		zap.String("to", contract.Hex()),
		zap.String("tx", tx.Hash().Hex()),
	)
	return tx, nil
}

// WaitMined blocks until tx is included and returns its receipt.
func (t *Transactor) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, t.client.Eth(), tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", tx.Hash().Hex(), err)
	}
	t.logger.Info("transaction mined",
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("status", receipt.Status),
	)
	return receipt, nil
}
