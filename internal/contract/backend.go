// Package contract binds a wallet session to the deployed OneWordStory
// contract and exposes its read, write and event boundaries.
package contract

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/olivoil/onewordstory/internal/wallet"
)

// Backend is the chain access a Handle needs. *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Conn is a wallet provider that also serves chain reads, which is what an
// injected wallet or a JSON-RPC endpoint with managed accounts offers.
type Conn interface {
	wallet.Provider
	Backend
}

// Tx is a submitted addWord transaction awaiting confirmation.
type Tx struct {
	Hash common.Hash
	Word string

	from common.Address
	data []byte
}

// WordAdded is a decoded append notification.
type WordAdded struct {
	Contributor common.Address
	Word        string
	Timestamp   time.Time
	BlockNumber uint64
	TxHash      common.Hash
}
