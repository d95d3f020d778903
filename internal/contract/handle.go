package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

// codeMethodNotFound is the JSON-RPC error for an unsupported method, which
// some providers return for eth_subscribe.
const codeMethodNotFound = -32601

// Handle is a signing-capable reference to the deployed contract. It stops
// working once its Binder binds another session.
type Handle struct {
	address      common.Address
	abi          abi.ABI
	backend      Backend
	signer       *Signer
	pollInterval time.Duration
	logger       *slog.Logger

	stale atomic.Bool
}

// Address returns the contract address.
func (h *Handle) Address() common.Address { return h.address }

// Signer returns the signer the handle was bound with.
func (h *Handle) Signer() *Signer { return h.signer }

// Stale reports whether the handle was replaced.
func (h *Handle) Stale() bool { return h.stale.Load() }

func (h *Handle) invalidate() { h.stale.Store(true) }

func (h *Handle) check() error {
	if h.stale.Load() {
		return signerUnavailable("contract handle belongs to a previous session; reconnect the wallet", nil)
	}
	return nil
}

// Story reads the complete word sequence.
func (h *Handle) Story(ctx context.Context) ([]string, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	input, err := h.abi.Pack(MethodGetStory)
	if err != nil {
		return nil, fetchFailed(err)
	}
	msg := ethereum.CallMsg{From: h.signer.from, To: &h.address, Data: input}
	output, err := h.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fetchFailed(err)
	}
	values, err := h.abi.Unpack(MethodGetStory, output)
	if err != nil {
		return nil, fetchFailed(err)
	}
	if len(values) == 0 {
		return nil, fetchFailed(errors.New("empty result"))
	}
	words := *abi.ConvertType(values[0], new([]string)).(*[]string)
	return words, nil
}

// AddWord submits word and returns the transaction without waiting for it.
func (h *Handle) AddWord(ctx context.Context, word string) (*Tx, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	input, err := h.abi.Pack(MethodAddWord, word)
	if err != nil {
		return nil, submitFailed(err)
	}
	hash, err := h.signer.SendTransaction(ctx, h.address, input)
	if err != nil {
		h.logger.Error("error adding word", "word", word, "error", err)
		return nil, submitFailed(err)
	}
	h.logger.Info("word submitted", "word", word, "tx", hash.Hex())
	return &Tx{Hash: hash, Word: word, from: h.signer.from, data: input}, nil
}

// WaitMined blocks until tx is included in a block. A reverted transaction is
// replayed as a call against the parent block to recover its revert reason.
// There is no timeout besides ctx.
func (h *Handle) WaitMined(ctx context.Context, tx *Tx) (*types.Receipt, error) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := h.backend.TransactionReceipt(ctx, tx.Hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, h.revertError(ctx, tx, receipt)
			}
			h.logger.Info("word added, transaction confirmed", "tx", tx.Hash.Hex(), "block", receipt.BlockNumber)
			return receipt, nil
		case errors.Is(err, ethereum.NotFound), err == nil:
			h.logger.Debug("transaction not yet mined", "tx", tx.Hash.Hex())
		case retryable(err):
			h.logger.Debug("receipt retrieval failed", "tx", tx.Hash.Hex(), "error", err)
		default:
			h.logger.Error("receipt retrieval failed, giving up", "tx", tx.Hash.Hex(), "error", err)
			return nil, submitFailed(err)
		}

		select {
		case <-ctx.Done():
			return nil, submitFailed(ctx.Err())
		case <-ticker.C:
		}
	}
}

func (h *Handle) revertError(ctx context.Context, tx *Tx, receipt *types.Receipt) error {
	var at *big.Int
	if receipt.BlockNumber != nil && receipt.BlockNumber.Sign() > 0 {
		at = new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	}
	msg := ethereum.CallMsg{From: tx.from, To: &h.address, Data: tx.data}
	_, err := h.backend.CallContract(ctx, msg, at)
	if err == nil {
		err = fmt.Errorf("transaction %s reverted", tx.Hash.Hex())
	}
	h.logger.Error("transaction reverted", "tx", tx.Hash.Hex(), "error", err)
	return submitFailed(err)
}

// WatchWordAdded streams WordAdded notifications from every contributor into
// sink. Transports without notifications (HTTP) are polled instead.
func (h *Handle) WatchWordAdded(ctx context.Context, sink chan<- WordAdded) (event.Subscription, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{h.address},
		Topics:    [][]common.Hash{{h.abi.Events[EventWordAdded].ID}},
	}

	logs := make(chan types.Log, 16)
	sub, err := h.backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		if notificationsUnsupported(err) {
			h.logger.Debug("log subscriptions unsupported, polling", "interval", h.pollInterval)
			return h.pollWordAdded(ctx, query, sink)
		}
		return nil, fmt.Errorf("subscribe %s: %w", EventWordAdded, err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				ev, err := h.unpackWordAdded(l)
				if err != nil {
					h.logger.Warn("undecodable log", "tx", l.TxHash.Hex(), "error", err)
					continue
				}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (h *Handle) pollWordAdded(ctx context.Context, query ethereum.FilterQuery, sink chan<- WordAdded) (event.Subscription, error) {
	head, err := h.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", EventWordAdded, err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(h.pollInterval)
		defer ticker.Stop()

		next := head + 1
		for {
			select {
			case <-quit:
				return nil
			case <-ticker.C:
			}

			latest, err := h.backend.BlockNumber(ctx)
			if err != nil {
				h.logger.Warn("poll block number", "error", err)
				continue
			}
			if latest < next {
				continue
			}
			q := query
			q.FromBlock = new(big.Int).SetUint64(next)
			q.ToBlock = new(big.Int).SetUint64(latest)
			logs, err := h.backend.FilterLogs(ctx, q)
			if err != nil {
				h.logger.Warn("poll logs", "from", next, "to", latest, "error", err)
				continue
			}
			for _, l := range logs {
				ev, err := h.unpackWordAdded(l)
				if err != nil {
					h.logger.Warn("undecodable log", "tx", l.TxHash.Hex(), "error", err)
					continue
				}
				select {
				case sink <- ev:
				case <-quit:
					return nil
				}
			}
			next = latest + 1
		}
	}), nil
}

func (h *Handle) unpackWordAdded(l types.Log) (WordAdded, error) {
	ev, ok := h.abi.Events[EventWordAdded]
	if !ok {
		return WordAdded{}, fmt.Errorf("abi has no %s event", EventWordAdded)
	}
	if len(l.Topics) == 0 || l.Topics[0] != ev.ID {
		return WordAdded{}, fmt.Errorf("log is not a %s event", EventWordAdded)
	}

	values := make(map[string]any)
	if err := h.abi.UnpackIntoMap(values, EventWordAdded, l.Data); err != nil {
		return WordAdded{}, err
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, l.Topics[1:]); err != nil {
		return WordAdded{}, err
	}

	out := WordAdded{BlockNumber: l.BlockNumber, TxHash: l.TxHash}
	out.Contributor, _ = values["contributor"].(common.Address)
	out.Word, _ = values["word"].(string)
	if ts, ok := values["timestamp"].(*big.Int); ok && ts.IsInt64() {
		out.Timestamp = time.Unix(ts.Int64(), 0)
	}
	return out, nil
}

// retryable reports whether a receipt lookup failed on the node side. A closed
// client or a broken transport does not recover on its own.
func retryable(err error) bool {
	if errors.Is(err, rpc.ErrClientQuit) {
		return false
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

func notificationsUnsupported(err error) bool {
	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodNotFound
}
