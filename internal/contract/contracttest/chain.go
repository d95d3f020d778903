// Package contracttest provides an in-memory OneWordStory deployment behind a
// wallet provider, for tests of code built on the contract package.
package contracttest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/olivoil/onewordstory/internal/contract"
	"github.com/olivoil/onewordstory/internal/wallet"
)

// DefaultChainID is the chain the simulated wallet reports.
const DefaultChainID = 31337

// genesisTime anchors block timestamps.
var genesisTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// RPCError is a JSON-RPC error with optional data, shaped like the errors the
// go-ethereum rpc client returns.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string  { return e.Message }
func (e *RPCError) ErrorCode() int { return e.Code }
func (e *RPCError) ErrorData() any { return e.Data }

// RevertData encodes reason as Error(string) revert data.
func RevertData(reason string) string {
	strType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: strType}}.Pack(reason)
	return hexutil.Encode(append(common.FromHex("0x08c379a0"), packed...))
}

// Chain is a simulated wallet provider and chain hosting one OneWordStory
// contract. Every accepted transaction is mined into its own block.
type Chain struct {
	// Notifications enables eth_subscribe; when false the chain behaves like
	// an HTTP endpoint.
	Notifications bool
	// ChainID is reported by eth_chainId.
	ChainID uint64
	// RequestErr, when set, is returned from eth_requestAccounts.
	RequestErr error
	// SendErr, when set, is returned from eth_sendTransaction.
	SendErr error
	// PendingPolls is how many receipt lookups report "not found" before a
	// transaction shows as mined.
	PendingPolls int

	abi     abi.ABI
	address common.Address
	feed    event.Feed

	mu       sync.Mutex
	drop     chan struct{}
	dropErr  error
	accounts []common.Address
	words    []string
	head     uint64
	logs     []types.Log
	receipts map[common.Hash]*types.Receipt
	polls    map[common.Hash]int
	calls    map[string]int
}

var _ contract.Conn = (*Chain)(nil)

// New deploys an empty story at address, authorizing accounts in the wallet.
func New(address common.Address, accounts ...common.Address) *Chain {
	return &Chain{
		Notifications: true,
		ChainID:       DefaultChainID,
		abi:           contract.DefaultABI(),
		address:       address,
		accounts:      accounts,
		head:          1,
		receipts:      make(map[common.Hash]*types.Receipt),
		polls:         make(map[common.Hash]int),
		calls:         make(map[string]int),
	}
}

// SetAccounts replaces the accounts the wallet authorizes.
func (c *Chain) SetAccounts(accounts ...common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = accounts
}

// Words returns the on-chain story.
func (c *Chain) Words() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.words...)
}

// Calls returns how many times an RPC method or contract method was invoked.
func (c *Chain) Calls(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

// Seed appends words without emitting events, as if they predate the client.
func (c *Chain) Seed(words ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.words = append(c.words, words...)
}

// Append mines a word contributed by another participant.
func (c *Chain) Append(from common.Address, word string) common.Hash {
	input, _ := c.abi.Pack(contract.MethodAddWord, word)
	hash, _ := c.execute(from, input)
	return hash
}

// Request implements wallet.Provider.
func (c *Chain) Request(_ context.Context, result any, method string, params ...any) error {
	c.count(method)
	switch method {
	case wallet.MethodAccounts:
		return assign(result, c.authorized())
	case wallet.MethodRequestAccounts:
		if c.RequestErr != nil {
			return c.RequestErr
		}
		return assign(result, c.authorized())
	case wallet.MethodChainID:
		return assign(result, hexutil.Uint64(c.ChainID))
	case wallet.MethodSendTransaction:
		if c.SendErr != nil {
			return c.SendErr
		}
		if len(params) != 1 {
			return &RPCError{Code: -32602, Message: "invalid params"}
		}
		tx, ok := params[0].(map[string]any)
		if !ok {
			return &RPCError{Code: -32602, Message: "invalid transaction object"}
		}
		from, _ := tx["from"].(common.Address)
		to, _ := tx["to"].(common.Address)
		data, _ := tx["data"].(hexutil.Bytes)
		if !c.isAuthorized(from) {
			return &RPCError{Code: 4100, Message: "The requested account has not been authorized by the user."}
		}
		if to != c.address {
			return &RPCError{Code: -32000, Message: "unknown contract"}
		}
		hash, err := c.execute(from, data)
		if err != nil {
			return err
		}
		return assign(result, hash)
	}
	return &RPCError{Code: -32601, Message: fmt.Sprintf("the method %s does not exist/is not available", method)}
}

// CallContract implements contract.Backend.
func (c *Chain) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if call.To == nil || *call.To != c.address {
		return nil, nil
	}
	method, err := c.abi.MethodById(call.Data)
	if err != nil {
		return nil, &RPCError{Code: 3, Message: "execution reverted"}
	}
	c.count(method.Name)
	switch method.Name {
	case contract.MethodGetStory:
		return method.Outputs.Pack(c.Words())
	case contract.MethodAddWord:
		word, err := c.decodeWord(call.Data)
		if err != nil {
			return nil, err
		}
		if reason := validate(word); reason != "" {
			return nil, &RPCError{Code: 3, Message: "execution reverted: " + reason, Data: RevertData(reason)}
		}
		return nil, nil
	}
	return nil, &RPCError{Code: 3, Message: "execution reverted"}
}

// TransactionReceipt implements contract.Backend.
func (c *Chain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["eth_getTransactionReceipt"]++
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if c.polls[hash] < c.PendingPolls {
		c.polls[hash]++
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// BlockNumber implements contract.Backend.
func (c *Chain) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

// FilterLogs implements contract.Backend.
func (c *Chain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.Log
	for _, l := range c.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// SubscribeFilterLogs implements contract.Backend.
func (c *Chain) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if !c.Notifications {
		return nil, rpc.ErrNotificationsUnsupported
	}
	c.mu.Lock()
	if c.drop == nil {
		c.drop = make(chan struct{})
	}
	drop := c.drop
	c.mu.Unlock()

	inner := c.feed.Subscribe(ch)
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer inner.Unsubscribe()
		select {
		case <-quit:
			return nil
		case <-drop:
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.dropErr
		}
	}), nil
}

// DropSubscriptions fails every live log subscription with err, as a dropped
// WebSocket connection would.
func (c *Chain) DropSubscriptions(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drop == nil {
		return
	}
	c.dropErr = err
	close(c.drop)
	c.drop = nil
}

// execute mines a transaction. Invalid words revert: the receipt is stored with
// a failed status and nothing is appended.
func (c *Chain) execute(from common.Address, input []byte) (common.Hash, error) {
	method, err := c.abi.MethodById(input)
	if err != nil || method.Name != contract.MethodAddWord {
		return common.Hash{}, &RPCError{Code: -32000, Message: "unsupported transaction"}
	}
	word, err := c.decodeWord(input)
	if err != nil {
		return common.Hash{}, err
	}

	c.mu.Lock()
	c.calls[contract.MethodAddWord]++
	c.head++
	block := c.head
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], block)
	hash := crypto.Keccak256Hash(from.Bytes(), input, nonce[:])

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(block),
	}
	c.receipts[hash] = receipt
	if validate(word) != "" {
		receipt.Status = types.ReceiptStatusFailed
		c.mu.Unlock()
		return hash, nil
	}

	c.words = append(c.words, word)
	ev := c.abi.Events[contract.EventWordAdded]
	data, err := ev.Inputs.NonIndexed().Pack(word, big.NewInt(genesisTime.Add(time.Duration(block)*12*time.Second).Unix()))
	if err != nil {
		c.mu.Unlock()
		return common.Hash{}, err
	}
	l := types.Log{
		Address:     c.address,
		Topics:      []common.Hash{ev.ID, common.BytesToHash(from.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      hash,
	}
	c.logs = append(c.logs, l)
	c.mu.Unlock()

	c.feed.Send(l)
	return hash, nil
}

func (c *Chain) decodeWord(input []byte) (string, error) {
	args, err := c.abi.Methods[contract.MethodAddWord].Inputs.Unpack(input[4:])
	if err != nil || len(args) != 1 {
		return "", &RPCError{Code: -32602, Message: "invalid calldata"}
	}
	word, _ := args[0].(string)
	return word, nil
}

func (c *Chain) authorized() []common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]common.Address(nil), c.accounts...)
}

func (c *Chain) isAuthorized(addr common.Address) bool {
	for _, a := range c.authorized() {
		if a == addr {
			return true
		}
	}
	return false
}

func (c *Chain) count(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
}

// validate mirrors the contract's word rules and returns a revert reason.
func validate(word string) string {
	switch {
	case word == "":
		return "Word cannot be empty"
	case strings.ContainsAny(word, " \t\n"):
		return "Only one word allowed"
	}
	return ""
}

func assign(result, value any) error {
	switch out := result.(type) {
	case *[]common.Address:
		v, ok := value.([]common.Address)
		if !ok {
			break
		}
		*out = v
		return nil
	case *hexutil.Uint64:
		v, ok := value.(hexutil.Uint64)
		if !ok {
			break
		}
		*out = v
		return nil
	case *common.Hash:
		v, ok := value.(common.Hash)
		if !ok {
			break
		}
		*out = v
		return nil
	}
	return errors.New("contracttest: unsupported result type")
}
