// Package wallet discovers and connects the account held by a wallet provider.
package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/olivoil/onewordstory/internal/failure"
)

// JSON-RPC methods served by a wallet provider.
const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
	MethodSendTransaction = "eth_sendTransaction"
)

// codeUserRejected is the EIP-1193 "user rejected the request" error code.
const codeUserRejected = 4001

// Provider is the request/response boundary of a wallet. It matches the shape
// of (*rpc.Client).CallContext.
type Provider interface {
	Request(ctx context.Context, result any, method string, params ...any) error
}

// ErrNoProvider is the cause attached to ProviderUnavailable failures when no
// provider was ever installed.
var ErrNoProvider = errors.New("wallet: no provider")

func providerUnavailable(cause error) error {
	return failure.Wrap(failure.CodeProviderUnavailable,
		"Make sure you have a wallet provider running!", cause)
}

// classify normalizes a failed provider request. RPC-level errors carry a
// code from the provider; anything else means the transport itself failed.
func classify(method string, err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == codeUserRejected {
			return failure.Wrap(failure.CodeUserRejected,
				"Error connecting: the request was rejected in the wallet.", err)
		}
		return failure.Wrap(failure.CodeRequestFailed, "Error connecting: "+err.Error(), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return failure.Wrap(failure.CodeRequestFailed, "Error connecting: "+method+" was cancelled.", err)
	}
	return providerUnavailable(err)
}
