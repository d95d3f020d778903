package contract

import (
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/olivoil/onewordstory/internal/wallet"
)

// Signer sends transactions from one account through the wallet, which holds
// the key and signs on the user's approval.
type Signer struct {
	provider wallet.Provider
	from     common.Address
	chainID  uint64
}

// newSigner derives a signer for s. The wallet must still list the account and,
// when want is non-zero, be on that chain.
func newSigner(ctx context.Context, p wallet.Provider, s wallet.Session, want uint64) (*Signer, error) {
	var accounts []common.Address
	if err := p.Request(ctx, &accounts, wallet.MethodAccounts); err != nil {
		return nil, signerUnavailable("list accounts", err)
	}
	if !slices.Contains(accounts, s.Address) {
		return nil, signerUnavailable(fmt.Sprintf("account %s is not authorized in the wallet", s.Short()), nil)
	}

	var id hexutil.Uint64
	if err := p.Request(ctx, &id, wallet.MethodChainID); err != nil {
		return nil, signerUnavailable("read chain id", err)
	}
	if want != 0 && uint64(id) != want {
		return nil, signerUnavailable(fmt.Sprintf("wallet is on chain %d, expected %d", uint64(id), want), nil)
	}
	return &Signer{provider: p, from: s.Address, chainID: uint64(id)}, nil
}

// Address returns the signing account.
func (s *Signer) Address() common.Address { return s.from }

// ChainID returns the chain the wallet reported at bind time.
func (s *Signer) ChainID() uint64 { return s.chainID }

// SendTransaction asks the wallet to sign and broadcast a call to `to`.
func (s *Signer) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	tx := map[string]any{
		"from": s.from,
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	var hash common.Hash
	if err := s.provider.Request(ctx, &hash, wallet.MethodSendTransaction, tx); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}
