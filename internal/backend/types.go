package backend

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/olivoil/onewordstory/internal/contract"
	"github.com/olivoil/onewordstory/internal/story"
	"github.com/olivoil/onewordstory/internal/wallet"
)

// Snapshot is everything the UI renders, read in one go.
type Snapshot struct {
	// ProviderReady is true once a wallet provider was dialed.
	ProviderReady bool
	Session       wallet.Session
	// Bound is true while a contract handle is active.
	Bound    bool
	Contract common.Address
	ChainID  uint64
	Story    []string
	Pending  string
	State    story.State
}

// Connected reports whether an account is connected and bound.
func (s Snapshot) Connected() bool {
	return !s.Session.Absent() && s.Bound
}

// AppendMsg is sent for every WordAdded notification. Receiving it means the
// story should be re-read.
type AppendMsg struct {
	Event contract.WordAdded
}
