package app

import "github.com/olivoil/onewordstory/internal/wallet"

// SessionDetectedMsg is sent after looking for an already-authorized account.
type SessionDetectedMsg struct {
	Session wallet.Session
	Err     error
}

// ConnectedMsg is sent when an explicit wallet connection completes.
type ConnectedMsg struct {
	Session wallet.Session
	Err     error
}

// StoryLoadedMsg is sent when a story refresh completes.
type StoryLoadedMsg struct {
	Err error
}

// WordSubmittedMsg is sent when a contribution is confirmed or fails.
// Committed is set once the word is on chain, even if Err reports a failed
// refresh afterwards.
type WordSubmittedMsg struct {
	Word      string
	Committed bool
	Err       error
}

// AccountsCheckedMsg is sent after polling the wallet's accounts.
// Resubscribed is set when a failed append stream was restored.
type AccountsCheckedMsg struct {
	Session      wallet.Session
	Changed      bool
	Resubscribed bool
	Err          error
}

// AccountsTickMsg triggers a periodic account check.
type AccountsTickMsg struct{}

// ProviderGoneMsg is sent once the client dropped a vanished provider.
type ProviderGoneMsg struct{}
