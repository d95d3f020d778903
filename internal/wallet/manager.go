package wallet

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/olivoil/onewordstory/internal/failure"
)

// Manager owns the wallet Session. A nil provider means no wallet is present;
// every operation then reports ProviderUnavailable.
type Manager struct {
	mu       sync.Mutex
	provider Provider
	current  Session
	logger   *slog.Logger
}

// NewManager creates a session manager. p may be nil.
func NewManager(p Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{provider: p, logger: logger}
}

// SetProvider installs a provider that became available after startup. The
// current session is dropped since it belonged to the previous provider.
func (m *Manager) SetProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provider = p
	m.current = Session{}
}

// Provider returns the installed provider, or nil.
func (m *Manager) Provider() Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider
}

// Current returns the connected session (possibly absent).
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Disconnect forgets the current session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Session{}
}

// DetectExistingSession returns an already-authorized account without
// prompting. An empty account list yields an absent session and no error.
func (m *Manager) DetectExistingSession(ctx context.Context) (Session, error) {
	accounts, err := m.accounts(ctx, MethodAccounts)
	if err != nil {
		return Session{}, err
	}
	if len(accounts) == 0 {
		m.logger.Info("no authorized account found")
		return Session{}, nil
	}
	s := m.adopt(accounts[0])
	m.logger.Info("found an authorized account", "account", s.Address.Hex())
	return s, nil
}

// RequestSession prompts the user to authorize an account.
func (m *Manager) RequestSession(ctx context.Context) (Session, error) {
	accounts, err := m.accounts(ctx, MethodRequestAccounts)
	if err != nil {
		return Session{}, err
	}
	if len(accounts) == 0 {
		return Session{}, failure.New(failure.CodeRequestFailed,
			"Error connecting: the wallet returned no accounts.")
	}
	s := m.adopt(accounts[0])
	m.logger.Info("connected", "account", s.Address.Hex())
	return s, nil
}

// CheckAccounts re-reads the authorized accounts and reports whether the
// session changed. A provider that no longer lists the current account moves
// the session to its first account, or to absent when none is left.
func (m *Manager) CheckAccounts(ctx context.Context) (Session, bool, error) {
	accounts, err := m.accounts(ctx, MethodAccounts)
	if err != nil {
		return m.Current(), false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.current
	if prev.Absent() {
		// Only an explicit connect or detect creates a session.
		return prev, false, nil
	}
	for _, a := range accounts {
		if a == prev.Address {
			return prev, false, nil
		}
	}
	next := Session{}
	if len(accounts) > 0 {
		next = Session{Address: accounts[0]}
	}
	m.current = next
	m.logger.Info("accounts changed", "from", prev.String(), "to", next.String())
	return next, true, nil
}

func (m *Manager) accounts(ctx context.Context, method string) ([]common.Address, error) {
	p := m.Provider()
	if p == nil {
		return nil, providerUnavailable(ErrNoProvider)
	}
	var accounts []common.Address
	if err := p.Request(ctx, &accounts, method); err != nil {
		m.logger.Error("wallet request failed", "method", method, "error", err)
		return nil, classify(method, err)
	}
	return accounts, nil
}

func (m *Manager) adopt(addr common.Address) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Session{Address: addr}
	return m.current
}
