package contract

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/olivoil/onewordstory/internal/wallet"
)

// DefaultPollInterval is how often receipts and logs are polled when the
// transport cannot push them.
const DefaultPollInterval = time.Second

// Config is the static contract configuration.
type Config struct {
	Address common.Address
	ABI     abi.ABI
	// ChainID, when non-zero, is the only chain the wallet may be on.
	ChainID      uint64
	PollInterval time.Duration
}

// Binder creates contract handles. At most one handle is valid at a time:
// binding again invalidates the previous one.
type Binder struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	active *Handle
}

// NewBinder creates a binder for the configured contract.
func NewBinder(cfg Config, logger *slog.Logger) *Binder {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{cfg: cfg, logger: logger}
}

// Address returns the configured contract address.
func (b *Binder) Address() common.Address { return b.cfg.Address }

// Bind derives a signer for s from conn and returns a handle addressed at the
// configured contract. The previously active handle is invalidated whether or
// not binding succeeds.
func (b *Binder) Bind(ctx context.Context, conn Conn, s wallet.Session) (*Handle, error) {
	b.Unbind()

	if conn == nil {
		return nil, signerUnavailable("no wallet provider", wallet.ErrNoProvider)
	}
	if s.Absent() {
		return nil, signerUnavailable("no connected account", nil)
	}
	signer, err := newSigner(ctx, conn, s, b.cfg.ChainID)
	if err != nil {
		b.logger.Error("bind failed", "account", s.String(), "error", err)
		return nil, err
	}

	h := &Handle{
		address:      b.cfg.Address,
		abi:          b.cfg.ABI,
		backend:      conn,
		signer:       signer,
		pollInterval: b.cfg.PollInterval,
		logger:       b.logger.With("contract", b.cfg.Address.Hex(), "account", s.Address.Hex()),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active != nil {
		// A concurrent Bind won the race; keep only the newest.
		b.active.invalidate()
	}
	b.active = h
	h.logger.Info("contract initialized", "chain", signer.ChainID())
	return h, nil
}

// Active returns the valid handle, or nil.
func (b *Binder) Active() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Unbind invalidates the active handle.
func (b *Binder) Unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active != nil {
		b.active.invalidate()
		b.active = nil
	}
}
