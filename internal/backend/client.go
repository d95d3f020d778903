package backend

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "charm.land/bubbletea/v2"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/olivoil/onewordstory/internal/contract"
	"github.com/olivoil/onewordstory/internal/story"
	"github.com/olivoil/onewordstory/internal/wallet"
)

// Sender can receive messages (matches *tea.Program).
type Sender interface {
	Send(msg tea.Msg)
}

// DialFunc connects to a wallet provider.
type DialFunc func(ctx context.Context, endpoint string) (contract.Conn, error)

// Client sequences the wallet session manager, the contract binder and the
// story synchronizer for the UI. Its methods block and are meant to run inside
// tea.Cmds.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dial   DialFunc

	wallet *wallet.Manager
	binder *contract.Binder
	story  *story.Synchronizer

	mu     sync.Mutex
	conn   contract.Conn
	sender Sender
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	dial DialFunc
}

// WithDialer replaces the provider dialer.
func WithDialer(d DialFunc) Option {
	return func(o *clientOptions) { o.dial = d }
}

// NewClient creates a client for cfg. The provider is dialed lazily.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	o := clientOptions{dial: Dial}
	for _, opt := range opts {
		opt(&o)
	}
	parsed, err := contract.LoadABI(cfg.Contract.ABI)
	if err != nil {
		return nil, err
	}
	return newClient(cfg, parsed, o.dial, logger), nil
}

func newClient(cfg Config, contractABI abi.ABI, dial DialFunc, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	binder := contract.NewBinder(contract.Config{
		Address:      cfg.ContractAddress(),
		ABI:          contractABI,
		ChainID:      cfg.Provider.ChainID,
		PollInterval: cfg.General.PollInterval,
	}, logger.With("component", "binder"))

	return &Client{
		cfg:    cfg,
		logger: logger,
		dial:   dial,
		wallet: wallet.NewManager(nil, logger.With("component", "wallet")),
		binder: binder,
		story:  story.New(logger.With("component", "story")),
	}
}

// SetSender stores the program that receives append notifications.
func (c *Client) SetSender(s Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = s
}

// Endpoint returns the configured provider endpoint.
func (c *Client) Endpoint() string { return c.cfg.Provider.URL }

// Detect looks for an already-authorized account without prompting and, when
// one exists, binds the contract and subscribes to appends.
func (c *Client) Detect(ctx context.Context) (wallet.Session, error) {
	if err := c.ensureProvider(ctx); err != nil {
		c.story.Report(err)
		return wallet.Session{}, err
	}
	s, err := c.wallet.DetectExistingSession(ctx)
	if err != nil {
		c.story.Report(err)
		return wallet.Session{}, err
	}
	if s.Absent() {
		return s, nil
	}
	return s, c.attach(ctx, s)
}

// Connect prompts the wallet for an account, binds the contract and
// subscribes to appends. The caller refreshes the story afterwards.
func (c *Client) Connect(ctx context.Context) (wallet.Session, error) {
	if err := c.ensureProvider(ctx); err != nil {
		c.story.Report(err)
		return wallet.Session{}, err
	}
	s, err := c.wallet.RequestSession(ctx)
	if err != nil {
		c.story.Report(err)
		return wallet.Session{}, err
	}
	return s, c.attach(ctx, s)
}

// CheckAccounts re-reads the wallet's accounts. A different account is
// re-bound; a vanished one unbinds the contract.
func (c *Client) CheckAccounts(ctx context.Context) (wallet.Session, bool, error) {
	if c.wallet.Provider() == nil {
		return wallet.Session{}, false, nil
	}
	s, changed, err := c.wallet.CheckAccounts(ctx)
	if err != nil || !changed {
		return s, changed, err
	}
	if s.Absent() {
		c.detach()
		return s, true, nil
	}
	return s, true, c.attach(ctx, s)
}

// EnsureSubscribed re-establishes the append subscription after its stream
// failed. It reports whether a new subscription was made; the caller then
// refreshes to pick up words missed in between. ctx scopes the new
// subscription, so it must outlive it.
func (c *Client) EnsureSubscribed(ctx context.Context) (bool, error) {
	if c.binder.Active() == nil || !c.story.Bound() || c.story.Subscribed() {
		return false, nil
	}
	if _, err := c.story.Subscribe(ctx, c.onAppend); err != nil {
		c.logger.Warn("append subscription failed", "error", err)
		return false, err
	}
	c.logger.Info("append subscription restored")
	return true, nil
}

// Refresh re-reads the story.
func (c *Client) Refresh(ctx context.Context) error {
	return c.story.Refresh(ctx)
}

// SetPending stores the draft word.
func (c *Client) SetPending(word string) {
	c.story.SetPending(word)
}

// Submit contributes the draft word. committed reports whether the word made
// it on chain, which can be true alongside an error from the refresh that
// follows.
func (c *Client) Submit(ctx context.Context) (committed bool, err error) {
	before := c.story.Commits()
	err = c.story.SubmitWord(ctx, c.story.Pending())
	return c.story.Commits() > before, err
}

// ProviderGone drops the provider and everything bound through it.
func (c *Client) ProviderGone() {
	c.detach()
	c.wallet.SetProvider(nil)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		closeConn(conn)
	}
	c.logger.Info("wallet provider went away")
}

// Snapshot returns the current state for rendering.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	ready := c.conn != nil
	c.mu.Unlock()

	snap := Snapshot{
		ProviderReady: ready,
		Session:       c.wallet.Current(),
		Contract:      c.binder.Address(),
		Story:         c.story.Story(),
		Pending:       c.story.Pending(),
		State:         c.story.State(),
	}
	if h := c.binder.Active(); h != nil {
		snap.Bound = true
		snap.ChainID = h.Signer().ChainID()
	}
	return snap
}

// Close releases the subscription and the provider connection.
func (c *Client) Close() {
	c.ProviderGone()
}

// ensureProvider dials outside the lock so Snapshot and append delivery are
// not blocked by a slow endpoint. When two dials race the first one wins.
func (c *Client) ensureProvider(ctx context.Context) error {
	if c.currentConn() != nil {
		return nil
	}
	conn, err := c.dial(ctx, c.cfg.Provider.URL)
	if err != nil {
		c.logger.Warn("no wallet provider", "endpoint", c.cfg.Provider.URL, "error", err)
		return err
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		closeConn(conn)
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.wallet.SetProvider(conn)
	return nil
}

func (c *Client) currentConn() contract.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// attach binds s and re-establishes the append subscription on the new
// handle. A failed subscription is logged; the story then only refreshes on
// demand.
func (c *Client) attach(ctx context.Context, s wallet.Session) error {
	h, err := c.binder.Bind(ctx, c.currentConn(), s)
	if err != nil {
		c.story.Bind(nil)
		c.story.Report(err)
		return err
	}
	c.story.Bind(h)
	c.story.Report(nil)

	if _, err := c.story.Subscribe(context.Background(), c.onAppend); err != nil {
		c.logger.Warn("append subscription failed", "error", err)
	}
	return nil
}

func (c *Client) detach() {
	c.binder.Unbind()
	c.story.Bind(nil)
	c.wallet.Disconnect()
}

func (c *Client) onAppend(ev contract.WordAdded) {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender != nil {
		sender.Send(AppendMsg{Event: ev})
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
