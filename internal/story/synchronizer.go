// Package story keeps a local copy of the on-chain story consistent with the
// contract across local writes and append notifications.
package story

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/olivoil/onewordstory/internal/contract"
	"github.com/olivoil/onewordstory/internal/failure"
)

// Contract is the subset of *contract.Handle the synchronizer drives.
type Contract interface {
	Story(ctx context.Context) ([]string, error)
	AddWord(ctx context.Context, word string) (*contract.Tx, error)
	WaitMined(ctx context.Context, tx *contract.Tx) (*types.Receipt, error)
	WatchWordAdded(ctx context.Context, sink chan<- contract.WordAdded) (event.Subscription, error)
}

// Synchronizer owns the cached story, the pending word and the operation state.
//
// The story is only ever replaced by a full re-read; it is never patched from
// notification payloads. Results of calls made through a contract that has
// since been replaced are discarded.
type Synchronizer struct {
	logger *slog.Logger

	mu       sync.Mutex
	contract Contract
	epoch    uint64
	story    []string
	pending  string
	inflight int
	commits  uint64
	err      error
	sub      *Subscription
}

// New creates an unbound synchronizer.
func New(logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{logger: logger}
}

// Bind switches to c (nil unbinds). The subscription made through the
// previous contract is released first.
func (s *Synchronizer) Bind(c Contract) {
	s.mu.Lock()
	s.contract = c
	s.epoch++
	prev := s.sub
	s.sub = nil
	s.mu.Unlock()

	prev.Release()
}

// Bound reports whether a contract is bound.
func (s *Synchronizer) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contract != nil
}

// Story returns a copy of the cached story.
func (s *Synchronizer) Story() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.story...)
}

// Pending returns the draft word.
func (s *Synchronizer) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// SetPending replaces the draft word.
func (s *Synchronizer) SetPending(word string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = word
}

// State returns the current operation state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.inflight > 0:
		return State{Phase: PhaseLoading}
	case s.err != nil:
		return State{Phase: PhaseError, Err: s.err}
	}
	return State{Phase: PhaseIdle}
}

// Commits returns how many submitted words were confirmed on chain. A
// SubmitWord whose follow-up refresh failed still counts.
func (s *Synchronizer) Commits() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Report records a failure raised outside the synchronizer (connecting,
// binding) as the visible error. A nil err clears it.
func (s *Synchronizer) Report(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Refresh replaces the cached story with the contract's. It does nothing when
// no contract is bound. On failure the cached story is left untouched.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	c, epoch, ok := s.acquire(false)
	if !ok {
		s.logger.Debug("contract not initialized yet, skipping refresh")
		return nil
	}
	defer s.release()

	words, err := c.Story(ctx)
	if err != nil && failure.CodeOf(err) == failure.CodeUnknown {
		err = failure.Wrap(failure.CodeFetchFailed, "Failed to fetch story: "+err.Error(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		s.logger.Debug("discarding story read from a replaced contract")
		return nil
	}
	if err != nil {
		s.logger.Error("failed to fetch story", "error", err)
		s.err = err
		return err
	}
	s.story = words
	return nil
}

// SubmitWord appends candidate to the story and waits for one confirmation,
// then clears the draft and refreshes. It fails without a network call when no
// contract is bound, the word is blank, or another operation is in flight.
func (s *Synchronizer) SubmitWord(ctx context.Context, candidate string) error {
	word := strings.TrimSpace(candidate)

	s.mu.Lock()
	switch {
	case s.contract == nil || word == "":
		s.err = failure.New(failure.CodePreconditionFailed, "Please connect wallet and enter a word.")
		err := s.err
		s.mu.Unlock()
		return err
	case s.inflight > 0:
		s.mu.Unlock()
		return failure.New(failure.CodePreconditionFailed, "Please wait for the current operation to finish.")
	}
	s.mu.Unlock()

	c, epoch, ok := s.acquire(true)
	if !ok {
		return failure.New(failure.CodePreconditionFailed, "Please wait for the current operation to finish.")
	}
	defer s.release()

	tx, err := c.AddWord(ctx, word)
	if err == nil {
		_, err = c.WaitMined(ctx, tx)
	}
	if err != nil {
		if failure.CodeOf(err) == failure.CodeUnknown {
			err = failure.Wrap(failure.CodeSubmitFailed, "Failed to add word. Details: "+err.Error(), err)
		}
		s.logger.Error("error adding word", "word", word, "error", err)
		s.mu.Lock()
		if epoch == s.epoch {
			s.err = err
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.commits++
	if epoch == s.epoch {
		s.pending = ""
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// acquire marks an operation in flight and clears the visible error. With
// exclusive set it refuses when anything else is in flight.
func (s *Synchronizer) acquire(exclusive bool) (Contract, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contract == nil || (exclusive && s.inflight > 0) {
		return nil, 0, false
	}
	s.inflight++
	s.err = nil
	return s.contract, s.epoch, true
}

func (s *Synchronizer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
}

// Subscribe registers onAppend for every WordAdded notification of the bound
// contract, replacing any earlier subscription.
func (s *Synchronizer) Subscribe(ctx context.Context, onAppend func(contract.WordAdded)) (*Subscription, error) {
	s.mu.Lock()
	c, epoch := s.contract, s.epoch
	prev := s.sub
	s.sub = nil
	s.mu.Unlock()

	prev.Release()
	if c == nil {
		return nil, failure.New(failure.CodePreconditionFailed, "Please connect wallet first.")
	}

	sub, err := subscribe(ctx, c, onAppend, s.streamFailed, s.logger)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		sub.Release()
		return nil, failure.New(failure.CodeSignerUnavailable, "Contract changed while subscribing.")
	}
	s.sub = sub
	s.mu.Unlock()
	return sub, nil
}

// Subscribed reports whether an append listener is running.
func (s *Synchronizer) Subscribed() bool {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub == nil {
		return false
	}
	select {
	case <-sub.Done():
		return false
	default:
		return true
	}
}

// streamFailed surfaces a broken append stream so external words are not
// silently missed. The stream of a replaced subscription is ignored.
func (s *Synchronizer) streamFailed(sub *Subscription, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != sub {
		return
	}
	s.sub = nil
	s.err = failure.Wrap(failure.CodeFetchFailed,
		"Lost live story updates: "+err.Error()+". Refresh to catch up.", err)
}

// Close releases the active subscription.
func (s *Synchronizer) Close() {
	s.Bind(nil)
}
