package story

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivoil/onewordstory/internal/contract"
	"github.com/olivoil/onewordstory/internal/failure"
)

type fakeContract struct {
	mu         sync.Mutex
	words      []string
	storyCalls int
	addCalls   int
	storyErr   error
	addErr     error
	mineErr    error
	hold       chan struct{}
	storyHold  chan struct{}
	streamErr  chan error
	feed       event.Feed
}

func (f *fakeContract) Story(ctx context.Context) ([]string, error) {
	if f.storyHold != nil {
		select {
		case <-f.storyHold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storyCalls++
	if f.storyErr != nil {
		return nil, f.storyErr
	}
	return append([]string(nil), f.words...), nil
}

func (f *fakeContract) AddWord(_ context.Context, word string) (*contract.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &contract.Tx{Hash: common.HexToHash("0x01"), Word: word}, nil
}

func (f *fakeContract) WaitMined(ctx context.Context, tx *contract.Tx) (*types.Receipt, error) {
	if f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mineErr != nil {
		return nil, f.mineErr
	}
	f.words = append(f.words, tx.Word)
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeContract) WatchWordAdded(_ context.Context, sink chan<- contract.WordAdded) (event.Subscription, error) {
	inner := f.feed.Subscribe(sink)
	if f.streamErr == nil {
		return inner, nil
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer inner.Unsubscribe()
		select {
		case <-quit:
			return nil
		case err := <-f.streamErr:
			return err
		}
	}), nil
}

func (f *fakeContract) calls() (story, add int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storyCalls, f.addCalls
}

func (f *fakeContract) appendExternal(word string) {
	f.mu.Lock()
	f.words = append(f.words, word)
	f.mu.Unlock()
	f.feed.Send(contract.WordAdded{Word: word})
}

func newSync(c Contract) *Synchronizer {
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if c != nil {
		s.Bind(c)
	}
	return s
}

func TestRefreshWithoutContractIsNoop(t *testing.T) {
	s := newSync(nil)
	require.NoError(t, s.Refresh(context.Background()))
	assert.Empty(t, s.Story())
	assert.Equal(t, PhaseIdle, s.State().Phase)
}

func TestRefreshIsIdempotent(t *testing.T) {
	f := &fakeContract{words: []string{"Once", "upon", "a", "time"}}
	s := newSync(f)
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))
	first := s.Story()
	for range 3 {
		require.NoError(t, s.Refresh(ctx))
		assert.Equal(t, first, s.Story())
	}
	assert.Equal(t, PhaseIdle, s.State().Phase)
}

func TestRefreshFailureKeepsStory(t *testing.T) {
	f := &fakeContract{words: []string{"Once"}}
	s := newSync(f)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	f.storyErr = errors.New("header not found")
	err := s.Refresh(ctx)
	require.Error(t, err)
	assert.Equal(t, failure.CodeFetchFailed, failure.CodeOf(err))
	assert.Equal(t, []string{"Once"}, s.Story())

	st := s.State()
	assert.Equal(t, PhaseError, st.Phase)
	assert.Equal(t, "Failed to fetch story: header not found", st.Message())

	f.storyErr = nil
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, PhaseIdle, s.State().Phase)
}

func TestSubmitWordPreconditions(t *testing.T) {
	f := &fakeContract{}
	s := newSync(f)

	for _, candidate := range []string{"", "   ", "\t\n"} {
		err := s.SubmitWord(context.Background(), candidate)
		require.Error(t, err)
		assert.Equal(t, failure.CodePreconditionFailed, failure.CodeOf(err))
	}
	story, add := f.calls()
	assert.Zero(t, story)
	assert.Zero(t, add)
	assert.Equal(t, PhaseError, s.State().Phase)

	unbound := newSync(nil)
	err := unbound.SubmitWord(context.Background(), "dragon")
	assert.Equal(t, failure.CodePreconditionFailed, failure.CodeOf(err))
}

func TestSubmitWordThenStoryEndsWithWord(t *testing.T) {
	f := &fakeContract{words: []string{"Once", "upon", "a", "time"}}
	s := newSync(f)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	s.SetPending(" today ")
	require.NoError(t, s.SubmitWord(ctx, s.Pending()))

	assert.Equal(t, []string{"Once", "upon", "a", "time", "today"}, s.Story())
	assert.Empty(t, s.Pending())
	assert.Equal(t, PhaseIdle, s.State().Phase)

	require.NoError(t, s.SubmitWord(ctx, "dragon"))
	story := s.Story()
	assert.Equal(t, "dragon", story[len(story)-1])
}

func TestSubmitWordFailureReleasesLoading(t *testing.T) {
	f := &fakeContract{mineErr: errors.New("transaction reverted")}
	s := newSync(f)
	s.SetPending("dragon")

	err := s.SubmitWord(context.Background(), "dragon")
	require.Error(t, err)
	assert.Equal(t, failure.CodeSubmitFailed, failure.CodeOf(err))

	st := s.State()
	assert.Equal(t, PhaseError, st.Phase)
	assert.Equal(t, "Failed to add word. Details: transaction reverted", st.Message())
	assert.Equal(t, "dragon", s.Pending())

	f.mineErr = nil
	require.NoError(t, s.SubmitWord(context.Background(), "dragon"))
	assert.Equal(t, PhaseIdle, s.State().Phase)
}

func TestSubmitWordKeepsNormalizedErrors(t *testing.T) {
	f := &fakeContract{addErr: failure.New(failure.CodeSubmitFailed, "Failed to add word. Reason: Only one word allowed")}
	s := newSync(f)

	err := s.SubmitWord(context.Background(), "dragon")
	assert.Equal(t, "Failed to add word. Reason: Only one word allowed", err.Error())
}

func TestSubmitWordIsSingleFlight(t *testing.T) {
	f := &fakeContract{hold: make(chan struct{})}
	s := newSync(f)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.SubmitWord(ctx, "first") }()

	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseLoading
	}, time.Second, time.Millisecond)

	err := s.SubmitWord(ctx, "second")
	assert.Equal(t, failure.CodePreconditionFailed, failure.CodeOf(err))
	_, add := f.calls()
	assert.Equal(t, 1, add)

	close(f.hold)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first"}, s.Story())
	assert.Equal(t, PhaseIdle, s.State().Phase)
}

func TestAppendNotificationTriggersRefresh(t *testing.T) {
	f := &fakeContract{words: []string{"Once"}}
	s := newSync(f)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	sub, err := s.Subscribe(ctx, func(contract.WordAdded) {
		_ = s.Refresh(ctx)
	})
	require.NoError(t, err)
	defer sub.Release()

	f.appendExternal("upon")

	require.Eventually(t, func() bool {
		return len(s.Story()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"Once", "upon"}, s.Story())
}

func TestReleasedSubscriptionStopsCallbacks(t *testing.T) {
	f := &fakeContract{}
	s := newSync(f)

	var mu sync.Mutex
	calls := 0
	sub, err := s.Subscribe(context.Background(), func(contract.WordAdded) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)

	f.appendExternal("one")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, time.Millisecond)

	sub.Release()
	sub.Release()
	<-sub.Done()

	f.appendExternal("two")
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestRebindReleasesPreviousSubscription(t *testing.T) {
	first := &fakeContract{}
	s := newSync(first)

	sub, err := s.Subscribe(context.Background(), func(contract.WordAdded) {})
	require.NoError(t, err)

	second := &fakeContract{}
	s.Bind(second)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("previous subscription still active")
	}
	assert.Zero(t, first.feed.Send(contract.WordAdded{Word: "late"}))
}

func TestSubscribeWithoutContract(t *testing.T) {
	s := newSync(nil)
	_, err := s.Subscribe(context.Background(), func(contract.WordAdded) {})
	assert.Equal(t, failure.CodePreconditionFailed, failure.CodeOf(err))
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	old := &fakeContract{words: []string{"old"}, storyHold: make(chan struct{})}
	s := newSync(old)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseLoading
	}, time.Second, time.Millisecond)

	s.Bind(&fakeContract{words: []string{"new"}})
	close(old.storyHold)
	require.NoError(t, <-done)
	assert.Empty(t, s.Story())

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, []string{"new"}, s.Story())
}

func TestReportSetsAndClearsError(t *testing.T) {
	s := newSync(nil)
	s.Report(failure.New(failure.CodeUserRejected, "Error connecting: the request was rejected in the wallet."))
	st := s.State()
	assert.Equal(t, PhaseError, st.Phase)
	assert.Equal(t, "Error connecting: the request was rejected in the wallet.", st.Message())

	s.Report(nil)
	assert.Equal(t, PhaseIdle, s.State().Phase)
}

func TestRefreshFailureAfterConfirmedWrite(t *testing.T) {
	f := &fakeContract{words: []string{"Once"}}
	s := newSync(f)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	f.storyErr = errors.New("header not found")
	s.SetPending("today")
	err := s.SubmitWord(ctx, "today")

	assert.Equal(t, failure.CodeFetchFailed, failure.CodeOf(err))
	assert.Equal(t, uint64(1), s.Commits())
	assert.Empty(t, s.Pending())
	assert.Equal(t, []string{"Once"}, s.Story())
}

func TestFailedSubmitIsNotCommitted(t *testing.T) {
	f := &fakeContract{mineErr: errors.New("transaction reverted")}
	s := newSync(f)

	require.Error(t, s.SubmitWord(context.Background(), "dragon"))
	assert.Zero(t, s.Commits())
}

func TestBrokenStreamIsReported(t *testing.T) {
	f := &fakeContract{streamErr: make(chan error, 1)}
	s := newSync(f)

	sub, err := s.Subscribe(context.Background(), func(contract.WordAdded) {})
	require.NoError(t, err)
	assert.True(t, s.Subscribed())

	f.streamErr <- errors.New("websocket: close 1006")
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}

	assert.False(t, s.Subscribed())
	st := s.State()
	assert.Equal(t, PhaseError, st.Phase)
	assert.Equal(t, failure.CodeFetchFailed, failure.CodeOf(st.Err))
	assert.Contains(t, st.Message(), "websocket: close 1006")
}

func TestReleasedStreamIsNotReported(t *testing.T) {
	f := &fakeContract{streamErr: make(chan error, 1)}
	s := newSync(f)

	sub, err := s.Subscribe(context.Background(), func(contract.WordAdded) {})
	require.NoError(t, err)
	sub.Release()

	assert.False(t, s.Subscribed())
	assert.Equal(t, PhaseIdle, s.State().Phase)
}
