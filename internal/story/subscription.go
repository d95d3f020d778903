package story

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"

	"github.com/olivoil/onewordstory/internal/contract"
)

// Subscription is one registered append listener.
type Subscription struct {
	ID string

	sub    event.Subscription
	cancel context.CancelFunc
	onFail func(*Subscription, error)
	logger *slog.Logger
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func subscribe(ctx context.Context, c Contract, onAppend func(contract.WordAdded), onFail func(*Subscription, error), logger *slog.Logger) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sink := make(chan contract.WordAdded, 16)
	sub, err := c.WatchWordAdded(ctx, sink)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{
		ID:     uuid.NewString(),
		sub:    sub,
		cancel: cancel,
		onFail: onFail,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.logger = logger.With("subscription", s.ID)
	s.logger.Debug("listening for WordAdded")
	go s.loop(sink, onAppend)
	return s, nil
}

func (s *Subscription) loop(sink <-chan contract.WordAdded, onAppend func(contract.WordAdded)) {
	defer close(s.done)
	for {
		select {
		case ev := <-sink:
			select {
			case <-s.quit:
				return
			default:
			}
			s.logger.Info("WordAdded event received", "contributor", ev.Contributor.Hex(), "word", ev.Word, "timestamp", ev.Timestamp)
			onAppend(ev)
		case err, ok := <-s.sub.Err():
			if !ok || err == nil {
				return
			}
			select {
			case <-s.quit:
				return
			default:
			}
			s.logger.Warn("append stream ended", "error", err)
			if s.onFail != nil {
				s.onFail(s, err)
			}
			return
		case <-s.quit:
			return
		}
	}
}

// Release deregisters the listener. Once it returns the callback is not
// invoked again. Releasing twice, or a nil subscription, is a no-op.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.quit)
		s.sub.Unsubscribe()
		s.cancel()
		<-s.done
		s.logger.Debug("listener released")
	})
}

// Done is closed once the listener stopped, either released or because the
// underlying stream failed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
