package txstatus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nspcc-dev/subgo/pkg/util"
)

// maxEvents is the maximum number of events a subscription can emit, every
// valid path through Machine from Signed is at most three transitions long
// (Submitted, InBlock, terminal).
const maxEvents = 4

// Subscription is a handle for status events of a single submitted
// transaction. Events are delivered in order via a buffered channel that is
// large enough for any valid event sequence, so producers never block. The
// channel is closed after a terminal event, on Unsubscribe or when the
// connection is lost (Err returns ErrConnectionClosed then).
type Subscription struct {
	// ID is a local handle identifier.
	ID uuid.UUID
	// Hash is the extrinsic hash.
	Hash util.Hash

	lock    sync.Mutex
	machine Machine
	events  chan Event
	done    chan struct{}
	closed  bool
	last    Event
	err     error

	unsubOnce sync.Once
	unsub     func()
}

// NewSubscription creates a subscription for a transaction that is about to
// be sent. It emits Submitted immediately. unsub (if not nil) is called once
// when the subscription is closed by the user before reaching a terminal
// state.
func NewSubscription(hash util.Hash, unsub func()) *Subscription {
	s := &Subscription{
		ID:      uuid.New(),
		Hash:    hash,
		machine: Machine{state: Signed},
		events:  make(chan Event, maxEvents),
		done:    make(chan struct{}),
		unsub:   unsub,
	}
	s.Advance(Event{State: Submitted})
	return s
}

// Events returns the event channel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done returns a channel that is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the subscription (if any).
func (s *Subscription) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

// State returns the current transaction state.
func (s *Subscription) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.machine.State()
}

// Last returns the last emitted event.
func (s *Subscription) Last() Event {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.last
}

// Advance feeds an event into the state machine and returns the events
// actually emitted.
func (s *Subscription) Advance(ev Event) []Event {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	return s.emit(s.machine.Advance(ev))
}

// Apply feeds a node update and returns the events actually emitted.
func (s *Subscription) Apply(u Update) []Event {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	return s.emit(s.machine.Apply(u))
}

// Reject ends the subscription with a terminal Invalid event carrying the
// reason (like ErrStaleNonce or ErrValidationFailed).
func (s *Subscription) Reject(reason error) []Event {
	return s.Advance(Event{State: Invalid, Err: reason})
}

func (s *Subscription) emit(evs []Event) []Event {
	for _, ev := range evs {
		s.events <- ev
		s.last = ev
		if ev.State.IsTerminal() {
			s.finish(nil)
		}
	}
	return evs
}

// finish closes channels, must be called with the lock held.
func (s *Subscription) finish(err error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.events)
	close(s.done)
}

// Close ends the subscription with the given error without emitting any
// events, it's used by the client when the connection is lost.
func (s *Subscription) Close(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.finish(err)
}

// Unsubscribe stops event delivery. It's idempotent and local: the
// transaction itself is not affected.
func (s *Subscription) Unsubscribe() {
	s.lock.Lock()
	wasClosed := s.closed
	s.finish(nil)
	s.lock.Unlock()
	if !wasClosed && s.unsub != nil {
		s.unsubOnce.Do(s.unsub)
	}
}

// Wait blocks until the subscription ends and returns the last event. The
// error is the failure reason for terminal failures, the connection error or
// the context error.
func (s *Subscription) Wait(ctx context.Context) (Event, error) {
	// An ended subscription wins over an expired context.
	select {
	case <-s.done:
	default:
		select {
		case <-s.done:
		case <-ctx.Done():
			return s.Last(), fmt.Errorf("waiting for %s: %w", s.Hash, ctx.Err())
		}
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.err != nil {
		return s.last, s.err
	}
	return s.last, s.last.Err
}
