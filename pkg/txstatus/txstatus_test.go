package txstatus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nspcc-dev/subgo/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var blockA = util.Hash{1, 2, 3}

func states(evs []Event) []State {
	res := make([]State, len(evs))
	for i := range evs {
		res[i] = evs[i].State
	}
	return res
}

func collect(t *testing.T, s *Subscription) []Event {
	var res []Event
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return res
			}
			res = append(res, ev)
		case <-timeout:
			t.Fatal("subscription is not closed")
		}
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "InBlock", InBlock.String())
	assert.Equal(t, "State(42)", State(42).String())
	for _, s := range []State{Finalized, Retracted, Dropped, Invalid} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []State{Constructed, Signed, Submitted, InBlock} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine(Constructed)
	var all []Event
	for _, s := range []State{Signed, Submitted, InBlock, Finalized} {
		all = append(all, m.Advance(Event{State: s, Block: blockA})...)
	}
	require.Equal(t, []State{Signed, Submitted, InBlock, Finalized}, states(all))
	require.Equal(t, Finalized, m.State())
	// Nothing after terminal state.
	require.Nil(t, m.Advance(Event{State: Dropped}))
	require.Nil(t, m.Advance(Event{State: Finalized}))
}

func TestMachineRejectsImpossible(t *testing.T) {
	m := NewMachine(Constructed)
	require.Nil(t, m.Advance(Event{State: Submitted}))
	require.Nil(t, m.Advance(Event{State: InBlock}))
	require.Nil(t, m.Advance(Event{State: Constructed}))
	require.Nil(t, m.Advance(Event{State: State(100)}))
	require.Equal(t, Constructed, m.State())

	m = NewMachine(Submitted)
	require.Len(t, m.Advance(Event{State: InBlock}), 1)
	// Duplicate.
	require.Nil(t, m.Advance(Event{State: InBlock}))
	require.Nil(t, m.Advance(Event{State: Signed}))
}

func TestMachineSynthesizesInBlock(t *testing.T) {
	m := NewMachine(Submitted)
	evs := m.Apply(Update{Kind: UpdateFinalized, Hash: blockA})
	require.Equal(t, []State{InBlock, Finalized}, states(evs))
	require.Equal(t, blockA, evs[0].Block)
	require.Equal(t, blockA, evs[1].Block)
}

func TestMachineUpdates(t *testing.T) {
	var testCases = []struct {
		updates  []Update
		expected []State
	}{
		{[]Update{{Kind: UpdateFuture}, {Kind: UpdateReady}, {Kind: UpdateBroadcast}}, []State{}},
		{[]Update{{Kind: UpdateReady}, {Kind: UpdateInBlock}, {Kind: UpdateFinalized}}, []State{InBlock, Finalized}},
		{[]Update{{Kind: UpdateInBlock}, {Kind: UpdateRetracted}, {Kind: UpdateInBlock}}, []State{InBlock, Retracted}},
		{[]Update{{Kind: UpdateInBlock}, {Kind: UpdateFinalityTimeout}}, []State{InBlock, Dropped}},
		{[]Update{{Kind: UpdateUsurped}, {Kind: UpdateFinalized}}, []State{Dropped}},
		{[]Update{{Kind: UpdateDropped}}, []State{Dropped}},
		{[]Update{{Kind: UpdateInvalid}, {Kind: UpdateInBlock}}, []State{Invalid}},
		{[]Update{{Kind: "somethingNew"}}, []State{}},
	}
	for _, tc := range testCases {
		m := NewMachine(Submitted)
		var all []Event
		for _, u := range tc.updates {
			all = append(all, m.Apply(u)...)
		}
		require.Equal(t, tc.expected, states(all), tc.updates)
	}
}

func TestUpdateJSON(t *testing.T) {
	var testCases = []struct {
		raw string
		u   Update
	}{
		{`"ready"`, Update{Kind: UpdateReady}},
		{`"future"`, Update{Kind: UpdateFuture}},
		{`"invalid"`, Update{Kind: UpdateInvalid}},
		{`{"broadcast":["peer1","peer2"]}`, Update{Kind: UpdateBroadcast, Peers: []string{"peer1", "peer2"}}},
		{`{"inBlock":"` + blockA.String() + `"}`, Update{Kind: UpdateInBlock, Hash: blockA}},
		{`{"finalized":"` + blockA.String() + `"}`, Update{Kind: UpdateFinalized, Hash: blockA}},
	}
	for _, tc := range testCases {
		var u Update
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &u), tc.raw)
		require.Equal(t, tc.u, u, tc.raw)

		data, err := json.Marshal(tc.u)
		require.NoError(t, err)
		require.JSONEq(t, tc.raw, string(data))
	}
	for _, raw := range []string{`1`, `{}`, `{"a":"0x01","b":"0x02"}`, `{"inBlock":"zz"}`} {
		var u Update
		require.Error(t, json.Unmarshal([]byte(raw), &u), raw)
	}
	_, err := json.Marshal(Update{})
	require.Error(t, err)
}

func TestSubscriptionFinalized(t *testing.T) {
	s := NewSubscription(util.Hash{7}, nil)
	require.Equal(t, Submitted, s.State())
	s.Apply(Update{Kind: UpdateReady})
	s.Apply(Update{Kind: UpdateInBlock, Hash: blockA})
	s.Apply(Update{Kind: UpdateFinalized, Hash: blockA})
	// Late updates are ignored.
	require.Nil(t, s.Apply(Update{Kind: UpdateDropped}))

	evs := collect(t, s)
	require.Equal(t, []State{Submitted, InBlock, Finalized}, states(evs))
	require.NoError(t, s.Err())

	ev, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, Finalized, ev.State)
	require.Equal(t, blockA, ev.Block)
}

func TestSubscriptionReject(t *testing.T) {
	s := NewSubscription(util.Hash{7}, nil)
	s.Reject(ErrStaleNonce)
	evs := collect(t, s)
	require.Equal(t, []State{Submitted, Invalid}, states(evs))
	ev, err := s.Wait(context.Background())
	require.ErrorIs(t, err, ErrStaleNonce)
	require.Equal(t, Invalid, ev.State)
}

func TestSubscriptionClose(t *testing.T) {
	s := NewSubscription(util.Hash{7}, nil)
	s.Close(ErrConnectionClosed)
	s.Close(nil)
	evs := collect(t, s)
	require.Equal(t, []State{Submitted}, states(evs))
	require.ErrorIs(t, s.Err(), ErrConnectionClosed)
	_, err := s.Wait(context.Background())
	require.ErrorIs(t, err, ErrConnectionClosed)
	require.Nil(t, s.Advance(Event{State: InBlock}))
}

func TestSubscriptionUnsubscribe(t *testing.T) {
	var calls int
	s := NewSubscription(util.Hash{7}, func() { calls++ })
	s.Unsubscribe()
	s.Unsubscribe()
	require.Equal(t, 1, calls)
	<-s.Done()
	require.NoError(t, s.Err())

	// No unwatch for finished subscriptions.
	calls = 0
	s = NewSubscription(util.Hash{7}, func() { calls++ })
	s.Reject(ErrValidationFailed)
	s.Unsubscribe()
	require.Equal(t, 0, calls)
}

func TestSubscriptionWaitContext(t *testing.T) {
	s := NewSubscription(util.Hash{7}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev, err := s.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, Submitted, ev.State)
}

func TestSubscriptionWaitFinishedExpiredContext(t *testing.T) {
	s := NewSubscription(util.Hash{7}, nil)
	s.Advance(Event{State: InBlock, Block: blockA})
	s.Advance(Event{State: Finalized, Block: blockA})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Both channels are ready, the finished subscription must always win.
	for i := 0; i < 100; i++ {
		ev, err := s.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, Finalized, ev.State)
	}
}
