/*
Package txstatus implements transaction status tracking: the status state
machine fed by node author_extrinsicUpdate notifications and the
subscription handle delivering status events to the submitter.
*/
package txstatus

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/subgo/pkg/util"
)

// State is a transaction status.
type State byte

// Transaction states, Constructed and Signed are local ones.
const (
	Constructed State = iota
	Signed
	Submitted
	InBlock
	Finalized
	Retracted
	Dropped
	Invalid
)

var stateNames = map[State]string{
	Constructed: "Constructed",
	Signed:      "Signed",
	Submitted:   "Submitted",
	InBlock:     "InBlock",
	Finalized:   "Finalized",
	Retracted:   "Retracted",
	Dropped:     "Dropped",
	Invalid:     "Invalid",
}

// Failure reasons carried by terminal events.
var (
	// ErrValidationFailed is used for transactions rejected by the node as
	// invalid (bad signature, unknown call, insufficient funds).
	ErrValidationFailed = errors.New("transaction validation failed")
	// ErrStaleNonce is used for transactions rejected because their nonce is
	// already used.
	ErrStaleNonce = errors.New("stale nonce")
	// ErrDropped is used for transactions dropped from the pool.
	ErrDropped = errors.New("transaction dropped")
	// ErrRetracted is used for transactions whose block was retracted.
	ErrRetracted = errors.New("transaction block retracted")
	// ErrConnectionClosed is returned when the connection to the node is lost
	// before the transaction reaches a terminal state.
	ErrConnectionClosed = errors.New("connection closed")
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", byte(s))
}

// IsTerminal returns true for states after which no more events happen.
func (s State) IsTerminal() bool {
	return s >= Finalized
}

// Event is a transaction status change.
type Event struct {
	State State
	// Block is the block hash for InBlock, Finalized, Retracted and the
	// block or usurper hash for Dropped if known.
	Block util.Hash
	// Err is the failure reason for Retracted, Dropped and Invalid.
	Err error
	// Update is the node update name that caused the event, empty for
	// local ones.
	Update string
}

// String implements the fmt.Stringer interface.
func (e Event) String() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.State, e.Err)
	case e.State == InBlock || e.State == Finalized || e.State == Retracted:
		return fmt.Sprintf("%s %s", e.State, e.Block)
	}
	return e.State.String()
}

// Machine is the transaction status state machine. It validates transitions
// and drops the ones that are impossible from the current state, so any
// sequence of emitted events is a valid path:
//
//	Constructed -> Signed -> Submitted -> InBlock -> Finalized
//	                  |           |           |
//	                  +-----------+-----------+--> Retracted | Dropped | Invalid
//
// Invalid can also follow Signed for transactions rejected on submission.
// Machine is not thread-safe.
type Machine struct {
	state State
}

// NewMachine returns a machine in the given state.
func NewMachine(initial State) *Machine {
	return &Machine{state: initial}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Advance tries to move to ev.State and returns events to emit: nothing for
// impossible transitions, the event itself or a synthesized InBlock followed
// by the event for Finalized coming directly after Submitted.
func (m *Machine) Advance(ev Event) []Event {
	cur := m.state
	if cur.IsTerminal() {
		return nil
	}
	var res []Event
	switch ev.State {
	case Signed:
		if cur != Constructed {
			return nil
		}
	case Submitted:
		if cur != Signed {
			return nil
		}
	case InBlock:
		if cur != Submitted {
			return nil
		}
	case Finalized:
		switch cur {
		case Submitted:
			res = append(res, Event{State: InBlock, Block: ev.Block, Update: ev.Update})
		case InBlock:
		default:
			return nil
		}
	case Retracted, Dropped:
		if cur != Submitted && cur != InBlock {
			return nil
		}
	case Invalid:
		if cur != Signed && cur != Submitted && cur != InBlock {
			return nil
		}
	default:
		return nil
	}
	m.state = ev.State
	return append(res, ev)
}

// Apply maps node update into an event and advances the machine with it.
// Intermediate pool updates (future, ready, broadcast) produce no events.
func (m *Machine) Apply(u Update) []Event {
	ev, ok := u.Event()
	if !ok {
		return nil
	}
	return m.Advance(ev)
}
