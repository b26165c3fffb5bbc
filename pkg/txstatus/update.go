package txstatus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/subgo/pkg/util"
)

// Node transaction pool update names.
const (
	UpdateFuture          = "future"
	UpdateReady           = "ready"
	UpdateBroadcast       = "broadcast"
	UpdateInBlock         = "inBlock"
	UpdateRetracted       = "retracted"
	UpdateFinalityTimeout = "finalityTimeout"
	UpdateFinalized       = "finalized"
	UpdateUsurped         = "usurped"
	UpdateDropped         = "dropped"
	UpdateInvalid         = "invalid"
)

// Update is the author_extrinsicUpdate notification payload. On the wire it's
// either a plain string ("ready") or a single-key object
// ({"inBlock": "0x..."}).
type Update struct {
	Kind string
	// Hash is the block hash (inBlock, retracted, finalityTimeout,
	// finalized) or the usurping transaction hash (usurped).
	Hash util.Hash
	// Peers is set for broadcast.
	Peers []string
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (u *Update) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		*u = Update{Kind: kind}
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("not a transaction update: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("transaction update should have exactly one key, got %d", len(obj))
	}
	for k, v := range obj {
		*u = Update{Kind: k}
		if k == UpdateBroadcast {
			return json.Unmarshal(v, &u.Peers)
		}
		if err := json.Unmarshal(v, &u.Hash); err != nil {
			return fmt.Errorf("bad %s hash: %w", k, err)
		}
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (u Update) MarshalJSON() ([]byte, error) {
	switch u.Kind {
	case UpdateFuture, UpdateReady, UpdateDropped, UpdateInvalid:
		return json.Marshal(u.Kind)
	case UpdateBroadcast:
		return json.Marshal(map[string][]string{u.Kind: u.Peers})
	case "":
		return nil, errors.New("empty update")
	}
	return json.Marshal(map[string]util.Hash{u.Kind: u.Hash})
}

// Event maps the update to a status event, ok is false for updates that
// don't change the state.
func (u Update) Event() (Event, bool) {
	ev := Event{Update: u.Kind}
	switch u.Kind {
	case UpdateInBlock:
		ev.State, ev.Block = InBlock, u.Hash
	case UpdateFinalized:
		ev.State, ev.Block = Finalized, u.Hash
	case UpdateRetracted:
		ev.State, ev.Block, ev.Err = Retracted, u.Hash, ErrRetracted
	case UpdateFinalityTimeout, UpdateUsurped:
		ev.State, ev.Block, ev.Err = Dropped, u.Hash, ErrDropped
	case UpdateDropped:
		ev.State, ev.Err = Dropped, ErrDropped
	case UpdateInvalid:
		ev.State, ev.Err = Invalid, ErrValidationFailed
	default:
		return ev, false
	}
	return ev, true
}
