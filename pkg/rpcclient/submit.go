package rpcclient

import (
	"time"

	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/nspcc-dev/subgo/pkg/crypto/hash"
	"github.com/nspcc-dev/subgo/pkg/txstatus"
	"github.com/nspcc-dev/subgo/pkg/util"
	"go.uber.org/zap"
)

// SubmitExtrinsic sends a signed encoded extrinsic with
// author_submitAndWatchExtrinsic and returns the status subscription without
// waiting for the node. Node rejections (like stale nonce or bad signature)
// are delivered as a terminal Invalid event, the error is only returned if
// the request can't be sent at all.
func (c *WSClient) SubmitExtrinsic(ext []byte) (*txstatus.Subscription, error) {
	if err := c.checkInit(); err != nil {
		return nil, err
	}
	var sub *txstatus.Subscription
	sub = txstatus.NewSubscription(hash.Blake2b256(ext), func() { c.unwatch(sub.ID) })
	r := &chainrpc.Request{
		JSONRPC: chainrpc.JSONRPCVersion,
		Method:  "author_submitAndWatchExtrinsic",
		Params:  []any{util.Bytes(ext)},
		ID:      c.getNextRequestID(),
	}
	if err := c.register(r.ID, &pendingRequest{sub: sub}); err != nil {
		return nil, err
	}
	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()
	if err := c.send(r, timer.C); err != nil {
		c.unregister(r.ID)
		countRequest(r.Method, outcomeTransportError)
		return nil, err
	}
	countRequest(r.Method, outcomeOK)
	countEvents([]txstatus.Event{sub.Last()})
	c.log.Debug("extrinsic submitted", zap.Stringer("hash", sub.Hash), zap.Uint64("id", r.ID))
	return sub, nil
}
