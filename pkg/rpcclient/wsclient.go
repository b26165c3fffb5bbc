package rpcclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/nspcc-dev/subgo/pkg/txstatus"
	"go.uber.org/zap"
)

const (
	// Message limit for receiving side.
	wsReadLimit = 64 * 1024 * 1024

	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// extrinsicUpdateMethod is the notification name for transaction
	// status updates.
	extrinsicUpdateMethod = "author_extrinsicUpdate"
)

func (c *WSClient) wsReader() {
	c.ws.SetReadLimit(wsReadLimit)
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	})
	var cause error
	for {
		msg := new(chainrpc.Message)
		_ = c.ws.SetReadDeadline(time.Now().Add(wsPongLimit))
		err := c.ws.ReadJSON(msg)
		if err != nil {
			// Timeout/connection loss/malformed message.
			cause = err
			break
		}
		if msg.IsNotification() {
			c.notify(msg)
			continue
		}
		id, ok := msg.NumericID()
		if !ok {
			c.log.Debug("message is neither a response nor a notification", zap.ByteString("id", msg.ID))
			continue
		}
		c.dispatch(id, &msg.Response)
	}

	select {
	case <-c.shutdown:
		c.log.Debug("connection closed")
	default:
		c.log.Warn("connection lost", zap.Error(cause))
	}

	c.respLock.Lock()
	c.closed = true
	for id, p := range c.pending {
		if p.ch != nil {
			close(p.ch)
		}
		if p.sub != nil {
			p.sub.Close(ErrConnectionClosed)
		}
		delete(c.pending, id)
	}
	for id, sub := range c.subscriptions {
		sub.Close(ErrConnectionClosed)
		delete(c.subscriptions, id)
	}
	c.subIDs = make(map[uuid.UUID]chainrpc.SubscriptionID)
	c.respLock.Unlock()
	close(c.done)
}

func (c *WSClient) wsWriter() {
	pingTicker := time.NewTicker(wsPingPeriod)
	defer c.ws.Close()
	defer pingTicker.Stop()
	for {
		select {
		case <-c.shutdown:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteLimit))
			return
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		case req := <-c.requests:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout))
			if err := c.ws.WriteJSON(req); err != nil {
				c.log.Debug("failed to send request", zap.String("method", req.Method), zap.Error(err))
				return
			}
		case <-pingTicker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteLimit))
			if err := c.ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// register adds a pending request unless the connection is gone.
func (c *WSClient) register(id uint64, p *pendingRequest) error {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	c.pending[id] = p
	return nil
}

func (c *WSClient) unregister(id uint64) {
	c.respLock.Lock()
	delete(c.pending, id)
	c.respLock.Unlock()
}

// send passes request to the writer.
func (c *WSClient) send(r *chainrpc.Request, timeout <-chan time.Time) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-timeout:
		return fmt.Errorf("%w: %s", ErrRequestTimeout, r.Method)
	case c.requests <- r:
		return nil
	}
}

func (c *WSClient) makeWsRequest(r *chainrpc.Request) (*chainrpc.Response, error) {
	ch := make(chan *chainrpc.Response, 1)
	if err := c.register(r.ID, &pendingRequest{ch: ch}); err != nil {
		return nil, err
	}
	defer c.unregister(r.ID)

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()
	if err := c.send(r, timer.C); err != nil {
		return nil, err
	}
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrConnectionClosed
		}
		return resp, nil
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrRequestTimeout, r.Method)
	}
}

// dispatch routes the response to the waiting request.
func (c *WSClient) dispatch(id uint64, resp *chainrpc.Response) {
	c.respLock.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.respLock.Unlock()
	if !ok {
		c.log.Debug("response for unknown request", zap.Uint64("id", id))
		return
	}
	if p.sub != nil {
		c.subscribed(p.sub, resp)
		return
	}
	p.ch <- resp
}

// subscribed handles author_submitAndWatchExtrinsic response. It's called by
// the reader, so the subscription is known before any notification for it is
// processed.
func (c *WSClient) subscribed(sub *txstatus.Subscription, resp *chainrpc.Response) {
	if resp.Error != nil {
		reason := submissionFailure(resp.Error)
		c.log.Debug("transaction rejected", zap.Stringer("hash", sub.Hash), zap.Error(reason))
		countEvents(sub.Reject(reason))
		return
	}
	var subID chainrpc.SubscriptionID
	if err := json.Unmarshal(resp.Result, &subID); err != nil {
		c.log.Warn("bad subscription ID", zap.Stringer("hash", sub.Hash), zap.Error(err))
		sub.Close(fmt.Errorf("%w: subscription ID: %v", ErrDecodeFailure, err))
		return
	}
	c.respLock.Lock()
	defer c.respLock.Unlock()
	select {
	case <-sub.Done():
		// Unsubscribed before the node answered.
		go c.unwatchRemote(subID)
	default:
		c.subscriptions[subID] = sub
		c.subIDs[sub.ID] = subID
	}
}

// submissionFailure maps node rejection into the failure reason of Invalid
// event, the node error is kept in the chain.
func submissionFailure(e *chainrpc.Error) error {
	switch {
	case e.IsStaleNonce():
		return fmt.Errorf("%w: %w", txstatus.ErrStaleNonce, e)
	case e.IsSubmissionRejection():
		return fmt.Errorf("%w: %w", txstatus.ErrValidationFailed, e)
	}
	return e
}

// notify routes subscription notifications.
func (c *WSClient) notify(msg *chainrpc.Message) {
	if msg.Method != extrinsicUpdateMethod {
		c.log.Debug("unexpected notification", zap.String("method", msg.Method))
		return
	}
	subID := msg.Params.Subscription
	c.respLock.Lock()
	sub, ok := c.subscriptions[subID]
	c.respLock.Unlock()
	if !ok {
		c.log.Debug("notification for unknown subscription", zap.String("subscription", string(subID)))
		return
	}
	var u txstatus.Update
	if err := json.Unmarshal(msg.Params.Result, &u); err != nil {
		c.log.Warn("bad transaction update", zap.String("subscription", string(subID)), zap.Error(err))
		return
	}
	evs := sub.Apply(u)
	countEvents(evs)
	for _, ev := range evs {
		c.log.Debug("transaction status", zap.Stringer("hash", sub.Hash), zap.Stringer("status", ev))
	}
	select {
	case <-sub.Done():
		c.forget(sub.ID)
	default:
	}
}

// forget drops the subscription from routing tables, returning its node ID.
func (c *WSClient) forget(id uuid.UUID) (chainrpc.SubscriptionID, bool) {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	subID, ok := c.subIDs[id]
	if ok {
		delete(c.subIDs, id)
		delete(c.subscriptions, subID)
	}
	return subID, ok && !c.closed
}

// unwatch is called when the user unsubscribes.
func (c *WSClient) unwatch(id uuid.UUID) {
	subID, ok := c.forget(id)
	if ok {
		go c.unwatchRemote(subID)
	}
}

func (c *WSClient) unwatchRemote(subID chainrpc.SubscriptionID) {
	_, err := c.performRequest("author_unwatchExtrinsic", []any{subID})
	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		c.log.Debug("failed to unwatch extrinsic", zap.String("subscription", string(subID)), zap.Error(err))
	}
}
