/*
Package submitter sends batches of transactions from a single account using
sequential nonces.

The account nonce is read from the node once per batch and every subsequent
transaction gets the next one, so the whole batch can be sent without waiting
for previous transactions to be included into blocks. Transactions are paced
with a configurable delay and each one gets its own status subscription.
*/
package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/extrinsic"
	"github.com/nspcc-dev/subgo/pkg/txstatus"
	"github.com/nspcc-dev/subgo/pkg/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DefaultDelay is the default pause between subsequent submissions.
const DefaultDelay = time.Second

// ErrAborted is returned when the batch is stopped by Options.OnError.
var ErrAborted = errors.New("batch aborted")

// RPCSubmitter is an interface required from the RPC client to sign and send
// transactions. It's implemented by the initialized rpcclient.WSClient.
type RPCSubmitter interface {
	GenesisHash() (util.Hash, error)
	RuntimeVersion() (chainrpc.RuntimeVersion, error)
	Registry() *codec.Registry
	GetAccountNonce(account keys.AccountID) (uint32, error)
	SubmitExtrinsic(ext []byte) (*txstatus.Subscription, error)
}

// Options are used to tune the submitter.
type Options struct {
	// Delay is the pause between subsequent submissions, DefaultDelay is
	// used if it's zero, negative values disable pacing.
	Delay time.Duration
	// Tip is added to every transaction (none if nil).
	Tip *uint256.Int
	// OnStatus is called for every status event of every transaction,
	// calls for different transactions can happen concurrently.
	OnStatus func(*Submission, txstatus.Event)
	// OnError is called when a transaction can't be signed or sent and when
	// it ends with a failure. Returning true stops the batch, transactions
	// that are already sent are not affected.
	OnError func(*Submission, error) bool
	Logger  *zap.Logger
}

// Submitter signs and sends transactions on behalf of a single account.
type Submitter struct {
	client  RPCSubmitter
	signer  keys.Signer
	account keys.AccountID
	opts    Options
	log     *zap.Logger
}

// Submission is a transaction sent as a part of a batch.
type Submission struct {
	// Index is the position in the batch.
	Index int
	Nonce uint32
	Call  extrinsic.Call
	// Hash is the extrinsic hash, it's empty if the transaction was never
	// built.
	Hash util.Hash

	sub  *txstatus.Subscription
	err  error
	done chan struct{}
}

// New creates a Submitter for the account using the signer to sign
// transactions.
func New(client RPCSubmitter, signer keys.Signer, account keys.AccountID, opts Options) *Submitter {
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Submitter{
		client:  client,
		signer:  signer,
		account: account,
		opts:    opts,
		log:     opts.Logger.With(zap.Stringer("account", account)),
	}
}

// NonceAt returns the nonce of the i-th transaction of a batch starting at
// base.
func NonceAt(base uint32, i int) uint32 {
	return base + uint32(i)
}

// SubmitBatch sends calls as a sequence of transactions with nonces starting
// from the current account nonce. It doesn't wait for transactions to be
// accepted, use Submission.Wait for that. Failures of separate transactions
// are reported via Options.OnError and via the corresponding Submission, the
// error is returned for failures that prevent the batch from being sent at
// all, for context cancellation and when the batch is aborted, submissions
// made up to that point are returned in any case.
func (s *Submitter) SubmitBatch(ctx context.Context, calls []extrinsic.Call) ([]*Submission, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	genesis, err := s.client.GenesisHash()
	if err != nil {
		return nil, fmt.Errorf("failed to get genesis hash: %w", err)
	}
	version, err := s.client.RuntimeVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get runtime version: %w", err)
	}
	base, err := s.client.GetAccountNonce(s.account)
	if err != nil {
		return nil, fmt.Errorf("failed to get account nonce: %w", err)
	}
	s.log.Info("sending batch", zap.Int("transactions", len(calls)), zap.Uint32("nonce", base))

	var (
		add    = extrinsic.NewAdditional(genesis, version)
		abort  = atomic.NewBool(false)
		result = make([]*Submission, 0, len(calls))
	)
	for i, c := range calls {
		if i > 0 && s.opts.Delay > 0 {
			t := time.NewTimer(s.opts.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return result, fmt.Errorf("batch interrupted at %d: %w", i, ctx.Err())
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("batch interrupted at %d: %w", i, err)
		}
		if abort.Load() {
			return result, fmt.Errorf("%w at %d", ErrAborted, i)
		}
		sub := &Submission{
			Index: i,
			Nonce: NonceAt(base, i),
			Call:  c,
			done:  make(chan struct{}),
		}
		result = append(result, sub)
		if err := s.submit(sub, add); err != nil {
			sub.err = err
			close(sub.done)
			s.log.Warn("failed to send transaction", zap.Int("index", i), zap.Uint32("nonce", sub.Nonce), zap.Error(err))
			if s.onError(sub, err) {
				return result, fmt.Errorf("%w at %d: %w", ErrAborted, i, err)
			}
			continue
		}
		s.log.Info("transaction sent",
			zap.Int("index", i),
			zap.Uint32("nonce", sub.Nonce),
			zap.Stringer("hash", sub.Hash),
			zap.Stringer("call", c))
		go s.observe(sub, abort)
	}
	return result, nil
}

func (s *Submitter) submit(sub *Submission, add extrinsic.Additional) error {
	ext, err := extrinsic.Sign(s.client.Registry(), s.signer, s.account, sub.Call,
		extrinsic.SignedExtra{Nonce: sub.Nonce, Tip: s.opts.Tip}, add)
	if err != nil {
		return err
	}
	b, err := ext.Bytes()
	if err != nil {
		return err
	}
	sub.Hash = ext.Hash()
	sub.sub, err = s.client.SubmitExtrinsic(b)
	return err
}

// observe forwards status events to the callbacks until the subscription ends.
func (s *Submitter) observe(sub *Submission, abort *atomic.Bool) {
	defer close(sub.done)
	for ev := range sub.sub.Events() {
		s.log.Debug("transaction status", zap.Uint32("nonce", sub.Nonce), zap.Stringer("status", ev))
		if s.opts.OnStatus != nil {
			s.opts.OnStatus(sub, ev)
		}
		if ev.Err != nil {
			s.log.Warn("transaction failed", zap.Uint32("nonce", sub.Nonce), zap.Stringer("hash", sub.Hash), zap.Error(ev.Err))
			if s.onError(sub, ev.Err) {
				abort.Store(true)
			}
		}
	}
	if err := sub.sub.Err(); err != nil {
		if s.onError(sub, err) {
			abort.Store(true)
		}
	}
}

func (s *Submitter) onError(sub *Submission, err error) bool {
	return s.opts.OnError != nil && s.opts.OnError(sub, err)
}

// Err returns the error that prevented the transaction from being sent.
func (sub *Submission) Err() error {
	return sub.err
}

// Subscription returns the status subscription, it's nil if the transaction
// wasn't sent.
func (sub *Submission) Subscription() *txstatus.Subscription {
	return sub.sub
}

// Wait blocks until the transaction reaches a terminal state and all of its
// events are delivered to Options.OnStatus. It returns the last event and the
// failure reason if any.
func (sub *Submission) Wait(ctx context.Context) (txstatus.Event, error) {
	if sub.sub == nil {
		<-sub.done
		st := txstatus.Signed
		if sub.Hash.Equals(util.Hash{}) {
			st = txstatus.Constructed
		}
		return txstatus.Event{State: st, Err: sub.err}, sub.err
	}
	select {
	case <-sub.done:
	default:
		select {
		case <-sub.done:
		case <-ctx.Done():
			return sub.sub.Last(), fmt.Errorf("waiting for %s: %w", sub.Hash, ctx.Err())
		}
	}
	return sub.sub.Wait(ctx)
}
