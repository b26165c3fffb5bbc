package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/cli/flags"
	"github.com/nspcc-dev/subgo/cli/options"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/extrinsic"
	"github.com/nspcc-dev/subgo/pkg/submitter"
	"github.com/nspcc-dev/subgo/pkg/txstatus"
	"github.com/urfave/cli"
)

// DefaultSigner is the development account used when --from is not given.
const DefaultSigner = "//Alice"

// NewCommands returns 'submit' command.
func NewCommands() []cli.Command {
	batchFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "from, f",
			Value: DefaultSigner,
			Usage: "Signer key derivation string (like '//Alice' or '0x<seed>//path')",
		},
		cli.IntFlag{
			Name:  "count, n",
			Value: 1,
			Usage: "Number of transactions to send",
		},
		cli.DurationFlag{
			Name:  "delay",
			Usage: "Pause between transactions (overrides Submitter.Delay from the configuration, negative disables it)",
		},
		cli.BoolFlag{
			Name:  "abort",
			Usage: "Stop sending transactions after the first failure",
		},
		cli.BoolFlag{
			Name:  "no-wait",
			Usage: "Don't wait for transactions to be finalized",
		},
	}, options.Client...)
	transferFlags := append([]cli.Flag{
		flags.AddressFlag{
			Name:  "to, t",
			Usage: "Receiver address",
		},
		flags.AmountFlag{
			Name:  "amount, a",
			Usage: "Amount to transfer (in base units)",
		},
	}, batchFlags...)
	return []cli.Command{{
		Name:  "submit",
		Usage: "Send transactions",
		Subcommands: []cli.Command{
			{
				Name:      "transfer",
				Usage:     "Send a series of balance transfers",
				UsageText: "subgo submit transfer --to <address> --amount <amount> [--from <key>] [--count <n>] [--delay <duration>]",
				Description: `Sends --count transfers with consecutive nonces starting from the
   current nonce of the signer, pausing for --delay between them. Status
   updates of every transaction are printed as they arrive. Final statuses
   are waited for without limit unless --timeout is given.`,
				Action: transfer,
				Flags:  transferFlags,
			},
			{
				Name:      "call",
				Usage:     "Send a series of transactions with a configured call",
				UsageText: "subgo submit call [--from <key>] [--count <n>] <module> <function> [<arg> ...]",
				Description: `Sends --count transactions with the given call, the call must be
   described in the Calls section of the configuration (or be a built-in
   one). Arguments are converted to call parameter types.`,
				Action: call,
				Flags:  batchFlags,
			},
		},
	}}
}

func transfer(ctx *cli.Context) error {
	to := flags.AddressFromContext(ctx, "to")
	if to == nil {
		return cli.NewExitError("receiver address is required", 1)
	}
	amount := flags.AmountFromContext(ctx, "amount")
	return sendBatch(ctx, func(r *extrinsic.Registry) (extrinsic.Call, error) {
		return r.Transfer(*to, amount)
	})
}

func call(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) < 2 {
		return cli.NewExitError("module and function are required", 1)
	}
	params := make([]any, 0, len(args)-2)
	for _, a := range args[2:] {
		params = append(params, a)
	}
	return sendBatch(ctx, func(r *extrinsic.Registry) (extrinsic.Call, error) {
		return r.NewCall(args[0], args[1], params...)
	})
}

func sendBatch(ctx *cli.Context, newCall func(*extrinsic.Registry) (extrinsic.Call, error)) error {
	count := ctx.Int("count")
	if count <= 0 {
		return cli.NewExitError("transaction count must be positive", 1)
	}
	cfg, log, ec := options.GetConfigAndLogger(ctx)
	if ec != nil {
		return ec
	}
	calls, err := extrinsic.NewRegistry(cfg.Calls...)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("bad call configuration: %w", err), 1)
	}
	c, err := newCall(calls)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	keyring := keys.NewKeyring()
	account, err := keyring.AddFromURI(ctx.String("from"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid signer: %w", err), 1)
	}

	stop, ec := options.StartServices(cfg, log)
	if ec != nil {
		return ec
	}
	defer stop()

	// The connection and the batch live until the command is done or
	// interrupted, --timeout only limits waiting for final statuses.
	gctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	client, ec := options.GetRPCClient(gctx, cfg, log)
	if ec != nil {
		return ec
	}
	defer client.Close()

	var (
		out   = &syncWriter{w: ctx.App.Writer}
		delay = cfg.Submitter.Delay
		tip   *uint256.Int
	)
	if ctx.IsSet("delay") {
		delay = ctx.Duration("delay")
	}
	if cfg.Submitter.Tip != 0 {
		tip = uint256.NewInt(cfg.Submitter.Tip)
	}
	out.Printf("Sending %d transaction(s) of %s from %s\n", count, c, account)
	s := submitter.New(client, keyring, account, submitter.Options{
		Delay: delay,
		Tip:   tip,
		OnStatus: func(sub *submitter.Submission, ev txstatus.Event) {
			out.Printf("#%d nonce %d %s: %s\n", sub.Index, sub.Nonce, sub.Hash, ev)
		},
		OnError: func(sub *submitter.Submission, err error) bool {
			return ctx.Bool("abort")
		},
		Logger: log,
	})
	batch := make([]extrinsic.Call, count)
	for i := range batch {
		batch[i] = c
	}
	subs, batchErr := s.SubmitBatch(gctx, batch)
	if ctx.Bool("no-wait") {
		if batchErr != nil {
			return cli.NewExitError(batchErr, 1)
		}
		return nil
	}
	wctx, wcancel := waitContext(gctx, ctx)
	defer wcancel()
	failed := waitAll(wctx, out, subs)
	switch {
	case batchErr != nil:
		return cli.NewExitError(batchErr, 1)
	case failed != 0:
		return cli.NewExitError(fmt.Errorf("%d of %d transaction(s) failed", failed, len(subs)), 1)
	}
	return nil
}

// waitContext bounds waiting by --timeout if it's given, otherwise
// transactions are waited for until they're done.
func waitContext(parent context.Context, ctx *cli.Context) (context.Context, context.CancelFunc) {
	if ctx.IsSet("timeout") {
		return context.WithTimeout(parent, ctx.Duration("timeout"))
	}
	return context.WithCancel(parent)
}

// waitAll waits for all submissions to complete and prints their final
// states, it returns the number of failed transactions.
func waitAll(ctx context.Context, out *syncWriter, subs []*submitter.Submission) int {
	var failed int
	for _, sub := range subs {
		ev, err := sub.Wait(ctx)
		if err != nil {
			failed++
			if errors.Is(err, context.DeadlineExceeded) {
				out.Printf("#%d nonce %d: not completed, last status %s\n", sub.Index, sub.Nonce, ev.State)
				continue
			}
			out.Printf("#%d nonce %d: failed: %v\n", sub.Index, sub.Nonce, err)
			continue
		}
		out.Printf("#%d nonce %d %s: %s\n", sub.Index, sub.Nonce, sub.Hash, ev.State)
	}
	return failed
}

// syncWriter serializes output of concurrent status callbacks.
type syncWriter struct {
	lock sync.Mutex
	w    io.Writer
}

func (s *syncWriter) Printf(format string, args ...any) {
	s.lock.Lock()
	defer s.lock.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
