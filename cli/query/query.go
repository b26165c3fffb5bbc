package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/nspcc-dev/subgo/cli/options"
	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/rpcclient"
	"github.com/urfave/cli"
)

// NewCommands returns 'query' command.
func NewCommands() []cli.Command {
	storageFlags := append([]cli.Flag{
		cli.BoolFlag{
			Name:  "optional",
			Usage: "Print 'null' for absent values instead of failing",
		},
	}, options.Client...)
	return []cli.Command{{
		Name:  "query",
		Usage: "Query data from the node",
		Subcommands: []cli.Command{
			{
				Name:   "info",
				Usage:  "Print genesis hash, runtime version and chain properties",
				Action: queryInfo,
				Flags:  options.Client,
			},
			{
				Name:   "methods",
				Usage:  "List known RPC methods",
				Action: queryMethods,
				Flags:  options.Client,
			},
			{
				Name:      "rpc",
				Usage:     "Call RPC method",
				UsageText: "subgo query rpc <namespace> <method> [<arg> ...]",
				Description: `Calls a built-in or configured RPC method. Arguments are converted
   to parameter types of the method, integers are given in decimal or as
   0x-prefixed hex, accounts as SS58 addresses or hex. The result is printed
   as JSON.`,
				Action: queryRPC,
				Flags:  options.Client,
			},
			{
				Name:      "storage",
				Usage:     "Query storage item",
				UsageText: "subgo query storage [--optional] <module> <item> [<key> ...]",
				Action:    queryStorage,
				Flags:     storageFlags,
			},
			{
				Name:      "nonce",
				Usage:     "Print the next nonce of an account",
				UsageText: "subgo query nonce <address>",
				Action:    queryNonce,
				Flags:     options.Client,
			},
		},
	}}
}

func getClient(gctx context.Context, ctx *cli.Context) (*rpcclient.WSClient, cli.ExitCoder) {
	cfg, log, ec := options.GetConfigAndLogger(ctx)
	if ec != nil {
		return nil, ec
	}
	return options.GetRPCClient(gctx, cfg, log)
}

func queryInfo(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, ec := getClient(gctx, ctx)
	if ec != nil {
		return ec
	}
	defer c.Close()

	// Values are cached by Init, errors are impossible here.
	genesis, _ := c.GenesisHash()
	ver, _ := c.RuntimeVersion()
	meta, _ := c.Metadata()
	props, _ := c.Properties()

	buf := bytes.NewBuffer(nil)
	// Ignore the errors below because `Write` to buffer doesn't return error.
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Genesis:\t" + genesis.String() + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("Runtime:\t%s/%s\n", ver.SpecName, ver.ImplName)))
	_, _ = tw.Write([]byte(fmt.Sprintf("SpecVersion:\t%d\n", ver.SpecVersion)))
	_, _ = tw.Write([]byte(fmt.Sprintf("TransactionVersion:\t%d\n", ver.TransactionVersion)))
	_, _ = tw.Write([]byte(fmt.Sprintf("Metadata:\t%d bytes\n", len(meta))))
	if props.SS58Format != nil {
		_, _ = tw.Write([]byte(fmt.Sprintf("SS58Format:\t%d\n", *props.SS58Format)))
	}
	for i, sym := range props.TokenSymbol {
		var decimals string
		if i < len(props.TokenDecimals) {
			decimals = strconv.FormatUint(uint64(props.TokenDecimals[i]), 10)
		}
		_, _ = tw.Write([]byte(fmt.Sprintf("Token:\t%s (%s decimals)\n", sym, decimals)))
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

func queryMethods(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, ec := getClient(gctx, ctx)
	if ec != nil {
		return ec
	}
	defer c.Close()

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	for _, m := range c.Methods() {
		params := make([]string, len(m.Params))
		for i, p := range m.Params {
			params[i] = p.Name + ": " + p.Type
		}
		_, _ = tw.Write([]byte(fmt.Sprintf("%s(%s)\t%s\t%s\n", m.RPCName(), strings.Join(params, ", "), m.Type, m.Description)))
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

func queryRPC(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) < 2 {
		return cli.NewExitError("namespace and method are required", 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, ec := getClient(gctx, ctx)
	if ec != nil {
		return ec
	}
	defer c.Close()

	d, ok := c.Method(args[0], args[1])
	if !ok {
		return cli.NewExitError(fmt.Errorf("%w: %s_%s", rpcclient.ErrMethodNotFound, args[0], args[1]), 1)
	}
	v, err := c.CallRPC(args[0], args[1], stringArgs(args[2:])...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return printValue(ctx, c.Registry(), d.Type, v)
}

func queryStorage(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) < 2 {
		return cli.NewExitError("module and item are required", 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, ec := getClient(gctx, ctx)
	if ec != nil {
		return ec
	}
	defer c.Close()

	d, ok := c.Storage(args[0], args[1])
	if !ok {
		return cli.NewExitError(fmt.Errorf("%w: %s.%s", rpcclient.ErrStorageNotFound, args[0], args[1]), 1)
	}
	var (
		v   codec.Value
		err error
	)
	if ctx.Bool("optional") {
		v, err = c.QueryStorageOptional(args[0], args[1], stringArgs(args[2:])...)
	} else {
		v, err = c.QueryStorage(args[0], args[1], stringArgs(args[2:])...)
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return printValue(ctx, c.Registry(), d.Type, v)
}

func queryNonce(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) != 1 {
		return cli.NewExitError("account address is required", 1)
	}
	account, err := keys.ParseAccountID(args[0])
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid address %s: %w", args[0], err), 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, ec := getClient(gctx, ctx)
	if ec != nil {
		return ec
	}
	defer c.Close()

	nonce, err := c.GetAccountNonce(account)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, nonce)
	return nil
}

func stringArgs(args []string) []any {
	res := make([]any, len(args))
	for i := range args {
		res[i] = args[i]
	}
	return res
}

func printValue(ctx *cli.Context, reg *codec.Registry, typ string, v codec.Value) error {
	var out any
	if _, ok := v.(codec.None); !ok {
		var err error
		out, err = reg.EncodeJSON(typ, v)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, string(data))
	return nil
}
