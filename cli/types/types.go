package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/subgo/cli/options"
	"github.com/nspcc-dev/subgo/pkg/config"
	"github.com/nspcc-dev/subgo/pkg/typereg"
	"github.com/urfave/cli"
)

// NewCommands returns 'types' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:  "types",
		Usage: "Work with custom type schemas",
		Subcommands: []cli.Command{
			{
				Name:      "aggregate",
				Usage:     "Merge type fragments into one schema",
				UsageText: "subgo types aggregate [--out <file>] [--strict] <fragment.json> [<fragment.json> ...]",
				Description: `Merges JSON type fragments in the given order, types from later
   fragments override the ones defined earlier. Every override is reported,
   with --strict it's an error and nothing is written. The result is written
   atomically.`,
				Action: aggregate,
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  "out, o",
						Value: config.DefaultTypesPath,
						Usage: "Output file",
					},
					cli.BoolFlag{
						Name:  "strict",
						Usage: "Treat type redefinitions as errors",
					},
				},
			},
			{
				Name:      "show",
				Usage:     "Print merged schema types",
				UsageText: "subgo types show [--types <file>] [<type> ...]",
				Action:    show,
				Flags:     []cli.Flag{options.Types},
			},
		},
	}}
}

func aggregate(ctx *cli.Context) error {
	paths := ctx.Args()
	if len(paths) == 0 {
		return cli.NewExitError("no fragments given", 1)
	}
	schema, colls, err := typereg.Load(paths...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	for _, c := range colls {
		fmt.Fprintf(ctx.App.ErrWriter, "Warning: %s\n", c)
	}
	if len(colls) != 0 && ctx.Bool("strict") {
		return cli.NewExitError(fmt.Errorf("%d type(s) redefined", len(colls)), 1)
	}
	out := ctx.String("out")
	if err := typereg.Save(out, schema); err != nil {
		return cli.NewExitError(fmt.Errorf("can't save schema: %w", err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Saved %d type(s) from %d fragment(s) to %s\n", len(schema), len(paths), out)
	return nil
}

func show(ctx *cli.Context) error {
	path := ctx.String("types")
	if path == "" {
		path = config.DefaultTypesPath
	}
	schema, err := typereg.LoadFile(path)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	names := ctx.Args()
	if len(names) == 0 {
		names = schema.Names()
	}
	for _, name := range names {
		d, ok := schema[name]
		if !ok {
			return cli.NewExitError(errors.New("unknown type "+name), 1)
		}
		data, err := json.Marshal(d)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		fmt.Fprintf(ctx.App.Writer, "%s: %s\n", name, data)
	}
	return nil
}
