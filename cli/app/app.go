package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/subgo/cli/query"
	"github.com/nspcc-dev/subgo/cli/submit"
	"github.com/nspcc-dev/subgo/cli/types"
	"github.com/nspcc-dev/subgo/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "subgo\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a subgo instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "subgo"
	ctl.Version = config.Version
	ctl.Usage = "Custom RPC and transaction submission client for Substrate nodes"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, types.NewCommands()...)
	ctl.Commands = append(ctl.Commands, query.NewCommands()...)
	ctl.Commands = append(ctl.Commands, submit.NewCommands()...)
	return ctl
}
