package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/cmtree/cli/query"
	"github.com/nspcc-dev/cmtree/cli/server"
	"github.com/nspcc-dev/cmtree/cli/util"
	"github.com/nspcc-dev/cmtree/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "cmtree\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a cmtree instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "cmtree"
	ctl.Version = config.Version
	ctl.Usage = "Cartesian Merkle tree service"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, util.NewCommands()...)
	ctl.Commands = append(ctl.Commands, query.NewCommands()...)
	return ctl
}
