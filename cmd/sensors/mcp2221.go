package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/envsense/adapter"
	"github.com/mklimuk/envsense/cmd/sensors/console"
	"github.com/mklimuk/envsense/snsctx"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 USB to I2C bridge maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var deviceIndexFlag = &cli.IntFlag{
	Name:  "index",
	Usage: "bridge index when several are attached (see usb detect)",
	Value: -1,
}

func newBridge(c *cli.Context) *adapter.MCP2221 {
	if c.Int("index") >= 0 {
		return adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
	}
	return adapter.NewMCP2221()
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print I2C engine status",
	Flags: []cli.Flag{deviceIndexFlag},
	Action: func(c *cli.Context) error {
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		status, err := newBridge(c).Status(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		err = printYAML(status)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a stuck I2C transfer and free the bus",
	Flags: []cli.Flag{deviceIndexFlag},
	Action: func(c *cli.Context) error {
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		status, err := newBridge(c).ReleaseBus(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		err = printYAML(status)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}
