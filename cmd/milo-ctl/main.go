// Command milo-ctl sends control commands to a running milo daemon.
//
// Usage:
//
//	milo-ctl trigger   # start a conversation
//	milo-ctl stop      # end the active conversation
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/selalipop/milo-firmware/internal/config"
	"github.com/selalipop/milo-firmware/pkg/wake"
)

func main() {
	socket := cli.StringP("socket", "s", "", "Daemon socket path (default $MILO_SOCKET or "+config.DefaultSocketPath+")")
	timeout := cli.DurationP("timeout", "t", 5*time.Second, "Request timeout")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: milo-ctl [flags] trigger|stop")
		cli.PrintDefaults()
	}
	cli.Parse()

	if cli.NArg() != 1 {
		cli.Usage()
		os.Exit(2)
	}

	cmd, err := wake.ParseCommand(cli.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.Usage()
		os.Exit(2)
	}

	path := *socket
	if path == "" {
		path = os.Getenv("MILO_SOCKET")
	}
	if path == "" {
		path = config.DefaultSocketPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := wake.SendCommand(ctx, path, cmd); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
