// gwd views Gridworks energy-system operational events: live over MQTT,
// historical from the S3 archive, and cached locally.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thegridelectric/gridworks-debug-cli/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
