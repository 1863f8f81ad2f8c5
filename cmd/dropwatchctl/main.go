// Command dropwatchctl inspects and drives pollers from the command line,
// using the same configuration as the dropwatch daemon.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var stderr io.Writer = os.Stderr

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(newCLI(os.Stdout)).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
