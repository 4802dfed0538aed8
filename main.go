// sshmux - run remote operations over one multiplexed SSH connection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sshmux/cmd"
	smerr "sshmux/internal/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:])
	cancel()
	if err == nil {
		return
	}

	var ee *smerr.ExitError
	if !smerr.As(err, &ee) {
		fmt.Fprintf(os.Stderr, "sshmux: %v\n", err)
	}
	os.Exit(smerr.ExitCode(err))
}
