// Command oprema-scan is a scanning station: it reads equipment QR codes and
// UPCs from a camera or image files and performs lending actions against an
// oprema server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, renderError(err, colorEnabled(os.Stderr)))
		}
		stop()
		os.Exit(1)
	}
}
