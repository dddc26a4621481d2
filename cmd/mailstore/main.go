// Command mailstore ingests, fetches and scans messages in a mailstore
// substrate.
//
//	mailstore --backend redis ingest --mailbox inbox --uid 1 msg.eml
//	mailstore --backend redis fetch --mailbox inbox --message-id <id> --uid 1 --depth body
//	mailstore --backend redis scan
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
