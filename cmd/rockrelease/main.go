package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// main only delegates to the root cobra command defined in root.go
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
