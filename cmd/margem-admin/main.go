package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"margem/internal/cli"
	"margem/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, config.FromEnv(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
