package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	outreachcmd "github.com/telekom/notion-outreach/pkg/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := outreachcmd.DefaultConfig()
	cfg.Context = ctx
	root := outreachcmd.NewRootCommand(cfg)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
