package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wipetrace/internal/app/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $WIPETRACE_CONFIG)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "wipetrace: %v\n", err)
		os.Exit(1)
	}
}
