package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	replicatorcmd "github.com/louisbranch/orderflow/internal/cmd/replicator"
	"github.com/louisbranch/orderflow/internal/platform/config"
)

func main() {
	cfg, err := replicatorcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[REPLICATOR] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := replicatorcmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
