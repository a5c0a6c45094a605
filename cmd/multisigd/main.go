// Multisig wallet service daemon.
//
// Usage:
//
//	multisigd [--node-url=... --store=...]  Run service
//	multisigd --help                        Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Klingon-tech/klingnet-multisig/config"
	"github.com/Klingon-tech/klingnet-multisig/internal/service"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "multisigd"
	app.Usage = "2-of-3 multisig wallet service"
	app.Version = Version
	app.Flags = config.Flags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c)
	if err != nil {
		return err
	}

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}

	if err := svc.Start(); err != nil {
		svc.Stop()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	svc.Stop()
	return nil
}
