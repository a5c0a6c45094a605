// multisig-cli is a command-line client for the multisig wallet service. It
// also holds the signer side: key generation and signing happen locally and
// private keys never reach the service.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Klingon-tech/klingnet-multisig/config"
	"github.com/Klingon-tech/klingnet-multisig/pkg/client"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	apiFlag = &cli.StringFlag{
		Name:    "api",
		Usage:   "Service endpoint",
		Value:   "http://127.0.0.1:8580",
		EnvVars: []string{"MULTISIG_API"},
	}
	datadirFlag = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Data directory; key files live in <datadir>/keys",
		Value:   config.DefaultDataDir(),
		EnvVars: []string{"MULTISIG_DATADIR"},
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "multisig-cli"
	app.Usage = "multisig wallet command line interface"
	app.Version = Version
	app.Flags = []cli.Flag{apiFlag, datadirFlag}
	app.Commands = []*cli.Command{
		&keygenCommand,
		&submitterKeyCommand,
		&pubkeysCommand,
		&signCommand,
		&generateWalletCommand,
		&spendCommand,
		&walletCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func apiClient(c *cli.Context) *client.Client {
	return client.New(c.String(apiFlag.Name))
}
