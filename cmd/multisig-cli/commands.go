package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Klingon-tech/klingnet-multisig/internal/signer"
	"github.com/Klingon-tech/klingnet-multisig/internal/spend"
	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

var (
	keyFlag = &cli.StringSliceFlag{
		Name:  "key",
		Usage: "Encrypted key file (repeat for several)",
	}
	pubkeyFlag = &cli.StringSliceFlag{
		Name:  "pubkey",
		Usage: "Hex public key (repeat for several)",
	}
	messageFlag = &cli.StringFlag{
		Name:  "message",
		Usage: "32-byte hex message the wallet script checks signatures against",
	}
)

var keygenCommand = cli.Command{
	Name:  "keygen",
	Usage: "Create a mnemonic and derive the three signer key files from it",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "mnemonic", Usage: "Restore from an existing BIP-39 mnemonic"},
		&cli.UintFlag{Name: "account", Usage: "HD account index"},
		&cli.StringFlag{Name: "out", Usage: "Output directory (default: <datadir>/keys)"},
	},
	Action: func(c *cli.Context) error {
		mnemonic := c.String("mnemonic")
		if mnemonic == "" {
			m, err := signer.GenerateMnemonic()
			if err != nil {
				return err
			}
			mnemonic = m
			fmt.Println("Mnemonic (write this down!):")
			fmt.Printf("  %s\n\n", mnemonic)
		}

		seed, err := signer.SeedFromMnemonic(mnemonic, "")
		if err != nil {
			return err
		}
		defer clear(seed)

		account := uint32(c.Uint("account"))
		keys, err := signer.DeriveKeySet(seed, account)
		if err != nil {
			return err
		}
		defer func() {
			for _, k := range keys {
				k.Zero()
			}
		}()

		passphrase, err := readNewPassword()
		if err != nil {
			return err
		}

		dir := c.String("out")
		if dir == "" {
			dir = filepath.Join(c.String(datadirFlag.Name), "keys")
		}
		for i, k := range keys {
			path := filepath.Join(dir, signerFileName(account, i))
			label := fmt.Sprintf("signer %d (account %d)", i+1, account)
			if err := signer.SaveKey(path, label, k, passphrase, signer.DefaultKDFParams()); err != nil {
				return err
			}
			fmt.Printf("Signer %d: %s\n  %s\n", i+1, path, k.PublicKey().Hex())
		}
		return nil
	},
}

var submitterKeyCommand = cli.Command{
	Name:  "submitter-key",
	Usage: "Create an encrypted submitter key for the service",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Usage: "Output file (default: <datadir>/keys/submitter.json)"},
	},
	Action: func(c *cli.Context) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		defer key.Zero()

		passphrase, err := readNewPassword()
		if err != nil {
			return err
		}
		path := c.String("out")
		if path == "" {
			path = filepath.Join(c.String(datadirFlag.Name), "keys", "submitter.json")
		}
		if err := signer.SaveKey(path, "submitter", key, passphrase, signer.DefaultKDFParams()); err != nil {
			return err
		}
		fmt.Printf("Submitter key: %s\n  %x\n", path, key.CompressedPublicKey())
		return nil
	},
}

var pubkeysCommand = cli.Command{
	Name:      "pubkeys",
	Usage:     "Print the public keys of key files",
	ArgsUsage: "<keyfile>...",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("at least one key file is required")
		}
		for _, path := range c.Args().Slice() {
			pub, err := signer.ReadPublicKey(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", pub.Hex(), path)
		}
		return nil
	},
}

var signCommand = cli.Command{
	Name:  "sign",
	Usage: "Sign the wallet message with a key file",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "key", Usage: "Encrypted key file", Required: true},
		messageFlag,
	},
	Action: func(c *cli.Context) error {
		msg, err := parseMessage(c.String(messageFlag.Name))
		if err != nil {
			return err
		}
		sig, err := signWithFile(c.String("key"), msg)
		if err != nil {
			return err
		}
		fmt.Println(sig.String())
		return nil
	},
}

var generateWalletCommand = cli.Command{
	Name:  "generate-wallet",
	Usage: "Create (or look up) the wallet of three signer keys",
	Flags: []cli.Flag{keyFlag, pubkeyFlag},
	Action: func(c *cli.Context) error {
		keys, err := collectPublicKeys(c.StringSlice(pubkeyFlag.Name), c.StringSlice(keyFlag.Name))
		if err != nil {
			return err
		}
		w, err := apiClient(c).GenerateWallet(c.Context, keys)
		if err != nil {
			return err
		}
		fmt.Printf("Wallet: %s\n", w.Wallet)
		fmt.Printf("        %s\n", w.Wallet.Bech32())
		fmt.Printf("ID:     %s\n", w.WalletID)
		for i, k := range w.PublicKeys {
			fmt.Printf("Slot %d: %s\n", i+1, k.Hex())
		}
		return nil
	},
}

var spendCommand = cli.Command{
	Name:  "spend",
	Usage: "Spend coins from a wallet",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "wallet", Usage: "Wallet address", Required: true},
		&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
		&cli.Uint64Flag{Name: "amount", Usage: "Amount in base units", Required: true},
		&cli.StringFlag{Name: "asset", Usage: "Asset id (default: base asset)"},
		&cli.StringSliceFlag{Name: "utxo", Usage: "Input coin <txid>:<index> (repeat for several)", Required: true},
		&cli.StringSliceFlag{Name: "sig", Usage: "Signature as <slot>:<hex>, slots numbered from 1 (repeat for several)"},
		keyFlag,
		messageFlag,
		&cli.StringFlag{Name: "idempotency-key", Usage: "Replay key for retrying an unknown outcome"},
	},
	Action: func(c *cli.Context) error {
		req := spend.Request{
			Amount:         c.Uint64("amount"),
			IdempotencyKey: c.String("idempotency-key"),
		}
		var err error
		if req.Wallet, err = types.ParseAddress(c.String("wallet")); err != nil {
			return fmt.Errorf("wallet: %w", err)
		}
		if req.Recipient, err = types.ParseAddress(c.String("to")); err != nil {
			return fmt.Errorf("to: %w", err)
		}
		if s := c.String("asset"); s != "" {
			h, err := types.ParseHash(s)
			if err != nil {
				return fmt.Errorf("asset: %w", err)
			}
			req.AssetID = types.AssetID(h)
		}

		sigs, err := parseSignatures(c.StringSlice("sig"))
		if err != nil {
			return err
		}
		if files := c.StringSlice(keyFlag.Name); len(files) > 0 {
			msg, err := parseMessage(c.String(messageFlag.Name))
			if err != nil {
				return err
			}
			w, err := apiClient(c).GetWallet(c.Context, req.Wallet)
			if err != nil {
				return err
			}
			for _, f := range files {
				pub, err := signer.ReadPublicKey(f)
				if err != nil {
					return err
				}
				slot, err := slotOf(w.PublicKeys, pub)
				if err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(f), err)
				}
				sig, err := signWithFile(f, msg)
				if err != nil {
					return err
				}
				if err := sigs.place(slot, sig); err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(f), err)
				}
			}
		}
		if req.Inputs, err = buildInputs(c.StringSlice("utxo"), sigs); err != nil {
			return err
		}

		res, err := apiClient(c).SpendFunds(c.Context, req)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var walletCommand = cli.Command{
	Name:      "wallet",
	Usage:     "Show a stored wallet",
	ArgsUsage: "<address>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("usage: multisig-cli wallet <address>")
		}
		addr, err := types.ParseAddress(c.Args().First())
		if err != nil {
			return err
		}
		w, err := apiClient(c).GetWallet(c.Context, addr)
		if err != nil {
			return err
		}
		return printJSON(w)
	},
}

// signWithFile unlocks a key file and signs msg with it.
func signWithFile(path string, msg types.Hash) (types.HexBytes, error) {
	passphrase, err := readPassword(fmt.Sprintf("Passphrase for %s: ", filepath.Base(path)))
	if err != nil {
		return nil, err
	}
	key, err := signer.LoadKey(path, passphrase)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	sig, err := signer.New(key).Sign(msg)
	if err != nil {
		return nil, err
	}
	return types.HexBytes(sig[:]), nil
}

// readNewPassword prompts twice and requires both entries to match.
func readNewPassword() ([]byte, error) {
	password, err := readPassword("Enter passphrase: ")
	if err != nil {
		return nil, err
	}
	confirm, err := readPassword("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	if string(password) != string(confirm) {
		return nil, fmt.Errorf("passphrases do not match")
	}
	if len(strings.TrimSpace(string(password))) == 0 {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	return password, nil
}
