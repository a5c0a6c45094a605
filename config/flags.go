package config

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Flag names shared by the daemon's command line.
const (
	FlagConfig        = "config"
	FlagDataDir       = "datadir"
	FlagAPIAddr       = "api-addr"
	FlagAPIPort       = "api-port"
	FlagAPIAllowed    = "api-allowed"
	FlagAPICORS       = "api-cors"
	FlagNodeURL       = "node-url"
	FlagNodeTimeout   = "node-timeout"
	FlagForc          = "forc"
	FlagWorkers       = "compiler-workers"
	FlagCompileTime   = "compiler-timeout"
	FlagTemplate      = "template"
	FlagKeepWorkspace = "keep-workspace"
	FlagStore         = "store"
	FlagDedupTTL      = "dedup-ttl"
	FlagSubmitterKey  = "submitter-key"
	FlagLogLevel      = "log-level"
	FlagLogFile       = "log-file"
	FlagLogJSON       = "log-json"
)

// Flags returns the daemon's command-line flags. Flags carry no defaults of
// their own; unset flags leave file and default values alone.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: FlagConfig, Usage: "Config file path (default: <datadir>/multisig.conf)"},
		&cli.StringFlag{Name: FlagDataDir, Usage: "Data directory path", EnvVars: []string{"MULTISIG_DATADIR"}},
		&cli.StringFlag{Name: FlagAPIAddr, Usage: "API listen address"},
		&cli.IntFlag{Name: FlagAPIPort, Usage: "API listen port"},
		&cli.StringFlag{Name: FlagAPIAllowed, Usage: "Comma-separated IPs/CIDRs allowed to call the API"},
		&cli.StringFlag{Name: FlagAPICORS, Usage: "Comma-separated CORS origins"},
		&cli.StringFlag{Name: FlagNodeURL, Usage: "Ledger node JSON-RPC URL", EnvVars: []string{"MULTISIG_NODE_URL"}},
		&cli.DurationFlag{Name: FlagNodeTimeout, Usage: "Deadline for one spend submission"},
		&cli.StringFlag{Name: FlagForc, Usage: "Compiler binary"},
		&cli.IntFlag{Name: FlagWorkers, Usage: "Concurrent compiler runs"},
		&cli.DurationFlag{Name: FlagCompileTime, Usage: "Deadline for one compile"},
		&cli.StringFlag{Name: FlagTemplate, Usage: "Authorization script template file"},
		&cli.BoolFlag{Name: FlagKeepWorkspace, Usage: "Keep compiler projects on disk"},
		&cli.StringFlag{Name: FlagStore, Usage: "Store backend: badger, bolt, sqlite or memory"},
		&cli.DurationFlag{Name: FlagDedupTTL, Usage: "How long spend outcomes are remembered"},
		&cli.StringFlag{Name: FlagSubmitterKey, Usage: "Encrypted submitter key file"},
		&cli.StringFlag{Name: FlagLogLevel, Usage: "Log level: trace, debug, info, warn, error"},
		&cli.StringFlag{Name: FlagLogFile, Usage: "Log file path (default: stdout)"},
		&cli.BoolFlag{Name: FlagLogJSON, Usage: "Output logs as JSON"},
	}
}

// ApplyFlags applies explicitly set command-line flags to cfg.
func ApplyFlags(cfg *Config, c *cli.Context) {
	if c.IsSet(FlagDataDir) {
		cfg.DataDir = c.String(FlagDataDir)
	}
	if c.IsSet(FlagAPIAddr) {
		cfg.API.Addr = c.String(FlagAPIAddr)
	}
	if c.IsSet(FlagAPIPort) {
		cfg.API.Port = c.Int(FlagAPIPort)
	}
	if c.IsSet(FlagAPIAllowed) {
		cfg.API.AllowedIPs = parseStringList(c.String(FlagAPIAllowed))
	}
	if c.IsSet(FlagAPICORS) {
		cfg.API.CORSOrigins = parseStringList(c.String(FlagAPICORS))
	}
	if c.IsSet(FlagNodeURL) {
		cfg.Node.URL = c.String(FlagNodeURL)
	}
	if c.IsSet(FlagNodeTimeout) {
		cfg.Node.Timeout = c.Duration(FlagNodeTimeout)
	}
	if c.IsSet(FlagForc) {
		cfg.Compiler.Binary = c.String(FlagForc)
	}
	if c.IsSet(FlagWorkers) {
		cfg.Compiler.Workers = c.Int(FlagWorkers)
	}
	if c.IsSet(FlagCompileTime) {
		cfg.Compiler.Timeout = c.Duration(FlagCompileTime)
	}
	if c.IsSet(FlagTemplate) {
		cfg.Compiler.Template = c.String(FlagTemplate)
	}
	if c.IsSet(FlagKeepWorkspace) {
		cfg.Compiler.KeepWorkspace = c.Bool(FlagKeepWorkspace)
	}
	if c.IsSet(FlagStore) {
		cfg.Store.Backend = c.String(FlagStore)
	}
	if c.IsSet(FlagDedupTTL) {
		cfg.Spend.DedupTTL = c.Duration(FlagDedupTTL)
	}
	if c.IsSet(FlagSubmitterKey) {
		cfg.Submitter.KeyFile = c.String(FlagSubmitterKey)
	}
	if c.IsSet(FlagLogLevel) {
		cfg.Log.Level = c.String(FlagLogLevel)
	}
	if c.IsSet(FlagLogFile) {
		cfg.Log.File = c.String(FlagLogFile)
	}
	if c.IsSet(FlagLogJSON) {
		cfg.Log.JSON = c.Bool(FlagLogJSON)
	}
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(c *cli.Context) (*Config, error) {
	cfg := Default()

	// Datadir decides where the config file lives.
	if c.IsSet(FlagDataDir) {
		cfg.DataDir = c.String(FlagDataDir)
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := c.String(FlagConfig)
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, c)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.StoreDir(),
		cfg.WorkspaceDir(),
		cfg.KeysDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := os.Chmod(cfg.KeysDir(), 0700); err != nil {
		return fmt.Errorf("securing %s: %w", cfg.KeysDir(), err)
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
