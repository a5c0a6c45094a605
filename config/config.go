// Package config handles service configuration.
//
// Settings come from three layers, later layers winning:
//   - Defaults: Default()
//   - Config file: <datadir>/multisig.conf, key = value lines
//   - Command-line flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds the service's runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// REST API
	API APIConfig

	// Ledger node
	Node NodeConfig

	// Authorization script compiler
	Compiler CompilerConfig

	// Bytecode store
	Store StoreConfig

	// Spend authorization
	Spend SpendConfig

	// Optional submitter key
	Submitter SubmitterConfig

	// Logging
	Log LogConfig
}

// APIConfig holds REST server settings.
type APIConfig struct {
	Addr        string   `conf:"api.addr"`
	Port        int      `conf:"api.port"`
	AllowedIPs  []string `conf:"api.allowed"`
	CORSOrigins []string `conf:"api.cors"` // Allowed CORS origins ("*" = all).
}

// NodeConfig holds the ledger node endpoint.
type NodeConfig struct {
	URL     string        `conf:"node.url"`
	Timeout time.Duration `conf:"node.timeout"` // Per-submission deadline.
}

// CompilerConfig holds compiler pool settings.
type CompilerConfig struct {
	Binary        string        `conf:"compiler.binary"`
	Workers       int           `conf:"compiler.workers"`
	Timeout       time.Duration `conf:"compiler.timeout"`
	Template      string        `conf:"compiler.template"` // Empty = built-in template.
	KeepWorkspace bool          `conf:"compiler.keep_workspace"`
	WorkspaceTTL  time.Duration `conf:"compiler.workspace_ttl"` // Kept workspaces older than this are pruned.
}

// Store backends.
const (
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// StoreConfig selects the bytecode store backend.
type StoreConfig struct {
	Backend string `conf:"store.backend"`
}

// SpendConfig holds spend authorization settings.
type SpendConfig struct {
	DedupTTL time.Duration `conf:"spend.dedup_ttl"`
}

// SubmitterConfig points at the encrypted submitter key. The passphrase is
// read from the environment, never from the config file.
type SubmitterConfig struct {
	KeyFile string `conf:"submitter.keyfile"`
}

// SubmitterPassphraseEnv names the environment variable holding the
// submitter key passphrase.
const SubmitterPassphraseEnv = "MULTISIG_SUBMITTER_PASSPHRASE"

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.multisig
//	macOS:   ~/Library/Application Support/Multisig
//	Windows: %APPDATA%\Multisig
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".multisig"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Multisig")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Multisig")
		}
		return filepath.Join(home, "AppData", "Roaming", "Multisig")
	default:
		return filepath.Join(home, ".multisig")
	}
}

// StoreDir returns the bytecode store directory.
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, "store")
}

// WorkspaceDir returns the root for compiler project directories.
func (c *Config) WorkspaceDir() string {
	return filepath.Join(c.DataDir, "workspace")
}

// KeysDir returns the directory for key files.
func (c *Config) KeysDir() string {
	return filepath.Join(c.DataDir, "keys")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "multisig.conf")
}

// ListenAddr returns the API host:port.
func (c *Config) ListenAddr() string {
	return joinHostPort(c.API.Addr, c.API.Port)
}
