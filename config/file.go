package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key. Unknown keys are ignored.
func setConfigValue(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "datadir":
		cfg.DataDir = value

	// API
	case "api.addr":
		cfg.API.Addr = value
	case "api.port":
		cfg.API.Port, err = strconv.Atoi(value)
	case "api.allowed":
		cfg.API.AllowedIPs = parseStringList(value)
	case "api.cors":
		cfg.API.CORSOrigins = parseStringList(value)

	// Node
	case "node.url":
		cfg.Node.URL = value
	case "node.timeout":
		cfg.Node.Timeout, err = time.ParseDuration(value)

	// Compiler
	case "compiler.binary":
		cfg.Compiler.Binary = value
	case "compiler.workers":
		cfg.Compiler.Workers, err = strconv.Atoi(value)
	case "compiler.timeout":
		cfg.Compiler.Timeout, err = time.ParseDuration(value)
	case "compiler.template":
		cfg.Compiler.Template = value
	case "compiler.keep_workspace":
		cfg.Compiler.KeepWorkspace = parseBool(value)
	case "compiler.workspace_ttl":
		cfg.Compiler.WorkspaceTTL, err = time.ParseDuration(value)

	// Store
	case "store.backend":
		cfg.Store.Backend = strings.ToLower(value)

	// Spend
	case "spend.dedup_ttl":
		cfg.Spend.DedupTTL, err = time.ParseDuration(value)

	// Submitter
	case "submitter.keyfile":
		cfg.Submitter.KeyFile = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	}
	return err
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string) error {
	content := `# Multisig Wallet Service Configuration

# Data directory (default: ~/.multisig)
# datadir = ~/.multisig

# ============================================================================
# REST API
# ============================================================================

api.addr = 127.0.0.1
api.port = 8580
api.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# api.cors = http://localhost:3000

# ============================================================================
# Ledger Node
# ============================================================================

node.url = http://127.0.0.1:4000
# Deadline for one spend submission. A spend that hits it has an unknown
# outcome and must be replayed with the same idempotency key.
node.timeout = 30s

# ============================================================================
# Compiler
# ============================================================================

compiler.binary = forc
compiler.workers = 2
compiler.timeout = 2m
# Custom authorization script template (default: built-in)
# compiler.template = /path/to/main.sw.tmpl
# Keep generated projects on disk for inspection
# compiler.keep_workspace = false
# compiler.workspace_ttl = 24h

# ============================================================================
# Store
# ============================================================================

# Backend: badger, bolt, sqlite or memory
store.backend = badger

# ============================================================================
# Spends
# ============================================================================

# How long spend outcomes are remembered for idempotent replay
spend.dedup_ttl = 10m

# Optional submitter key. Passphrase is read from ` + SubmitterPassphraseEnv + `.
# submitter.keyfile = ~/.multisig/keys/submitter.json

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
