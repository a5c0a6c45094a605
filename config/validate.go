package config

import (
	"fmt"
	"net"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.DataDir == "" && cfg.Store.Backend != BackendMemory {
		return fmt.Errorf("datadir is required")
	}
	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be in range [0, 65535]")
	}
	for i, entry := range cfg.API.AllowedIPs {
		if _, _, err := net.ParseCIDR(entry); err == nil {
			continue
		}
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("api.allowed[%d] %q is not an IP or CIDR", i, entry)
		}
	}

	u, err := url.Parse(cfg.Node.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("node.url must be an http(s) URL, got %q", cfg.Node.URL)
	}
	if cfg.Node.Timeout <= 0 {
		return fmt.Errorf("node.timeout must be positive")
	}

	if cfg.Compiler.Binary == "" {
		return fmt.Errorf("compiler.binary is required")
	}
	if cfg.Compiler.Workers < 1 {
		return fmt.Errorf("compiler.workers must be at least 1")
	}
	if cfg.Compiler.Timeout <= 0 {
		return fmt.Errorf("compiler.timeout must be positive")
	}
	if cfg.Compiler.WorkspaceTTL < 0 {
		return fmt.Errorf("compiler.workspace_ttl must not be negative")
	}

	switch cfg.Store.Backend {
	case BackendBadger, BackendBolt, BackendSQLite, BackendMemory:
	case "":
		cfg.Store.Backend = BackendBadger
	default:
		return fmt.Errorf("store.backend must be %s, %s, %s or %s",
			BackendBadger, BackendBolt, BackendSQLite, BackendMemory)
	}

	if cfg.Spend.DedupTTL <= 0 {
		return fmt.Errorf("spend.dedup_ttl must be positive")
	}
	return nil
}
