package config

import "time"

// Default returns the default service configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		API: APIConfig{
			Addr:       "127.0.0.1",
			Port:       8580,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Node: NodeConfig{
			URL:     "http://127.0.0.1:4000",
			Timeout: 30 * time.Second,
		},
		Compiler: CompilerConfig{
			Binary:       "forc",
			Workers:      2,
			Timeout:      2 * time.Minute,
			WorkspaceTTL: 24 * time.Hour,
		},
		Store: StoreConfig{
			Backend: BackendBadger,
		},
		Spend: SpendConfig{
			DedupTTL: 10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
