package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
)

// ServerConfig describes how to launch one named MCP server.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Dir     string            `json:"dir,omitempty"`
}

// Config is the on-disk configuration, using the conventional "mcpServers"
// shape:
//
//	{
//	  "mcpServers": {
//	    "github": {"command": "npx", "args": ["-y", "@modelcontextprotocol/server-github"]}
//	  }
//	}
type Config struct {
	Servers map[string]ServerConfig `json:"mcpServers"`
}

// LoadConfig reads and decodes a configuration file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("registry: read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("registry: decode config %s: %w", path, err)
	}
	for name, sc := range cfg.Servers {
		if sc.Command == "" {
			return Config{}, fmt.Errorf("registry: server %q: missing command", name)
		}
	}
	return cfg, nil
}

// EnvConfig carries environment-derived defaults for registries.
type EnvConfig struct {
	// CacheTTL bounds how long capability listings are served from cache.
	// ENV: MCPCLIENT_CACHE_TTL
	CacheTTL time.Duration `env:"MCPCLIENT_CACHE_TTL,default=5m"`
	// ConnectTimeout bounds each server's initialize handshake.
	// ENV: MCPCLIENT_CONNECT_TIMEOUT
	ConnectTimeout time.Duration `env:"MCPCLIENT_CONNECT_TIMEOUT,default=30s"`
}

// EnvDefaults loads EnvConfig from the environment; unset variables fall
// back to the struct tag defaults.
func EnvDefaults() EnvConfig {
	var cfg EnvConfig
	_ = envdecode.Decode(&cfg)
	return cfg
}
