// Package config loads the companion configuration from a YAML file with
// environment variable overrides for the secrets-adjacent fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default scanner settings, matching the desktop app's behavior.
const (
	DefaultMaxDepth      = 8
	DefaultFilesPerSec   = 200
	defaultRedirectGrace = "3m"
)

// Google holds the registered installed-app identity.
type Google struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Scan configures the filesystem media scanner.
type Scan struct {
	Roots       []string `yaml:"roots"`
	MaxDepth    int      `yaml:"max_depth"`
	FilesPerSec float64  `yaml:"files_per_sec"`
}

// Config is the full companion configuration.
type Config struct {
	ServerURL string `yaml:"server_url"`
	IssuerURL string `yaml:"issuer_url"`
	Google    Google `yaml:"google"`
	Scan      Scan   `yaml:"scan"`

	SessionFile     string `yaml:"session_file"`
	RedirectTimeout string `yaml:"redirect_timeout"`

	// AgentListenAddr is where the local agent serves /healthz, /session and
	// /metrics. Loopback only.
	AgentListenAddr string `yaml:"agent_listen_addr"`
}

// DefaultPath returns the default config file location for the current user.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "taura", "config.yaml")
}

// Load reads the config file at path, or defaults when the file is absent,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Scan: Scan{
			MaxDepth:    DefaultMaxDepth,
			FilesPerSec: DefaultFilesPerSec,
		},
		RedirectTimeout: defaultRedirectGrace,
		AgentListenAddr: "127.0.0.1:7845",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Scan.MaxDepth <= 0 {
		cfg.Scan.MaxDepth = DefaultMaxDepth
	}
	if cfg.Scan.FilesPerSec <= 0 {
		cfg.Scan.FilesPerSec = DefaultFilesPerSec
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TAURA_GOOGLE_CLIENT_ID"); v != "" {
		cfg.Google.ClientID = v
	}
	if v := os.Getenv("TAURA_GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Google.ClientSecret = v
	}
	if v := os.Getenv("TAURA_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("TAURA_SESSION_FILE"); v != "" {
		cfg.SessionFile = v
	}
}

// RedirectTimeoutDuration parses the configured redirect timeout, falling
// back to the default when unset or invalid.
func (c *Config) RedirectTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RedirectTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultRedirectGrace)
	}
	return d
}
