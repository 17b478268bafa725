package cmd

import (
	"context"
	"fmt"
	"os"

	"taura/pkg/auth"
	"taura/pkg/config"
	"taura/pkg/oauth"
	"taura/pkg/session"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "taura",
	Short: "Taura companion for local media indexing",
	Long: `taura keeps your local photo and document library in sync with the
Taura search backend.

Sign in once:
  taura login

Then scan and sync:
  taura sync`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// newOrchestrator wires the provider, session store and orchestrator from
// config. Commands that only read the session pass the same wiring.
func newOrchestrator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Orchestrator, error) {
	providerCfg := oauth.Config{
		IssuerURL:    cfg.IssuerURL,
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
	}

	var provider *oauth.Provider
	if cfg.IssuerURL != "" {
		p, err := oauth.NewProvider(ctx, providerCfg)
		if err != nil {
			return nil, err
		}
		provider = p
	} else {
		provider = oauth.NewGoogleProvider(providerCfg)
	}

	sessionPath := cfg.SessionFile
	if sessionPath == "" {
		sessionPath = session.DefaultPath()
	}

	return auth.New(auth.Options{
		Provider:        provider,
		Store:           session.NewStore(sessionPath, log),
		Logger:          log,
		RedirectTimeout: cfg.RedirectTimeoutDuration(),
	}), nil
}

func clientConfig(cfg *config.Config) (auth.ClientConfig, error) {
	if cfg.Google.ClientID == "" {
		return auth.ClientConfig{}, fmt.Errorf("no client_id configured (set google.client_id in %s or TAURA_GOOGLE_CLIENT_ID)", config.DefaultPath())
	}
	return auth.ClientConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
	}, nil
}
