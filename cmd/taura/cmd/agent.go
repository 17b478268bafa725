package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"taura/pkg/server"

	"github.com/spf13/cobra"
)

var agentInterval time.Duration

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the background sync agent",
	Long: `Run the background sync agent: scans the configured roots on an
interval and serves local status and metrics endpoints.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().DurationVar(&agentInterval, "interval", 30*time.Minute, "how often to scan and sync")
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.ServerURL == "" {
		return fmt.Errorf("no server_url configured")
	}
	if len(cfg.Scan.Roots) == 0 {
		return fmt.Errorf("no scan roots configured")
	}
	log := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator, err := newOrchestrator(ctx, cfg, log)
	if err != nil {
		return err
	}
	if sess, err := orchestrator.Session(); err != nil {
		return err
	} else if sess == nil {
		return fmt.Errorf("not signed in, run 'taura login' first")
	}

	srv := server.New(cfg.AgentListenAddr, orchestrator, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	ticker := time.NewTicker(agentInterval)
	defer ticker.Stop()

	runOnce := func() {
		n, err := syncRoots(ctx, cfg, orchestrator, log, cfg.Scan.Roots)
		if err != nil {
			log.Error().Err(err).Msg("sync pass failed")
			return
		}
		log.Info().Int("upserted", n).Msg("sync pass complete")
	}

	runOnce()
	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-ctx.Done():
			return <-serverErr
		}
	}
}
