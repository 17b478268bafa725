package cmd

import (
	"context"
	"fmt"

	"taura/pkg/auth"
	"taura/pkg/config"
	"taura/pkg/scanner"
	"taura/pkg/syncclient"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const syncBatchSize = 500

var syncOnlyMissing bool

var syncCmd = &cobra.Command{
	Use:   "sync [path...]",
	Short: "Scan and upload the media index to the backend",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncOnlyMissing, "only-missing", false, "probe the backend and upload only unindexed items")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.ServerURL == "" {
		return fmt.Errorf("no server_url configured")
	}
	log := newLogger()

	orchestrator, err := newOrchestrator(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	roots := args
	if len(roots) == 0 {
		roots = cfg.Scan.Roots
	}
	if len(roots) == 0 {
		return fmt.Errorf("no scan roots given (pass paths or set scan.roots in config)")
	}

	upserted, err := syncRoots(cmd.Context(), cfg, orchestrator, log, roots)
	if err != nil {
		return err
	}
	fmt.Printf("Synced: %d items upserted\n", upserted)
	return nil
}

// syncRoots scans every root and uploads the result in batches. Shared with
// the agent loop.
func syncRoots(ctx context.Context, cfg *config.Config, orchestrator *auth.Orchestrator, log zerolog.Logger, roots []string) (int, error) {
	sess, err := orchestrator.EnsureFresh(ctx)
	if err != nil {
		return 0, err
	}
	userID := sess.Sub
	if userID == "" {
		userID = sess.Email
	}

	s := scanner.New(log,
		scanner.WithMaxDepth(cfg.Scan.MaxDepth),
		scanner.WithThrottle(cfg.Scan.FilesPerSec),
	)
	client := syncclient.New(cfg.ServerURL, orchestrator, log)

	total := 0
	for _, root := range roots {
		result, err := s.Scan(ctx, root)
		if err != nil {
			return total, fmt.Errorf("scan of %s failed: %w", root, err)
		}

		items := syncclient.ItemsFromScan(userID, result)
		if syncOnlyMissing && len(items) > 0 {
			missing, err := client.Missing(ctx, userID, items)
			if err != nil {
				return total, err
			}
			items = filterByURI(items, missing)
		}

		for start := 0; start < len(items); start += syncBatchSize {
			end := min(start+syncBatchSize, len(items))
			n, err := client.Sync(ctx, items[start:end])
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	return total, nil
}

func filterByURI(items []syncclient.Item, uris []string) []syncclient.Item {
	keep := make(map[string]struct{}, len(uris))
	for _, uri := range uris {
		keep[uri] = struct{}{}
	}
	filtered := items[:0]
	for _, it := range items {
		if _, ok := keep[it.URI]; ok {
			filtered = append(filtered, it)
		}
	}
	return filtered
}
