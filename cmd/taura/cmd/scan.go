package cmd

import (
	"fmt"

	"taura/pkg/scanner"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path...]",
	Short: "Scan folders for media files",
	Long: `Scan folders for media files and report what would be indexed.
With no arguments the configured scan roots are used.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	roots := args
	if len(roots) == 0 {
		roots = cfg.Scan.Roots
	}
	if len(roots) == 0 {
		return fmt.Errorf("no scan roots given (pass paths or set scan.roots in config)")
	}

	s := scanner.New(log,
		scanner.WithMaxDepth(cfg.Scan.MaxDepth),
		scanner.WithThrottle(cfg.Scan.FilesPerSec),
	)

	total := 0
	for _, root := range roots {
		result, err := s.Scan(cmd.Context(), root)
		if err != nil {
			return fmt.Errorf("scan of %s failed: %w", root, err)
		}
		total += result.Count
		fmt.Printf("%s: %d media files\n", root, result.Count)
		for _, sample := range result.Samples {
			fmt.Printf("  %s\n", sample)
		}
	}
	fmt.Printf("Total: %d\n", total)
	return nil
}
