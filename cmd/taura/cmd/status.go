package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		orchestrator, err := newOrchestrator(cmd.Context(), cfg, newLogger())
		if err != nil {
			return err
		}

		sess, err := orchestrator.Session()
		if err != nil {
			return err
		}
		if sess == nil {
			fmt.Println("Not signed in. Run 'taura login' first.")
			return nil
		}

		fmt.Printf("Signed in as: %s\n", sess.Email)
		if sess.Name != "" {
			fmt.Printf("Name:         %s\n", sess.Name)
		}
		if sess.ExpiresAt != nil {
			remaining := time.Until(time.Unix(*sess.ExpiresAt, 0)).Round(time.Second)
			if remaining > 0 {
				fmt.Printf("Token:        valid for %s\n", remaining)
			} else {
				fmt.Printf("Token:        expired %s ago\n", -remaining)
			}
		}
		if sess.RefreshToken != "" {
			fmt.Println("Refresh:      available")
		} else {
			fmt.Println("Refresh:      not available (re-login required on expiry)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
