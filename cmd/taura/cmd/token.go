package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Credential is the machine-readable output of 'taura token', for scripts and
// other local tools that call the backend directly.
type Credential struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Email       string     `json:"email,omitempty"`
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a fresh access token as JSON",
	Long: `Print a fresh access token as JSON, refreshing it first if it is
within a minute of expiry. Intended for scripts; do not paste tokens into
logs or terminals you share.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orchestrator, err := newOrchestrator(cmd.Context(), cfg, newLogger())
	if err != nil {
		return err
	}

	sess, err := orchestrator.EnsureFresh(cmd.Context())
	if err != nil {
		return err
	}

	cred := Credential{
		AccessToken: sess.AccessToken,
		Email:       sess.Email,
	}
	if sess.ExpiresAt != nil {
		at := time.Unix(*sess.ExpiresAt, 0)
		cred.ExpiresAt = &at
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cred)
}
