package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var useDeviceFlow bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with your Google account",
	Long: `Sign in with your Google account.

Your browser will open for consent; the resulting session is stored locally
so later scans and syncs run without prompting.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().BoolVar(&useDeviceFlow, "device", false, "use the device flow (for machines without a browser)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	orchestrator, err := newOrchestrator(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	client, err := clientConfig(cfg)
	if err != nil {
		return err
	}

	if useDeviceFlow {
		sess, err := orchestrator.SignInDevice(cmd.Context(), client, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", sess.Email)
		return nil
	}

	fmt.Println("Opening browser for sign-in...")
	sess, err := orchestrator.SignIn(cmd.Context(), client)
	if err != nil {
		return err
	}

	fmt.Printf("Signed in as %s\n", sess.Email)
	return nil
}
