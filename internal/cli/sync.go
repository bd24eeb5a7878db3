package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending notes to the remote store",
	Long: `Pushes every locally modified note and its card content to the
configured remote store. A note stays pending until the remote
acknowledges it, so interrupted syncs are safe to re-run.

Requires [remote] endpoint in the config.

Examples:
  rcl sync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Remote.Endpoint == "" {
			return fmt.Errorf("no remote endpoint configured; set [remote] endpoint in config")
		}

		sess, err := openSession(true)
		if err != nil {
			return err
		}
		defer sess.close()

		pending, err := sess.service.PendingCount()
		if err != nil {
			return err
		}
		if pending == 0 {
			fmt.Println("Nothing to sync.")
			return nil
		}

		res, err := sess.recon.SyncAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d notes", res.Synced)
		if res.Failed > 0 {
			fmt.Printf(", %d failed (still pending)", res.Failed)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
