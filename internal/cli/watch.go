package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvannier/recall/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the vault and update cards on edit",
	Long: `Runs a full scan, then watches the vault and applies every external
edit as it happens. With a remote configured, changed notes push in
the background. Stops on ctrl-c.

Examples:
  rcl watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(true)
		if err != nil {
			return err
		}
		defer sess.close()

		res, err := sess.service.ScanVault(time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Scanned %d notes (%d cards). Watching for changes...\n", res.Notes, res.Cards)

		w, err := watcher.New(watcher.Config{
			VaultPath: getVaultPath(),
			Handler:   sess.service,
		})
		if err != nil {
			return err
		}
		return w.Start(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
