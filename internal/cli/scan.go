package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the vault and update cards",
	Long: `Walks every markdown file in the vault, extracts cloze cards and
reconciles them with the stored ones. Existing cards keep their
scheduling state; new cloze ids become fresh cards.

Examples:
  rcl scan`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(false)
		if err != nil {
			return err
		}
		defer sess.close()

		res, err := sess.service.ScanVault(time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d notes: %d cards (%d unreviewed)\n", res.Notes, res.Cards, res.NewCards)
		if res.Unclosed > 0 || res.Malformed > 0 {
			fmt.Printf("Warnings: %d unclosed, %d malformed cloze spans (see 'rcl check')\n",
				res.Unclosed, res.Malformed)
		}
		for _, e := range res.Errors {
			fmt.Printf("error: %v\n", e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
