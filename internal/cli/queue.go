package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvannier/recall/internal/model"
)

var queueListAll bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the review queue",
	Long: `Partitions all cards into New, Today, Overdue and Future and prints
the counts. With --all, every due item is listed.

Examples:
  rcl queue
  rcl queue --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(false)
		if err != nil {
			return err
		}
		defer sess.close()

		q, err := sess.service.BuildQueue(time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("New: %d  Today: %d  Overdue: %d  Future: %d\n",
			len(q.New), len(q.Today), len(q.Overdue), len(q.Future))

		if queueListAll {
			printItems("Overdue", q.Overdue)
			printItems("Today", q.Today)
			printItems("New", q.New)
		}
		return nil
	},
}

func printItems(label string, items []model.QueueItem) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", label)
	for _, it := range items {
		fmt.Printf("  %s#%d  %s\n", it.NoteID, it.ClozeIndex, it.FilePath)
	}
}

func init() {
	queueCmd.Flags().BoolVar(&queueListAll, "all", false, "list every due item")
	rootCmd.AddCommand(queueCmd)
}
