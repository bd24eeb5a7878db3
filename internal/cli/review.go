package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvannier/recall/internal/model"
)

var reviewLimit int

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review due cards",
	Long: `Goes through overdue and today's cards one by one. For each card the
answer is hidden until you press enter, then a rating is read:

  1  again
  2  hard
  3  good
  4  easy
  q  stop

Each rating is stored immediately; quitting mid-session loses nothing.

Examples:
  rcl review
  rcl review --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(true)
		if err != nil {
			return err
		}
		defer sess.close()

		now := time.Now()
		q, err := sess.service.BuildQueue(now)
		if err != nil {
			return err
		}

		items := append(append([]model.QueueItem{}, q.Overdue...), q.Today...)
		items = append(items, q.New...)
		if len(items) == 0 {
			fmt.Println("Nothing due.")
			return nil
		}
		if reviewLimit > 0 && len(items) > reviewLimit {
			items = items[:reviewLimit]
		}

		reader := bufio.NewReader(os.Stdin)
		reviewed := 0
		for i, it := range items {
			key := model.CardKey{NoteID: it.NoteID, ClozeIndex: it.ClozeIndex}
			card, err := sess.store.Card(key)
			if err != nil {
				return err
			}

			fmt.Printf("\n[%d/%d] %s#%d", i+1, len(items), it.NoteID, it.ClozeIndex)
			if card.SectionPath != "" {
				fmt.Printf("  (%s)", card.SectionPath)
			}
			fmt.Print("\nShow answer? [enter] ")
			if _, err := reader.ReadString('\n'); err != nil {
				break
			}
			fmt.Printf("-> %s\n", card.AnswerText)

			rating, quit, err := readRating(reader)
			if err != nil {
				return err
			}
			if quit {
				break
			}

			updated, err := sess.service.Review(cmd.Context(), key, rating, time.Now())
			if err != nil {
				return err
			}
			reviewed++
			fmt.Printf("Next due %s\n", updated.Due.Local().Format("2006-01-02 15:04"))
			if updated.IsLeech(cfg.Scheduler.LeechThreshold) {
				fmt.Println("This card is a leech; consider rewriting the note.")
			}
		}

		fmt.Printf("\nReviewed %d cards.\n", reviewed)
		return nil
	},
}

func readRating(reader *bufio.Reader) (model.Rating, bool, error) {
	for {
		fmt.Print("Rate [1=again 2=hard 3=good 4=easy q=quit]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, true, nil
		}
		switch strings.TrimSpace(line) {
		case "1":
			return model.Again, false, nil
		case "2":
			return model.Hard, false, nil
		case "3":
			return model.Good, false, nil
		case "4":
			return model.Easy, false, nil
		case "q", "Q":
			return 0, true, nil
		}
	}
}

func init() {
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 0, "maximum cards this session")
	rootCmd.AddCommand(reviewCmd)
}
