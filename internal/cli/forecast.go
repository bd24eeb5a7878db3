package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var forecastDays int

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Show upcoming review load",
	Long: `Prints how many cards come due on each of the coming days. Overdue
cards count toward today; unreviewed cards are excluded.

Examples:
  rcl forecast
  rcl forecast --days 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(false)
		if err != nil {
			return err
		}
		defer sess.close()

		buckets, err := sess.service.Forecast(forecastDays, time.Now())
		if err != nil {
			return err
		}

		max := 0
		for _, b := range buckets {
			if b.Count > max {
				max = b.Count
			}
		}
		for _, b := range buckets {
			bar := ""
			if max > 0 {
				bar = strings.Repeat("#", b.Count*40/max)
			}
			fmt.Printf("%s  %4d  %s\n", b.Date.Format("2006-01-02"), b.Count, bar)
		}
		return nil
	},
}

func init() {
	forecastCmd.Flags().IntVar(&forecastDays, "days", 7, "days to forecast")
	rootCmd.AddCommand(forecastCmd)
}
