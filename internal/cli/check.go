package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report cloze authoring problems",
	Long: `Walks the vault without changing anything and reports unclosed or
malformed cloze spans, gaps in cloze id numbering, and ids referenced
from suspiciously many places.

Examples:
  rcl check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(false)
		if err != nil {
			return err
		}
		defer sess.close()

		res, err := sess.service.Check()
		if err != nil {
			return err
		}

		fmt.Printf("Checked %d notes\n", res.Notes)
		clean := true
		if res.Unclosed > 0 {
			fmt.Printf("  %d unclosed cloze spans\n", res.Unclosed)
			clean = false
		}
		if res.Malformed > 0 {
			fmt.Printf("  %d malformed cloze spans\n", res.Malformed)
			clean = false
		}
		for _, id := range sortedKeys(res.MissingIDs) {
			fmt.Printf("  %s: missing cloze ids %v (run 'rcl renumber %s')\n", id, res.MissingIDs[id], id)
			clean = false
		}
		for _, id := range sortedKeys(res.Overloaded) {
			fmt.Printf("  %s: ids %v used in many places\n", id, res.Overloaded[id])
			clean = false
		}
		if clean {
			fmt.Println("No problems found.")
		}
		return nil
	},
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
