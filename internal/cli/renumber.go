package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pvannier/recall/internal/atomicfile"
	"github.com/pvannier/recall/internal/cloze"
	"github.com/pvannier/recall/internal/paths"
)

var renumberYes bool

var renumberCmd = &cobra.Command{
	Use:   "renumber <note>",
	Short: "Renumber cloze ids densely",
	Long: `Rewrites a note so cloze ids run 1..N in order of first appearance.
Answer and hint text is untouched.

Renumbering changes card identity: a card whose id moves loses its
link to the old scheduling state. Because of that the command asks
for --yes.

Examples:
  rcl renumber geo/france --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !renumberYes {
			return fmt.Errorf("renumbering changes card identity; re-run with --yes to confirm")
		}

		vaultPath := getVaultPath()
		relPath := paths.NoteRelPath(args[0])
		full := filepath.Join(vaultPath, filepath.FromSlash(relPath))
		if err := paths.ValidateWithinVault(vaultPath, full); err != nil {
			return err
		}

		content, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read note: %w", err)
		}

		renumbered, changed := cloze.NormalizeIDs(string(content))
		if !changed {
			fmt.Println("Already densely numbered.")
			return nil
		}

		if err := atomicfile.WriteFile(full, []byte(renumbered), 0); err != nil {
			return fmt.Errorf("write note: %w", err)
		}
		fmt.Printf("Renumbered %s; run 'rcl scan' to refresh cards.\n", relPath)
		return nil
	},
}

func init() {
	renumberCmd.Flags().BoolVar(&renumberYes, "yes", false, "confirm the rewrite")
	rootCmd.AddCommand(renumberCmd)
}
