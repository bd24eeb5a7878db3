// Package cli implements the command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pvannier/recall/internal/config"
)

var (
	// Global flags
	vaultName     string // Named vault from config
	vaultPathFlag string // Explicit path (rare)
	configPath    string

	// Resolved values
	resolvedVaultPath string
	cfg               *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rcl",
	Short: "Recall - flashcards from your markdown notes",
	Long: `Recall turns cloze deletions in plain markdown notes into spaced
repetition flashcards. Notes stay the source of truth; scheduling
state lives beside the vault and syncs to a remote store when one
is configured.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip vault resolution for commands that don't need it
		switch cmd.Name() {
		case "completion", "help", "version":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
			return nil
		}

		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Resolve vault path: explicit path > named vault > default
		switch {
		case vaultPathFlag != "":
			resolvedVaultPath = vaultPathFlag
		default:
			resolvedVaultPath, err = cfg.GetVaultPath(vaultName)
			if err != nil {
				return fmt.Errorf(`no vault specified

Either:
  1. Use --vault <name> (from config)
  2. Use --vault-path /path/to/vault
  3. Set default_vault in ~/.config/recall/config.toml`)
			}
		}

		if _, err := os.Stat(resolvedVaultPath); os.IsNotExist(err) {
			return fmt.Errorf("vault not found: %s", resolvedVaultPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&vaultName, "vault", "", "named vault from config")
	rootCmd.PersistentFlags().StringVar(&vaultPathFlag, "vault-path", "", "explicit vault path")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.SilenceUsage = true
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the CLI with the given context, so long-running
// commands stop on signal.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func getVaultPath() string {
	return resolvedVaultPath
}
