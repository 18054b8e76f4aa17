// Package cli wires the task store, command runner, assistant and
// reconciler into the stride command tree.
package cli

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/stride/internal/assistant"
	"github.com/mistakeknot/stride/internal/config"
	"github.com/mistakeknot/stride/internal/storage"
	"github.com/mistakeknot/stride/internal/storage/sqlite"
)

var (
	dbPath  string
	rootCmd *cobra.Command
)

// errSilent marks errors whose message was already printed; Execute
// passes them through as a nonzero exit without reprinting.
var errSilent = errors.New("silent")

func init() {
	rootCmd = &cobra.Command{
		Use:   "stride",
		Short: "stride - a task manager with an assistant that checks its own work",
		Long: `stride keeps your tasks in a local SQLite database with stable,
contiguous ids. The optional assistant turns natural language into task
actions, and every assistant-driven change is verified against the store
before control returns to you.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the task database (overrides config)")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(uncompleteCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deletedCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(chatCmd)

	rootCmd.Version = version
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errSilent) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// openStore opens the configured database wrapped with lock retries and
// a circuit breaker.
func openStore() (storage.Store, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("open store: %w", err)
	}
	return sqlite.NewResilient(st), cfg, nil
}

// newTranslator builds the Claude translator when a key is configured.
// Returns nil (no error) when the assistant is unavailable or disabled;
// callers degrade to the local parser.
func newTranslator(cfg config.Config) assistant.Translator {
	if cfg.NoAI {
		return nil
	}
	claude, err := assistant.NewClaude(cfg.APIKey, cfg.Model)
	if err != nil {
		if !errors.Is(err, assistant.ErrUnavailable) {
			log.Printf("assistant init: %v", err)
		}
		return nil
	}
	return claude
}
