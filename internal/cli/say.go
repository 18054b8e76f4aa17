package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/stride/internal/assistant"
	"github.com/mistakeknot/stride/internal/command"
)

var sayCmd = &cobra.Command{
	Use:   "say <text...>",
	Short: "Add a task from natural language",
	Long: `say parses a sentence like "remind me to buy milk, 2 liters" into a
task. With an API key configured the assistant does the parsing; without
one a local heuristic parser handles the common phrasings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		text := strings.Join(args, " ")

		if translator := newTranslator(cfg); translator != nil {
			tasks, err := store.List(ctx)
			if err != nil {
				return err
			}
			reply, err := translator.Translate(ctx, assistant.Request{Text: text, Tasks: tasks})
			if err == nil && len(reply.Actions) > 0 {
				runner := command.NewRunner(store)
				runner.ExecuteAll(ctx, reply.Actions)
				if reply.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
				}
				return nil
			}
			// Translation failed or produced nothing; fall through to the
			// local parser.
		}

		title, desc := assistant.ParseNatural(text)
		task, err := store.Add(ctx, title, desc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added task %d: %s\n", task.ID, task.Title)
		return nil
	},
}
