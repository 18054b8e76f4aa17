package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/stride/internal/assistant"
	"github.com/mistakeknot/stride/internal/command"
	"github.com/mistakeknot/stride/internal/reconcile"
	"github.com/mistakeknot/stride/internal/storage"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Converse with the assistant about your tasks",
	Long: `chat runs an interactive session. Simple requests (list, complete N,
remove N) are handled locally; everything else goes to the assistant,
and every assistant-driven change is verified against the store before
the next prompt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		translator := newTranslator(cfg)
		if translator == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Assistant disabled; using the local parser. Set ANTHROPIC_API_KEY to enable it.")
		}
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), store, translator, reconcile.New(store))
	},
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, store storage.Store, translator assistant.Translator, rec *reconcile.Reconciler) error {
	runner := command.NewRunner(store)
	rec.Notify = func(msg string) { fmt.Fprintln(out, msg) }

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if l := strings.ToLower(text); l == "exit" || l == "quit" {
			return nil
		}

		if handleLocalIntent(ctx, out, store, text) {
			continue
		}

		if translator == nil {
			title, desc := assistant.ParseNatural(text)
			task, err := store.Add(ctx, title, desc)
			if err != nil {
				fmt.Fprintf(out, "add failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Added task %d: %s\n", task.ID, task.Title)
			continue
		}

		if err := runAssistantTurn(ctx, out, store, runner, rec, translator, text); err != nil {
			fmt.Fprintf(out, "assistant error: %v\n", err)
		}
	}
}

// runAssistantTurn sends one request through the translator, executes the
// resulting batch and reconciles the outcome against the store.
func runAssistantTurn(ctx context.Context, out io.Writer, store storage.Store, runner *command.Runner, rec *reconcile.Reconciler, translator assistant.Translator, text string) error {
	tasks, err := store.List(ctx)
	if err != nil {
		return err
	}
	deleted, err := store.ListDeleted(ctx, 5)
	if err != nil {
		return err
	}

	turn, err := rec.Begin(ctx, text)
	if err != nil {
		return err
	}
	ids := make([]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	turn.SetBelief(ids)

	reply, err := translator.Translate(ctx, assistant.Request{Text: text, Tasks: tasks, Deleted: deleted})
	if err != nil {
		if errors.Is(err, assistant.ErrBadReply) {
			fmt.Fprintln(out, "Sorry, I couldn't make sense of that reply. Nothing was changed.")
			return nil
		}
		return err
	}

	results := runner.ExecuteAll(ctx, reply.Actions)
	turn.Record(results, reply.Message)

	if reply.Message != "" {
		fmt.Fprintln(out, reply.Message)
	}
	if summary := command.Summarize(results); summary != "" {
		fmt.Fprintf(out, "(%s)\n", summary)
	}

	if len(reply.Actions) == 0 {
		return nil
	}
	return rec.Run(ctx, turn)
}

// handleLocalIntent serves the handful of requests that never need the
// translator. Returns true when the text was handled.
func handleLocalIntent(ctx context.Context, out io.Writer, store storage.Store, text string) bool {
	txt := strings.ToLower(strings.TrimSpace(text))

	isListIntent := txt == "list" || txt == "show tasks" || txt == "show my tasks" ||
		txt == "what are my tasks" || (strings.HasPrefix(txt, "show") && strings.Contains(txt, "task"))
	if isListIntent {
		tasks, err := store.List(ctx)
		if err != nil {
			fmt.Fprintf(out, "list failed: %v\n", err)
			return true
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks.")
			return true
		}
		renderTasks(out, tasks, true)
		return true
	}

	if rest, ok := cutPrefixAny(txt, "complete ", "done "); ok && rest != "" {
		id, err := strconv.Atoi(strings.Fields(rest)[0])
		if err != nil {
			fmt.Fprintln(out, "I couldn't parse the id to complete.")
			return true
		}
		done, err := store.Complete(ctx, id)
		if err != nil {
			fmt.Fprintf(out, "complete failed: %v\n", err)
			return true
		}
		if done {
			fmt.Fprintf(out, "Task %d marked complete.\n", id)
		} else {
			fmt.Fprintf(out, "Task %d not found.\n", id)
		}
		return true
	}

	if rest, ok := cutPrefixAny(txt, "remove ", "delete "); ok && rest != "" {
		fields := strings.Fields(rest)
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			// "remove all milk tasks" and friends go to the translator.
			return false
		}
		removed, err := store.Delete(ctx, id)
		if err != nil {
			fmt.Fprintf(out, "remove failed: %v\n", err)
			return true
		}
		if removed {
			fmt.Fprintf(out, "Task %d removed.\n", id)
		} else {
			fmt.Fprintf(out, "Task %d not found.\n", id)
		}
		return true
	}

	return false
}

func cutPrefixAny(s string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}
