package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/stride/internal/assistant"
	"github.com/mistakeknot/stride/internal/storage"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell (semicolon-separated commands)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return runShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), store)
	},
}

// runShell reads lines until EOF or exit/quit. Each line may hold several
// semicolon-separated commands.
func runShell(ctx context.Context, in io.Reader, out io.Writer, store storage.Store) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "stride> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if l := strings.ToLower(line); l == "exit" || l == "quit" {
			return nil
		}
		processLine(ctx, out, store, line)
	}
}

// processLine executes one or more semicolon-separated shell commands.
// Supported verbs: add, remove/delete, complete, list, search, say.
func processLine(ctx context.Context, out io.Writer, store storage.Store, line string) {
	for _, part := range strings.Split(line, ";") {
		cmd := strings.TrimSpace(part)
		if cmd == "" {
			continue
		}
		verb, rest, _ := strings.Cut(cmd, " ")
		verb = strings.ToLower(verb)
		rest = strings.TrimSpace(rest)

		switch verb {
		case "add":
			title, desc := rest, ""
			if before, after, ok := strings.Cut(rest, ","); ok {
				title, desc = strings.TrimSpace(before), strings.TrimSpace(after)
			}
			task, err := store.Add(ctx, title, desc)
			if err != nil {
				fmt.Fprintf(out, "add failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Added task %d: %s\n", task.ID, task.Title)

		case "remove", "delete":
			id, err := leadingID(rest)
			if err != nil {
				fmt.Fprintf(out, "Invalid id for remove: '%s'\n", rest)
				continue
			}
			ok, err := store.Delete(ctx, id)
			if err != nil {
				fmt.Fprintf(out, "remove failed: %v\n", err)
				continue
			}
			if ok {
				fmt.Fprintf(out, "Removed task %d.\n", id)
			} else {
				fmt.Fprintf(out, "Task %d not found.\n", id)
			}

		case "complete":
			id, err := leadingID(rest)
			if err != nil {
				fmt.Fprintf(out, "Invalid id for complete: '%s'\n", rest)
				continue
			}
			ok, err := store.Complete(ctx, id)
			if err != nil {
				fmt.Fprintf(out, "complete failed: %v\n", err)
				continue
			}
			if ok {
				fmt.Fprintf(out, "Task %d marked complete.\n", id)
			} else {
				fmt.Fprintf(out, "Task %d not found.\n", id)
			}

		case "list":
			tasks, err := store.List(ctx)
			if err != nil {
				fmt.Fprintf(out, "list failed: %v\n", err)
				continue
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks.")
				continue
			}
			renderTasks(out, tasks, true)

		case "search":
			tasks, err := store.Search(ctx, rest)
			if err != nil {
				fmt.Fprintf(out, "search failed: %v\n", err)
				continue
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No matches.")
				continue
			}
			renderTasks(out, tasks, false)

		case "say":
			title, desc := assistant.ParseNatural(rest)
			task, err := store.Add(ctx, title, desc)
			if err != nil {
				fmt.Fprintf(out, "say failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Added task %d: %s\n", task.ID, task.Title)

		default:
			fmt.Fprintf(out, "Unknown command: %s\n", verb)
		}
	}
}

func leadingID(s string) (int, error) {
	first, _, _ := strings.Cut(s, " ")
	return strconv.Atoi(first)
}
