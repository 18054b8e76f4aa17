package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var addDescription string

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		task, err := store.Add(cmd.Context(), strings.Join(args, " "), addDescription)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added task %d: %s\n", task.ID, task.Title)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		tasks, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
			return nil
		}
		renderTasks(cmd.OutOrStdout(), tasks, true)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search tasks by keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		tasks, err := store.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
			return nil
		}
		renderTasks(cmd.OutOrStdout(), tasks, false)
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a task complete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		ok, err := store.Complete(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d not found.\n", id)
			return errSilent
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %d marked complete.\n", id)
		return nil
	},
}

var uncompleteCmd = &cobra.Command{
	Use:   "uncomplete <id>",
	Short: "Mark a task pending again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		ok, err := store.Uncomplete(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d not found.\n", id)
			return errSilent
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %d marked pending.\n", id)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"remove"},
	Short:   "Delete a task (archived, restorable)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		ok, err := store.Delete(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d not found.\n", id)
			return errSilent
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed task %d.\n", id)
		return nil
	},
}

var (
	editTitle string
	editDesc  string
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a task's title or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		var title, desc *string
		if cmd.Flags().Changed("title") {
			title = &editTitle
		}
		if cmd.Flags().Changed("description") {
			desc = &editDesc
		}
		if title == nil && desc == nil {
			return fmt.Errorf("nothing to edit: pass --title or --description")
		}
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		ok, err := store.Edit(cmd.Context(), id, title, desc)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d not found.\n", id)
			return errSilent
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d.\n", id)
		return nil
	},
}

var deletedLimit int

var deletedCmd = &cobra.Command{
	Use:   "deleted",
	Short: "Show recently deleted tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		deleted, err := store.ListDeleted(cmd.Context(), deletedLimit)
		if err != nil {
			return err
		}
		if len(deleted) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No deleted tasks.")
			return nil
		}
		renderDeleted(cmd.OutOrStdout(), deleted)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive-id>",
	Short: "Restore a deleted task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid archive id %q", args[0])
		}
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		ok, err := store.Restore(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d not found.\n", id)
			return errSilent
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored deleted task %d.\n", id)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addDescription, "description", "", "task description")
	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVar(&editDesc, "description", "", "new description")
	deletedCmd.Flags().IntVar(&deletedLimit, "limit", 10, "how many archive entries to show")
}
