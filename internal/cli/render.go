package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/mistakeknot/stride/internal/core"
)

var (
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	pendingStyle   = lipgloss.NewStyle().Faint(true)
)

// colorEnabled gates styling on a real terminal and the NO_COLOR
// convention.
func colorEnabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == ""
}

// renderTasks prints the task list, one line per task.
func renderTasks(w io.Writer, tasks []core.Task, withDesc bool) {
	color := colorEnabled()
	for _, t := range tasks {
		status := " "
		if t.Completed {
			status = "✓"
		}
		if color {
			if t.Completed {
				status = completedStyle.Render(status)
			} else {
				status = pendingStyle.Render(status)
			}
		}
		desc := ""
		if withDesc && t.Description != "" {
			desc = " - " + t.Description
		}
		fmt.Fprintf(w, "[%s] %d: %s%s\n", status, t.ID, t.Title, desc)
	}
}

// renderDeleted prints the deletion archive, newest first.
func renderDeleted(w io.Writer, deleted []core.DeletedTask) {
	for _, d := range deleted {
		status := " "
		if d.Completed {
			status = "✓"
		}
		fmt.Fprintf(w, "#%d [%s] %s (was task %d, deleted %s)\n",
			d.ArchiveID, status, d.Title, d.OriginalID, d.DeletedAt.Format("2006-01-02 15:04"))
	}
}
