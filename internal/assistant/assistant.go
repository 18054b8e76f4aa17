// Package assistant turns free-form user text into structured task
// actions. The Claude-backed translator is optional; without an API key
// callers fall back to the local heuristic parser.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mistakeknot/stride/internal/core"
)

// ErrUnavailable means no translator is configured (missing API key).
var ErrUnavailable = errors.New("assistant not available")

// ErrBadReply means the translator produced something that looked like an
// action payload but could not be recovered into one.
var ErrBadReply = errors.New("could not parse assistant reply")

// Request carries the user's text plus the task list context the
// translator bases its ids on.
type Request struct {
	Text    string
	Tasks   []core.Task
	Deleted []core.DeletedTask
}

// Reply is the translator's output: zero or more actions and the
// human-readable message shown to the user.
type Reply struct {
	Actions []core.Action
	Message string
}

// Translator converts free text into an ordered action batch. It is an
// opaque collaborator: text in, structured actions + message out.
type Translator interface {
	Translate(ctx context.Context, req Request) (Reply, error)
}

// ContextSummary renders the task list the way the translator sees it.
// The reconciler later compares the ids in this summary (the translator's
// belief) against the store.
func ContextSummary(tasks []core.Task, deleted []core.DeletedTask) string {
	var b strings.Builder
	if len(tasks) == 0 {
		b.WriteString("No tasks yet.\n")
	} else {
		// Newest first, matching the list view the user sees.
		for i := len(tasks) - 1; i >= 0; i-- {
			t := tasks[i]
			status := "[ ]"
			if t.Completed {
				status = "[x]"
			}
			desc := ""
			if t.Description != "" {
				desc = " - " + truncate(t.Description, 50)
			}
			fmt.Fprintf(&b, "Task %d: %s %s%s\n", t.ID, status, t.Title, desc)
		}
	}
	if len(deleted) > 0 {
		b.WriteString("\nRecently deleted tasks (can be restored):\n")
		for _, d := range deleted {
			status := "[ ]"
			if d.Completed {
				status = "[x]"
			}
			fmt.Fprintf(&b, "Deleted task #%d: %s %s (deleted: %s)\n",
				d.ArchiveID, status, d.Title, d.DeletedAt.Format(time.DateTime))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
