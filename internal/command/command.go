// Package command translates structured actions into task store calls.
// It is the single entry point for externally-sourced mutations (the NL
// translator, the interactive shell) so that malformed input degrades to
// a no-op instead of an error.
package command

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/mistakeknot/stride/internal/core"
	"github.com/mistakeknot/stride/internal/storage"
)

// Runner executes actions against a store.
type Runner struct {
	store storage.Store
}

func NewRunner(store storage.Store) *Runner {
	return &Runner{store: store}
}

// Execute runs one action and returns a short description of the effect,
// e.g. "deleted: task #7". Unknown actions, missing required fields and
// not-found ids all yield an empty string; only storage I/O surfaces as an
// error.
func (r *Runner) Execute(ctx context.Context, action core.Action) (string, error) {
	switch action.Type {
	case core.ActionAdd:
		if action.Title == "" {
			return "", nil
		}
		title := FormatTitle(action.Title)
		desc := ""
		if action.Description != nil {
			desc = *action.Description
		}
		if action.TaskID > 0 {
			// The translator may pin a task to a position.
			if _, err := r.store.InsertAt(ctx, action.TaskID, title, desc); err != nil {
				return "", err
			}
			return fmt.Sprintf("added: '%s' at position %d", title, action.TaskID), nil
		}
		if _, err := r.store.Add(ctx, title, desc); err != nil {
			return "", err
		}
		return fmt.Sprintf("added: '%s'", title), nil

	case core.ActionComplete:
		if action.TaskID == 0 {
			return "", nil
		}
		ok, err := r.store.Complete(ctx, action.TaskID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return fmt.Sprintf("completed: task #%d", action.TaskID), nil

	case core.ActionUncomplete:
		if action.TaskID == 0 {
			return "", nil
		}
		ok, err := r.store.Uncomplete(ctx, action.TaskID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return fmt.Sprintf("uncompleted: task #%d", action.TaskID), nil

	case core.ActionDelete:
		if action.TaskID == 0 {
			return "", nil
		}
		ok, err := r.store.Delete(ctx, action.TaskID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return fmt.Sprintf("deleted: task #%d", action.TaskID), nil

	case core.ActionEdit:
		if action.TaskID == 0 {
			return "", nil
		}
		var title *string
		if action.NewTitle != "" {
			formatted := FormatTitle(action.NewTitle)
			title = &formatted
		}
		if title == nil && action.Description == nil {
			return "", nil
		}
		ok, err := r.store.Edit(ctx, action.TaskID, title, action.Description)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return fmt.Sprintf("edited: task #%d", action.TaskID), nil

	case core.ActionSearch:
		if action.Query == "" {
			return "", nil
		}
		if _, err := r.store.Search(ctx, action.Query); err != nil {
			return "", err
		}
		return fmt.Sprintf("searched: '%s'", action.Query), nil

	case core.ActionList:
		// The translator includes the listing in its own message.
		return "", nil

	case core.ActionListDeleted:
		deleted, err := r.store.ListDeleted(ctx, 20)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("listed: %d deleted tasks", len(deleted)), nil

	case core.ActionRestore:
		if action.ArchiveID == 0 {
			return "", nil
		}
		ok, err := r.store.Restore(ctx, action.ArchiveID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return fmt.Sprintf("restored: deleted task #%d", action.ArchiveID), nil
	}
	return "", nil
}

// ExecuteAll runs a batch in order. A failed or unrecognized action never
// aborts the rest of the batch; storage errors are logged and skipped.
func (r *Runner) ExecuteAll(ctx context.Context, actions []core.Action) []string {
	var results []string
	for _, action := range actions {
		result, err := r.Execute(ctx, action)
		if err != nil {
			log.Printf("command: action %q failed: %v", action.Type, err)
			continue
		}
		if result != "" {
			results = append(results, result)
		}
	}
	return results
}

// CountByVerb groups effect strings by their leading verb ("added",
// "deleted", ...).
func CountByVerb(results []string) map[string]int {
	counts := make(map[string]int)
	for _, result := range results {
		verb, _, ok := strings.Cut(result, ":")
		if !ok {
			continue
		}
		counts[verb]++
	}
	return counts
}

// Summarize renders an aggregate like "2 tasks added, 1 task deleted" for
// the batch. Empty when nothing was done.
func Summarize(results []string) string {
	counts := CountByVerb(results)
	if len(counts) == 0 {
		return ""
	}
	// Fixed order keeps the summary stable across runs.
	order := []string{"added", "completed", "uncompleted", "edited", "deleted", "restored", "searched", "listed"}
	var parts []string
	for _, verb := range order {
		n, ok := counts[verb]
		if !ok {
			continue
		}
		switch verb {
		case "searched", "listed":
			parts = append(parts, fmt.Sprintf("%d %s", n, verb))
		default:
			plural := "s"
			if n == 1 {
				plural = ""
			}
			parts = append(parts, fmt.Sprintf("%d task%s %s", n, plural, verb))
		}
	}
	return strings.Join(parts, ", ")
}

// FormatTitle title-cases each word, matching how assistant-added tasks
// are displayed.
func FormatTitle(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
