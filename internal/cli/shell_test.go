package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mistakeknot/stride/internal/storage"
)

func TestProcessLineSemicolonBatch(t *testing.T) {
	store := storage.NewInMemory()
	var out bytes.Buffer

	processLine(context.Background(), &out, store, "add Buy milk, 2 liters; add Walk dog; complete 1")

	got := out.String()
	for _, want := range []string{
		"Added task 1: Buy milk",
		"Added task 2: Walk dog",
		"Task 1 marked complete.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}

	tasks, _ := store.List(context.Background())
	if tasks[0].Description != "2 liters" {
		t.Fatalf("expected comma description, got %q", tasks[0].Description)
	}
	if !tasks[0].Completed {
		t.Fatal("expected task 1 completed")
	}
}

func TestProcessLineRemove(t *testing.T) {
	store := storage.NewInMemory()
	var out bytes.Buffer
	ctx := context.Background()

	store.Add(ctx, "a", "")
	processLine(ctx, &out, store, "remove 1; remove 1")

	got := out.String()
	if !strings.Contains(got, "Removed task 1.") {
		t.Fatalf("missing removal confirmation:\n%s", got)
	}
	if !strings.Contains(got, "Task 1 not found.") {
		t.Fatalf("missing not-found for second removal:\n%s", got)
	}
}

func TestProcessLineInvalidID(t *testing.T) {
	store := storage.NewInMemory()
	var out bytes.Buffer

	processLine(context.Background(), &out, store, "remove banana")
	if !strings.Contains(out.String(), "Invalid id for remove: 'banana'") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestProcessLineUnknownCommand(t *testing.T) {
	store := storage.NewInMemory()
	var out bytes.Buffer

	processLine(context.Background(), &out, store, "frobnicate the widgets")
	if !strings.Contains(out.String(), "Unknown command: frobnicate") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestProcessLineSay(t *testing.T) {
	store := storage.NewInMemory()
	var out bytes.Buffer
	ctx := context.Background()

	processLine(ctx, &out, store, "say remind me to call mom")
	if !strings.Contains(out.String(), "Added task 1: Call Mom") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRunShellExits(t *testing.T) {
	store := storage.NewInMemory()
	var out bytes.Buffer
	in := strings.NewReader("add a\nlist\nexit\nadd never\n")

	if err := runShell(context.Background(), in, &out, store); err != nil {
		t.Fatalf("run shell: %v", err)
	}

	tasks, _ := store.List(context.Background())
	if len(tasks) != 1 {
		t.Fatalf("expected shell to stop at exit, got %d tasks", len(tasks))
	}
	if !strings.Contains(out.String(), "[ ] 1: a") {
		t.Fatalf("expected list output, got:\n%s", out.String())
	}
}
