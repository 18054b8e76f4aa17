package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/mistakeknot/stride/internal/command"
	"github.com/mistakeknot/stride/internal/core"
	"github.com/mistakeknot/stride/internal/storage"
)

func newTestReconciler(store storage.Store) *Reconciler {
	r := New(store)
	r.sleepFn = func(time.Duration) {}
	r.Notify = func(string) {}
	return r
}

func seed(t *testing.T, store storage.Store, titles ...string) {
	t.Helper()
	ctx := context.Background()
	for _, title := range titles {
		if _, err := store.Add(ctx, title, ""); err != nil {
			t.Fatalf("seed %q: %v", title, err)
		}
	}
}

func runBatch(t *testing.T, store storage.Store, actions []core.Action) []string {
	t.Helper()
	return command.NewRunner(store).ExecuteAll(context.Background(), actions)
}

func TestRunConvergesWhenRequestFulfilled(t *testing.T) {
	store := storage.NewInMemory()
	rec := newTestReconciler(store)
	ctx := context.Background()

	seed(t, store, "a", "b")
	turn, err := rec.Begin(ctx, "complete task 1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	turn.SetBelief([]int{1, 2})

	results := runBatch(t, store, []core.Action{{Type: core.ActionComplete, TaskID: 1}})
	turn.Record(results, "Done.")

	if err := rec.Run(ctx, turn); err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", turn.Attempts)
	}
}

func TestRunDeletesRemainderAfterPartialRemoveAll(t *testing.T) {
	store := storage.NewInMemory()
	rec := newTestReconciler(store)
	ctx := context.Background()

	seed(t, store, "a", "b", "c", "d", "e")
	turn, err := rec.Begin(ctx, "remove all tasks")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	turn.SetBelief([]int{1, 2, 3, 4, 5})

	// The batch only covered 4 of the 5 tasks.
	var actions []core.Action
	for i := 0; i < 4; i++ {
		actions = append(actions, core.Action{Type: core.ActionDelete, TaskID: 1})
	}
	results := runBatch(t, store, actions)
	turn.Record(results, "All tasks removed.")

	if err := rec.Run(ctx, turn); err != nil {
		t.Fatalf("run: %v", err)
	}

	tasks, _ := store.List(ctx)
	if len(tasks) != 0 {
		t.Fatalf("expected empty store, got %d tasks", len(tasks))
	}
	if len(turn.BelievedIDs) != 0 {
		t.Fatalf("expected belief resynced to empty, got %v", turn.BelievedIDs)
	}
}

func TestRunTopsUpRemoveAny(t *testing.T) {
	store := storage.NewInMemory()
	rec := newTestReconciler(store)
	ctx := context.Background()

	seed(t, store, "a", "b", "c", "d", "e")
	turn, err := rec.Begin(ctx, "remove any 2")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	turn.SetBelief([]int{1, 2, 3, 4, 5})

	results := runBatch(t, store, []core.Action{{Type: core.ActionDelete, TaskID: 1}})
	turn.Record(results, "Removed two tasks.")

	if err := rec.Run(ctx, turn); err != nil {
		t.Fatalf("run: %v", err)
	}

	tasks, _ := store.List(ctx)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks left, got %d", len(tasks))
	}
}

func TestRunRestoresPendingAfterOverzealousRemoveAllCompleted(t *testing.T) {
	store := storage.NewInMemory()
	rec := newTestReconciler(store)
	ctx := context.Background()

	seed(t, store, "a", "b", "c", "d")
	store.Complete(ctx, 1)
	store.Complete(ctx, 2)

	turn, err := rec.Begin(ctx, "remove all completed tasks")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	turn.SetBelief([]int{1, 2, 3, 4})

	// The batch deleted both completed tasks and also pending "c".
	var actions []core.Action
	for i := 0; i < 3; i++ {
		actions = append(actions, core.Action{Type: core.ActionDelete, TaskID: 1})
	}
	results := runBatch(t, store, actions)
	turn.Record(results, "Completed tasks removed.")

	if err := rec.Run(ctx, turn); err != nil {
		t.Fatalf("run: %v", err)
	}

	tasks, _ := store.List(ctx)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 pending tasks, got %+v", tasks)
	}
	for _, task := range tasks {
		if task.Completed {
			t.Fatalf("expected only pending tasks, got %+v", task)
		}
	}
	titles := map[string]bool{tasks[0].Title: true, tasks[1].Title: true}
	if !titles["c"] || !titles["d"] {
		t.Fatalf("expected c and d to survive, got %+v", tasks)
	}
}

func TestRunResolvesClaimedAddShortfall(t *testing.T) {
	store := storage.NewInMemory()
	rec := newTestReconciler(store)
	ctx := context.Background()

	turn, err := rec.Begin(ctx, "add 3 tasks")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	results := runBatch(t, store, []core.Action{
		{Type: core.ActionAdd, Title: "one"},
		{Type: core.ActionAdd, Title: "two"},
	})
	turn.Record(results, "Added 3 tasks for you.")
	if turn.Mismatch == nil {
		t.Fatal("expected a detected mismatch")
	}

	if err := rec.Run(ctx, turn); err != nil {
		t.Fatalf("run: %v", err)
	}

	tasks, _ := store.List(ctx)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[2].Title != "Corrective Task 1" {
		t.Fatalf("expected corrective task at tail, got %+v", tasks[2])
	}
	if turn.Mismatch != nil {
		t.Fatal("expected mismatch cleared after correction")
	}
}

func TestRunGivesUpAfterBudget(t *testing.T) {
	store := storage.NewInMemory()
	rec := newTestReconciler(store)
	ctx := context.Background()

	seed(t, store, "a")
	turn, err := rec.Begin(ctx, "complete task 2")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	turn.SetBelief([]int{1})
	turn.Record(nil, "Done.")

	if err := rec.Run(ctx, turn); err != nil {
		t.Fatalf("run: %v", err)
	}
	if turn.Attempts != DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxAttempts, turn.Attempts)
	}
}

func TestFulfilledTable(t *testing.T) {
	mk := func(completed ...bool) []core.Task {
		var tasks []core.Task
		for i, c := range completed {
			tasks = append(tasks, core.Task{ID: i + 1, Title: "t", Completed: c})
		}
		return tasks
	}

	cases := []struct {
		name    string
		request string
		pre     core.Counts
		tasks   []core.Task
		counts  map[string]int
		want    bool
	}{
		{
			name:    "remove all satisfied",
			request: "remove all tasks",
			pre:     core.Counts{Total: 3, Pending: 3},
			tasks:   nil,
			want:    true,
		},
		{
			name:    "remove all leftover",
			request: "remove all tasks",
			pre:     core.Counts{Total: 3, Pending: 3},
			tasks:   mk(false),
			want:    false,
		},
		{
			name:    "remove task id with delete performed",
			request: "remove task 3",
			pre:     core.Counts{Total: 3, Pending: 3},
			tasks:   mk(false, false),
			counts:  map[string]int{"deleted": 1},
			want:    true,
		},
		{
			name:    "remove task id nothing happened",
			request: "remove task 2",
			pre:     core.Counts{Total: 3, Pending: 3},
			tasks:   mk(false, false, false),
			want:    false,
		},
		{
			name:    "complete task id satisfied",
			request: "complete task 2",
			pre:     core.Counts{Total: 2, Pending: 2},
			tasks:   mk(false, true),
			want:    true,
		},
		{
			name:    "complete task id still pending",
			request: "complete task 2",
			pre:     core.Counts{Total: 2, Pending: 2},
			tasks:   mk(false, false),
			want:    false,
		},
		{
			name:    "remove any exact",
			request: "remove any 2",
			pre:     core.Counts{Total: 5, Pending: 5},
			tasks:   mk(false, false, false),
			counts:  map[string]int{"deleted": 2},
			want:    true,
		},
		{
			name:    "remove any short",
			request: "remove any 2",
			pre:     core.Counts{Total: 5, Pending: 5},
			tasks:   mk(false, false, false, false),
			counts:  map[string]int{"deleted": 1},
			want:    false,
		},
		{
			name:    "remove all completed keeps pending",
			request: "remove all completed tasks",
			pre:     core.Counts{Total: 4, Completed: 2, Pending: 2},
			tasks:   mk(false, false),
			counts:  map[string]int{"deleted": 2},
			want:    true,
		},
		{
			name:    "remove all completed lost a pending task",
			request: "remove all completed tasks",
			pre:     core.Counts{Total: 4, Completed: 2, Pending: 2},
			tasks:   mk(false),
			counts:  map[string]int{"deleted": 3},
			want:    false,
		},
		{
			name:    "remove half tolerance",
			request: "remove half of my tasks",
			pre:     core.Counts{Total: 5, Pending: 5},
			tasks:   mk(false, false, false),
			want:    true,
		},
		{
			name:    "remove percent",
			request: "remove 40% of my tasks",
			pre:     core.Counts{Total: 10, Pending: 10},
			tasks:   mk(false, false, false, false, false, false),
			want:    true,
		},
		{
			name:    "add n satisfied",
			request: "add 2 tasks",
			pre:     core.Counts{Total: 1, Pending: 1},
			tasks:   mk(false, false, false),
			want:    true,
		},
		{
			name:    "add n short",
			request: "add 2 tasks",
			pre:     core.Counts{Total: 1, Pending: 1},
			tasks:   mk(false, false),
			want:    false,
		},
		{
			name:    "complete all satisfied",
			request: "complete all my tasks",
			pre:     core.Counts{Total: 2, Pending: 2},
			tasks:   mk(true, true),
			want:    true,
		},
		{
			name:    "uncomplete all satisfied",
			request: "uncomplete all tasks",
			pre:     core.Counts{Total: 2, Completed: 2},
			tasks:   mk(false, false),
			want:    true,
		},
		{
			name:    "unrecognized request passes",
			request: "what should I do today?",
			pre:     core.Counts{Total: 2, Pending: 2},
			tasks:   mk(false, false),
			want:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			counts := tc.counts
			if counts == nil {
				counts = map[string]int{}
			}
			if got := fulfilled(tc.request, tc.pre, tc.tasks, counts); got != tc.want {
				t.Fatalf("fulfilled(%q) = %v, want %v", tc.request, got, tc.want)
			}
		})
	}
}

func TestDetectMismatch(t *testing.T) {
	if m := DetectMismatch("Added 3 tasks to your list.", map[string]int{"added": 3}); m != nil {
		t.Fatalf("expected no mismatch, got %v", m)
	}
	m := DetectMismatch("Added 3 tasks to your list.", map[string]int{"added": 2})
	if m == nil || m.Verb != "added" || m.Claimed != 3 || m.Actual != 2 {
		t.Fatalf("unexpected mismatch: %+v", m)
	}
	m = DetectMismatch("Removed 2 tasks.", map[string]int{"deleted": 1})
	if m == nil || m.Verb != "deleted" {
		t.Fatalf("unexpected mismatch: %+v", m)
	}
	m = DetectMismatch("All tasks have been removed.", map[string]int{})
	if m == nil || !m.All {
		t.Fatalf("expected all-gone mismatch, got %+v", m)
	}
	if m := DetectMismatch("Here's your list.", map[string]int{}); m != nil {
		t.Fatalf("expected no mismatch, got %v", m)
	}
}
