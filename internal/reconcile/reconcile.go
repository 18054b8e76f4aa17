// Package reconcile verifies that an assistant-driven action batch
// actually left the store in the state the user asked for, and issues
// corrective mutations when it did not. The translator is treated as an
// unreliable collaborator: its claims are checked against the store, and
// the store wins.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mistakeknot/stride/internal/command"
	"github.com/mistakeknot/stride/internal/core"
	"github.com/mistakeknot/stride/internal/storage"
)

const (
	// DefaultMaxAttempts bounds the verify/correct loop. Every pass
	// either fixes something or re-checks, so a request that is still
	// unfulfilled after this many rounds is not going to converge.
	DefaultMaxAttempts = 10

	// DefaultDelay between verification passes.
	DefaultDelay = 800 * time.Millisecond
)

// Turn is the per-request verification state: what the user asked, what
// the store looked like before, and what the action batch claimed to do.
type Turn struct {
	ID      uuid.UUID
	Request string

	// Pre is the store state captured before the batch ran.
	Pre core.Counts

	// Results are the effect strings the batch produced, ActionCounts
	// their per-verb tally.
	Results      []string
	ActionCounts map[string]int

	// Message is the assistant's visible reply, Mismatch any contradicted
	// numeric claim found in it.
	Message  string
	Mismatch *Mismatch

	// BelievedIDs are the task ids the translator was shown. Verification
	// fails until they match the store again.
	BelievedIDs []int

	Attempts int

	// corrections remembers one-shot fixes so a retried pass does not
	// repeat them.
	corrections map[string]bool
}

// Reconciler runs the verification loop against a store.
type Reconciler struct {
	store storage.Store

	maxAttempts int
	delay       time.Duration
	sleepFn     func(time.Duration)

	// Notify, when set, receives a line for each corrective action taken.
	Notify func(string)
}

func New(store storage.Store) *Reconciler {
	return &Reconciler{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultDelay,
		sleepFn:     time.Sleep,
	}
}

// WithDelay overrides the pause between verification passes.
func (r *Reconciler) WithDelay(d time.Duration) *Reconciler {
	r.delay = d
	return r
}

// Begin captures the pre-action store state for a new turn.
func (r *Reconciler) Begin(ctx context.Context, request string) (*Turn, error) {
	pre, err := r.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin turn: %w", err)
	}
	return &Turn{
		ID:          uuid.New(),
		Request:     request,
		Pre:         pre,
		corrections: make(map[string]bool),
	}, nil
}

// Record stores the batch outcome on the turn and scans the assistant's
// message for contradicted claims.
func (t *Turn) Record(results []string, message string) {
	t.Results = results
	t.ActionCounts = command.CountByVerb(results)
	t.Message = message
	t.Mismatch = DetectMismatch(message, t.ActionCounts)
}

// SetBelief records the task ids the translator saw.
func (t *Turn) SetBelief(ids []int) {
	t.BelievedIDs = ids
}

// Run drives verify/correct passes until the request is fulfilled, the
// belief matches the store and no message mismatch remains, or the
// attempt budget is spent. Errors only surface for storage failures; an
// unconverged turn ends with a warning, never an error, so the user is
// not locked out.
func (r *Reconciler) Run(ctx context.Context, t *Turn) error {
	for t.Attempts < r.maxAttempts {
		t.Attempts++

		tasks, err := r.store.List(ctx)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}

		ok := fulfilled(t.Request, t.Pre, tasks, t.ActionCounts)
		beliefOK := beliefMatches(t.BelievedIDs, tasks)

		if ok && beliefOK && t.Mismatch == nil {
			// Converged. Close any id gaps left by out-of-order deletes,
			// then make the belief current.
			if !contiguous(tasks) {
				if err := r.store.Renumber(ctx); err != nil {
					return fmt.Errorf("renumber: %w", err)
				}
				tasks, err = r.store.List(ctx)
				if err != nil {
					return fmt.Errorf("verify: %w", err)
				}
			}
			t.SetBelief(taskIDs(tasks))
			return nil
		}

		log.Printf("reconcile: turn %s attempt %d/%d: fulfilled=%v belief=%v mismatch=%v",
			t.ID, t.Attempts, r.maxAttempts, ok, beliefOK, t.Mismatch != nil)

		if !beliefOK {
			t.SetBelief(taskIDs(tasks))
		}
		if !ok || t.Mismatch != nil {
			if err := r.correct(ctx, t, tasks); err != nil {
				return fmt.Errorf("correct: %w", err)
			}
		}
		r.sleepFn(r.delay)
	}

	log.Printf("reconcile: turn %s: attempt budget exhausted, giving up", t.ID)
	tasks, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("final sync: %w", err)
	}
	t.SetBelief(taskIDs(tasks))
	return nil
}

// correct issues mutations to close the gap between the request and the
// store. Each branch acts at most once per pass; the next pass re-checks.
func (r *Reconciler) correct(ctx context.Context, t *Turn, tasks []core.Task) error {
	req := strings.ToLower(t.Request)

	// A contradicted numeric claim is resolved toward the claim: the user
	// read the message, so the store is moved to match it.
	if m := t.Mismatch; m != nil && !m.All {
		shortfall := m.Claimed - m.Actual
		if shortfall > 0 {
			switch m.Verb {
			case "added":
				for i := 0; i < shortfall; i++ {
					if _, err := r.store.Add(ctx, fmt.Sprintf("Corrective Task %d", i+1), "Auto-added to match count"); err != nil {
						return err
					}
				}
				t.ActionCounts["added"] += shortfall
				t.Mismatch = nil
				r.notify(fmt.Sprintf("Corrected: added %d more task(s) to match claim of %d", shortfall, m.Claimed))
				return nil
			case "deleted":
				if err := r.deleteFirst(ctx, tasks, shortfall); err != nil {
					return err
				}
				t.ActionCounts["deleted"] += shortfall
				t.Mismatch = nil
				r.notify(fmt.Sprintf("Corrected: removed %d more task(s) to match claim of %d", shortfall, m.Claimed))
				return nil
			}
		}
		t.Mismatch = nil
	}

	// "remove task N" where no deletion happened at all.
	if m := taskIDRe.FindStringSubmatch(req); m != nil &&
		(strings.Contains(req, "remove") || strings.Contains(req, "delete")) {
		id, _ := strconv.Atoi(m[1])
		key := fmt.Sprintf("delete_%d", id)
		if !t.corrections[key] && t.ActionCounts["deleted"] == 0 {
			if taskByID(tasks, id) != nil {
				t.corrections[key] = true
				if _, err := r.store.Delete(ctx, id); err != nil {
					return err
				}
				t.ActionCounts["deleted"]++
				r.notify(fmt.Sprintf("Corrected: removed task %d", id))
				return nil
			}
		}
	}

	// "remove any N tasks" that under-delivered.
	if m := removeAnyRe.FindStringSubmatch(req); m != nil && !mentionsStatus(req) {
		n, _ := strconv.Atoi(m[1])
		removed := t.Pre.Total - len(tasks)
		if removed < n {
			short := n - removed
			if err := r.deleteFirst(ctx, tasks, short); err != nil {
				return err
			}
			t.ActionCounts["deleted"] += short
			r.notify(fmt.Sprintf("Corrected: removed %d more task(s) to reach %d total", short, n))
			return nil
		}
	}

	// "remove all completed": delete surviving completed tasks, and
	// restore pending tasks that were deleted by mistake.
	if removeAllDoneRe.MatchString(req) {
		var completedIDs []int
		for _, task := range tasks {
			if task.Completed {
				completedIDs = append(completedIDs, task.ID)
			}
		}
		if len(completedIDs) > 0 {
			if err := r.deleteByID(ctx, completedIDs); err != nil {
				return err
			}
			t.ActionCounts["deleted"] += len(completedIDs)
			r.notify(fmt.Sprintf("Corrected: removed %d completed task(s)", len(completedIDs)))
		}

		remaining, err := r.store.List(ctx)
		if err != nil {
			return err
		}
		pendingNow := len(remaining) - countCompleted(remaining)
		if pendingNow < t.Pre.Pending {
			missing := t.Pre.Pending - pendingNow
			restored, err := r.restorePending(ctx, missing)
			if err != nil {
				return err
			}
			if restored > 0 {
				t.ActionCounts["restored"] += restored
				r.notify(fmt.Sprintf("Corrected: restored %d pending task(s) that were deleted by mistake", restored))
			}
		}
		return nil
	}

	// "remove all": delete whatever survived.
	if hasRemoveAll(req) && !mentionsStatus(req) && len(tasks) > 0 {
		if err := r.deleteFirst(ctx, tasks, len(tasks)); err != nil {
			return err
		}
		t.ActionCounts["deleted"] += len(tasks)
		r.notify(fmt.Sprintf("Corrected: removed remaining %d task(s)", len(tasks)))
		return nil
	}

	// "remove half of the completed tasks" that under-delivered.
	if halfCompletedRe.MatchString(req) {
		target := t.Pre.Completed / 2
		var completedIDs []int
		for _, task := range tasks {
			if task.Completed {
				completedIDs = append(completedIDs, task.ID)
			}
		}
		if len(completedIDs) > target {
			extra := len(completedIDs) - target
			if err := r.deleteByID(ctx, completedIDs[:extra]); err != nil {
				return err
			}
			t.ActionCounts["deleted"] += extra
			r.notify(fmt.Sprintf("Corrected: removed %d more completed task(s)", extra))
		}
		return nil
	}

	// "remove half" / "remove N%" that under-delivered.
	if halfRe.MatchString(req) || percentRe.MatchString(req) {
		target := t.Pre.Total / 2
		if m := percentRe.FindStringSubmatch(req); m != nil && !halfRe.MatchString(req) {
			pct, _ := strconv.Atoi(m[1])
			target = t.Pre.Total - t.Pre.Total*pct/100
		}
		if len(tasks) > target {
			extra := len(tasks) - target
			if err := r.deleteFirst(ctx, tasks, extra); err != nil {
				return err
			}
			t.ActionCounts["deleted"] += extra
			r.notify(fmt.Sprintf("Corrected: removed %d more task(s)", extra))
		}
		return nil
	}

	// No recognized correction; the next pass re-checks.
	return nil
}

// deleteFirst deletes up to n tasks from the front of the slice, re-reading
// ids as renumbering shifts them.
func (r *Reconciler) deleteFirst(ctx context.Context, tasks []core.Task, n int) error {
	// Deleting id k shifts every higher id down by one, so deleting the
	// first id n times removes the first n tasks.
	if n > len(tasks) {
		n = len(tasks)
	}
	if n <= 0 {
		return nil
	}
	first := tasks[0].ID
	for i := 0; i < n; i++ {
		if _, err := r.store.Delete(ctx, first); err != nil {
			return err
		}
	}
	return nil
}

// deleteByID deletes the given live ids, highest first, so each delete's
// renumbering cannot shift an id still waiting to be deleted.
func (r *Reconciler) deleteByID(ctx context.Context, ids []int) error {
	sorted := append([]int(nil), ids...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, id := range sorted {
		if _, err := r.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// restorePending restores up to n pending tasks from the deletion archive,
// newest first.
func (r *Reconciler) restorePending(ctx context.Context, n int) (int, error) {
	archived, err := r.store.ListDeleted(ctx, 20)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, d := range archived {
		if restored >= n {
			break
		}
		if d.Completed {
			continue
		}
		ok, err := r.store.Restore(ctx, d.ArchiveID)
		if err != nil {
			return restored, err
		}
		if ok {
			restored++
		}
	}
	return restored, nil
}

func (r *Reconciler) notify(msg string) {
	if r.Notify != nil {
		r.Notify(msg)
	} else {
		log.Printf("reconcile: %s", msg)
	}
}

func beliefMatches(believed []int, tasks []core.Task) bool {
	actual := taskIDs(tasks)
	if len(believed) != len(actual) {
		return false
	}
	seen := make(map[int]bool, len(believed))
	for _, id := range believed {
		seen[id] = true
	}
	for _, id := range actual {
		if !seen[id] {
			return false
		}
	}
	return true
}

func taskIDs(tasks []core.Task) []int {
	ids := make([]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func contiguous(tasks []core.Task) bool {
	for i, t := range tasks {
		if t.ID != i+1 {
			return false
		}
	}
	return true
}

func countCompleted(tasks []core.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Completed {
			n++
		}
	}
	return n
}
