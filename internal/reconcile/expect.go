package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mistakeknot/stride/internal/core"
)

// The expectation table. Each pattern maps a request shape to a check
// against the post-action store state. Requests matching nothing are
// treated as non-modifying and always fulfilled.
var (
	taskIDRe           = regexp.MustCompile(`(?:remove|delete|complete|uncomplete|edit).*?task\s*(\d+)`)
	removeAnyRe        = regexp.MustCompile(`(?:remove|delete)\s+any\s+(\d+)(?:\s+tasks?)?$`)
	removeAllDoneRe    = regexp.MustCompile(`(?:remove|delete)\s+all\s+(?:completed|done)`)
	halfCompletedRe    = regexp.MustCompile(`(?:remove|delete).*half.*(?:completed|done)`)
	halfRe             = regexp.MustCompile(`(?:remove|delete).*(?:half|50%)`)
	percentRe          = regexp.MustCompile(`(?:remove|delete).*?(\d+)%`)
	addNRe             = regexp.MustCompile(`add (\d+)`)
	removeNRe          = regexp.MustCompile(`(?:remove|delete) (\d+)`)
	completeNRe        = regexp.MustCompile(`complete (\d+)`)
	uncompleteNRe      = regexp.MustCompile(`uncomplete (\d+)`)
	claimedAddedRe     = regexp.MustCompile(`(?:added|created)\s+(\d+)\s+task`)
	claimedRemovedRe   = regexp.MustCompile(`(?:removed|deleted)\s+(\d+)\s+task`)
	claimedCompletedRe = regexp.MustCompile(`(?:completed|done)\s+(\d+)\s+task`)
	claimedAllGoneRe   = regexp.MustCompile(`all tasks.*(?:removed|deleted)`)
)

// fulfilled reports whether the store state satisfies the request. pre is
// the state captured before the action batch ran, counts the per-verb
// tally of what the batch actually did.
func fulfilled(request string, pre core.Counts, tasks []core.Task, counts map[string]int) bool {
	req := strings.ToLower(request)
	post := postCounts(tasks)

	if m := taskIDRe.FindStringSubmatch(req); m != nil {
		id, _ := strconv.Atoi(m[1])
		switch {
		case strings.Contains(req, "remove") || strings.Contains(req, "delete"):
			// Ids renumber after a delete, so "does id N still exist" is
			// meaningless once any deletion happened.
			if counts["deleted"] > 0 {
				return true
			}
			if taskByID(tasks, id) != nil {
				return false
			}
		case strings.Contains(req, "uncomplete"):
			t := taskByID(tasks, id)
			if t == nil || t.Completed {
				return false
			}
		case strings.Contains(req, "complete"):
			t := taskByID(tasks, id)
			if t == nil || !t.Completed {
				return false
			}
		}
	}

	if m := removeAnyRe.FindStringSubmatch(req); m != nil && !mentionsStatus(req) {
		n, _ := strconv.Atoi(m[1])
		if counts["deleted"] != n {
			return false
		}
		if pre.Total-post.Total != n {
			return false
		}
	}

	if hasRemoveAll(req) && !mentionsStatus(req) {
		return post.Total == 0
	}

	if removeAllDoneRe.MatchString(req) {
		return post.Completed == 0 && post.Pending == pre.Pending
	}

	if halfCompletedRe.MatchString(req) {
		if pre.Completed == 0 {
			return true
		}
		return abs(post.Completed-pre.Completed/2) <= 1
	}

	if halfRe.MatchString(req) && !strings.Contains(req, "completed") {
		return abs(post.Total-pre.Total/2) <= 1
	}

	if m := percentRe.FindStringSubmatch(req); m != nil {
		pct, _ := strconv.Atoi(m[1])
		remaining := pre.Total - pre.Total*pct/100
		return abs(post.Total-remaining) <= 1
	}

	if m := addNRe.FindStringSubmatch(req); m != nil {
		n, _ := strconv.Atoi(m[1])
		return post.Total >= pre.Total+n
	}

	if m := removeNRe.FindStringSubmatch(req); m != nil {
		n, _ := strconv.Atoi(m[1])
		return post.Total <= pre.Total-n
	}

	if strings.Contains(req, "complete all") && !strings.Contains(req, "uncomplete all") {
		return post.Pending == 0
	}

	if strings.Contains(req, "uncomplete all") || strings.Contains(req, "incomplete all") {
		return post.Completed == 0
	}

	if m := completeNRe.FindStringSubmatch(req); m != nil {
		n, _ := strconv.Atoi(m[1])
		return post.Completed >= n
	}

	if m := uncompleteNRe.FindStringSubmatch(req); m != nil {
		n, _ := strconv.Atoi(m[1])
		return abs(post.Completed-(pre.Completed-n)) <= 1
	}

	return true
}

// Mismatch is a numeric claim in the assistant's message that the action
// tally contradicts.
type Mismatch struct {
	Verb    string // "added", "deleted" or "completed"
	Claimed int
	Actual  int
	All     bool // "all tasks removed" with zero deletions
}

func (m *Mismatch) String() string {
	if m.All {
		return "claimed all tasks removed, but no deletions occurred"
	}
	return fmt.Sprintf("claimed %d tasks %s, but actually %s %d", m.Claimed, m.Verb, m.Verb, m.Actual)
}

// DetectMismatch compares the counts the message claims against the
// counts the batch produced. Nil when the message makes no contradicted
// claim.
func DetectMismatch(message string, counts map[string]int) *Mismatch {
	msg := strings.ToLower(message)

	if m := claimedAddedRe.FindStringSubmatch(msg); m != nil {
		claimed, _ := strconv.Atoi(m[1])
		if actual := counts["added"]; claimed != actual {
			return &Mismatch{Verb: "added", Claimed: claimed, Actual: actual}
		}
	}
	if m := claimedRemovedRe.FindStringSubmatch(msg); m != nil {
		claimed, _ := strconv.Atoi(m[1])
		if actual := counts["deleted"]; claimed != actual {
			return &Mismatch{Verb: "deleted", Claimed: claimed, Actual: actual}
		}
	}
	if m := claimedCompletedRe.FindStringSubmatch(msg); m != nil {
		claimed, _ := strconv.Atoi(m[1])
		if actual := counts["completed"]; claimed != actual {
			return &Mismatch{Verb: "completed", Claimed: claimed, Actual: actual}
		}
	}
	if claimedAllGoneRe.MatchString(msg) && counts["deleted"] == 0 {
		return &Mismatch{Verb: "deleted", All: true}
	}
	return nil
}

func hasRemoveAll(req string) bool {
	return strings.Contains(req, "remove all") ||
		strings.Contains(req, "delete all") ||
		strings.Contains(req, "clear all")
}

// mentionsStatus guards the count-based checks against requests scoped to
// completed or pending tasks, which have their own checks.
func mentionsStatus(req string) bool {
	return strings.Contains(req, "completed") ||
		strings.Contains(req, "pending") ||
		strings.Contains(req, "done")
}

func postCounts(tasks []core.Task) core.Counts {
	c := core.Counts{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.Completed++
		}
	}
	c.Pending = c.Total - c.Completed
	return c
}

func taskByID(tasks []core.Task, id int) *core.Task {
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i]
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
