package core

import "time"

// Task is a live, user-visible to-do item. Live ids always form the
// contiguous range 1..N; deleting a task renumbers everything above it.
type Task struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeletedTask is an archived task retained for possible restoration.
// Written exactly once per deletion, before the live row is removed.
type DeletedTask struct {
	ArchiveID   int       `json:"archive_id"`
	OriginalID  int       `json:"original_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	DeletedAt   time.Time `json:"deleted_at"`
}

type ActionType string

const (
	ActionAdd         ActionType = "add"
	ActionComplete    ActionType = "complete"
	ActionUncomplete  ActionType = "uncomplete"
	ActionDelete      ActionType = "delete"
	ActionEdit        ActionType = "edit"
	ActionSearch      ActionType = "search"
	ActionList        ActionType = "list"
	ActionListDeleted ActionType = "list_deleted"
	ActionRestore     ActionType = "restore"
)

// Action is one structured mutation request from a user turn. The json
// field names are the wire format the NL translator emits.
type Action struct {
	Type        ActionType `json:"action"`
	TaskID      int        `json:"task_id,omitempty"`
	Title       string     `json:"task_text,omitempty"`
	NewTitle    string     `json:"task_title,omitempty"`
	Description *string    `json:"task_description,omitempty"`
	Query       string     `json:"search_query,omitempty"`
	ArchiveID   int        `json:"deleted_task_id,omitempty"`
}

// Counts is a snapshot of the store used by reconciliation.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}
