package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mistakeknot/stride/internal/core"
)

//go:embed schema.sql
var schema string

type Store struct {
	db dbHandle
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: &queryLogger{inner: db}}, nil
}

func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The in-memory database vanishes if its only connection closes.
	db.SetMaxOpenConns(1)
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: &queryLogger{inner: db}}, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add appends a task at the tail. The next id is max live id + 1, so the
// counter resets to 1 whenever the table empties; ids stay contiguous
// from 1 by construction.
func (s *Store) Add(ctx context.Context, title, description string) (core.Task, error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Task{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var id int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM tasks`).Scan(&id); err != nil {
		return core.Task{}, fmt.Errorf("next id: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO tasks (id, title, description, completed, created_at) VALUES (?, ?, ?, 0, ?)`,
		id, title, nullable(description), now.Format(time.RFC3339Nano),
	); err != nil {
		return core.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Task{}, fmt.Errorf("commit: %w", err)
	}
	return core.Task{ID: id, Title: title, Description: description, CreatedAt: now}, nil
}

// InsertAt inserts a task at the given id, shifting ids >= id up by one.
// An out-of-range id falls back to a tail append.
func (s *Store) InsertAt(ctx context.Context, id int, title, description string) (core.Task, error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Task{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
		return core.Task{}, fmt.Errorf("count: %w", err)
	}
	if id < 1 || id > count {
		id = count + 1
	} else {
		// Shift in two steps so the primary key never collides mid-update.
		if _, err := tx.Exec(`UPDATE tasks SET id = -(id + 1) WHERE id >= ?`, id); err != nil {
			return core.Task{}, fmt.Errorf("shift up: %w", err)
		}
		if _, err := tx.Exec(`UPDATE tasks SET id = -id WHERE id < 0`); err != nil {
			return core.Task{}, fmt.Errorf("unshift: %w", err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO tasks (id, title, description, completed, created_at) VALUES (?, ?, ?, 0, ?)`,
		id, title, nullable(description), now.Format(time.RFC3339Nano),
	); err != nil {
		return core.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Task{}, fmt.Errorf("commit: %w", err)
	}
	return core.Task{ID: id, Title: title, Description: description, CreatedAt: now}, nil
}

func (s *Store) List(ctx context.Context) ([]core.Task, error) {
	return s.queryTasks(`SELECT id, title, description, completed, created_at FROM tasks ORDER BY id ASC`)
}

func (s *Store) Search(ctx context.Context, keyword string) ([]core.Task, error) {
	like := "%" + keyword + "%"
	return s.queryTasks(
		`SELECT id, title, description, completed, created_at FROM tasks
		 WHERE title LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE
		 ORDER BY id ASC`, like, like,
	)
}

func (s *Store) queryTasks(query string, args ...any) ([]core.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []core.Task
	for rows.Next() {
		var (
			t         core.Task
			desc      sql.NullString
			completed int
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Title, &desc, &completed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Description = desc.String
		t.Completed = completed != 0
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *Store) Complete(ctx context.Context, id int) (bool, error) {
	return s.setCompleted(id, 1)
}

func (s *Store) Uncomplete(ctx context.Context, id int) (bool, error) {
	return s.setCompleted(id, 0)
}

func (s *Store) setCompleted(id, completed int) (bool, error) {
	res, err := s.db.Exec(`UPDATE tasks SET completed = ? WHERE id = ?`, completed, id)
	if err != nil {
		return false, fmt.Errorf("update completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Edit applies a partial update; nil fields are left untouched.
func (s *Store) Edit(ctx context.Context, id int, title, description *string) (bool, error) {
	if title == nil && description == nil {
		return false, nil
	}
	var (
		res sql.Result
		err error
	)
	switch {
	case title != nil && description != nil:
		res, err = s.db.Exec(`UPDATE tasks SET title = ?, description = ? WHERE id = ?`, *title, nullable(*description), id)
	case title != nil:
		res, err = s.db.Exec(`UPDATE tasks SET title = ? WHERE id = ?`, *title, id)
	default:
		res, err = s.db.Exec(`UPDATE tasks SET description = ? WHERE id = ?`, nullable(*description), id)
	}
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete archives the task, removes it, and renumbers every task with a
// larger id down by one, as a single transaction. Returns false with no
// archive entry if the id is absent.
func (s *Store) Delete(ctx context.Context, id int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		title     string
		desc      sql.NullString
		completed int
		createdAt string
	)
	err = tx.QueryRow(`SELECT title, description, completed, created_at FROM tasks WHERE id = ?`, id).
		Scan(&title, &desc, &completed, &createdAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load task: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO deleted_tasks (original_id, title, description, completed, created_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, title, desc, completed, createdAt, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return false, fmt.Errorf("archive task: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	// Safe in ascending rowid order: each decrement moves into the slot
	// freed by the previous row.
	if _, err := tx.Exec(`UPDATE tasks SET id = id - 1 WHERE id > ?`, id); err != nil {
		return false, fmt.Errorf("renumber: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *Store) ListDeleted(ctx context.Context, limit int) ([]core.DeletedTask, error) {
	query := `SELECT archive_id, original_id, title, description, completed, created_at, deleted_at
	          FROM deleted_tasks ORDER BY archive_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deleted: %w", err)
	}
	defer rows.Close()

	var out []core.DeletedTask
	for rows.Next() {
		var (
			d         core.DeletedTask
			desc      sql.NullString
			completed int
			createdAt string
			deletedAt string
		)
		if err := rows.Scan(&d.ArchiveID, &d.OriginalID, &d.Title, &desc, &completed, &createdAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("scan deleted: %w", err)
		}
		d.Description = desc.String
		d.Completed = completed != 0
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		d.DeletedAt, _ = time.Parse(time.RFC3339Nano, deletedAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Restore appends the archived task as a new live task at the tail (next
// sequential id, not its original position) and removes the archive row.
func (s *Store) Restore(ctx context.Context, archiveID int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		title     string
		desc      sql.NullString
		completed int
		createdAt string
	)
	err = tx.QueryRow(
		`SELECT title, description, completed, created_at FROM deleted_tasks WHERE archive_id = ?`, archiveID,
	).Scan(&title, &desc, &completed, &createdAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load archived task: %w", err)
	}

	var id int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM tasks`).Scan(&id); err != nil {
		return false, fmt.Errorf("next id: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO tasks (id, title, description, completed, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, title, desc, completed, createdAt,
	); err != nil {
		return false, fmt.Errorf("restore task: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM deleted_tasks WHERE archive_id = ?`, archiveID); err != nil {
		return false, fmt.Errorf("remove archive entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Renumber compacts live ids back to 1..N, preserving relative order.
// Used after corrective mutations that can leave gaps mid-turn.
func (s *Store) Renumber(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id FROM tasks ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("query ids: %w", err)
	}
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}

	// Two-step sign flip so the primary key never collides mid-update.
	for i, id := range ids {
		if _, err := tx.Exec(`UPDATE tasks SET id = ? WHERE id = ?`, -(i + 1), id); err != nil {
			return fmt.Errorf("renumber: %w", err)
		}
	}
	if _, err := tx.Exec(`UPDATE tasks SET id = -id WHERE id < 0`); err != nil {
		return fmt.Errorf("renumber: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Counts(ctx context.Context) (core.Counts, error) {
	var c core.Counts
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM tasks`).
		Scan(&c.Total, &c.Completed)
	if err != nil {
		return core.Counts{}, fmt.Errorf("counts: %w", err)
	}
	c.Pending = c.Total - c.Completed
	return c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
