package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mail-triage/internal/model"
)

// CreateTask inserts a new task, assigning an ID when none is set.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, account_id, user_email, sender, title, due_date,
			urgency, status, is_approved, message_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.AccountID, task.UserEmail, task.Sender, task.Title, nullTime(task.DueDate),
		task.Urgency, string(task.Status), boolToInt(task.IsApproved), task.MessageID,
		task.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

// GetTasks retrieves tasks matching the filter, newest first.
func (s *SQLiteStore) GetTasks(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	var conditions []string
	var args []any

	if f.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.MessageID != nil {
		conditions = append(conditions, "message_id = ?")
		args = append(args, *f.MessageID)
	}

	query := `SELECT id, account_id, user_email, sender, title, due_date,
		urgency, status, is_approved, message_id, created_at FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var (
			t        model.Task
			status   string
			approved int
			due      sql.NullTime
		)
		err := rows.Scan(
			&t.ID, &t.AccountID, &t.UserEmail, &t.Sender, &t.Title, &due,
			&t.Urgency, &status, &approved, &t.MessageID, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		t.Status = model.TaskStatus(status)
		t.IsApproved = approved != 0
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus sets a task's approval state.
func (s *SQLiteStore) UpdateTaskStatus(
	ctx context.Context,
	id string,
	status model.TaskStatus,
	approved bool,
) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, is_approved = ? WHERE id = ?",
		string(status), boolToInt(approved), id,
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("updating task %s: %w", id, ErrNotFound)
	}
	return nil
}
