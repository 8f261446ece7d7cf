package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/mail-triage/internal/model"
)

const messageColumns = `
	seq, message_id, in_reply_to, refs,
	subject, subject_normalized, body, body_html,
	account_id, user_email, from_addr, from_name, to_addr,
	direction, status, decision,
	requires_reply, classifier_raw, classifier_fallback,
	category, urgency, tags, task, insight, is_proposal,
	reply_draft, forced, attachments, embedding,
	created_at, handled_at`

// InsertMessage stores m unless a message with the same MessageID exists.
func (s *SQLiteStore) InsertMessage(ctx context.Context, m model.Message) (bool, error) {
	if m.MessageID == "" {
		return false, fmt.Errorf("message id must not be empty")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	refs, err := encodeJSON(m.References)
	if err != nil {
		return false, fmt.Errorf("marshaling references for %s: %w", m.MessageID, err)
	}
	tags, err := encodeJSON(m.Tags)
	if err != nil {
		return false, fmt.Errorf("marshaling tags for %s: %w", m.MessageID, err)
	}
	attachments, err := encodeJSON(m.Attachments)
	if err != nil {
		return false, fmt.Errorf("marshaling attachments for %s: %w", m.MessageID, err)
	}
	embedding, err := encodeJSON(m.Embedding)
	if err != nil {
		return false, fmt.Errorf("marshaling embedding for %s: %w", m.MessageID, err)
	}
	task := ""
	if m.Task != nil {
		if task, err = encodeJSON(m.Task); err != nil {
			return false, fmt.Errorf("marshaling task for %s: %w", m.MessageID, err)
		}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (
			message_id, in_reply_to, refs,
			subject, subject_normalized, body, body_html,
			account_id, user_email, from_addr, from_name, to_addr,
			direction, status, decision,
			requires_reply, classifier_raw, classifier_fallback,
			category, urgency, tags, task, insight, is_proposal,
			reply_draft, forced, attachments, embedding,
			created_at, handled_at
		) VALUES (
			?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?
		) ON CONFLICT(message_id) DO NOTHING`,
		m.MessageID, m.InReplyTo, refs,
		m.Subject, m.SubjectNormalized, m.Body, m.BodyHTML,
		m.AccountID, m.UserEmail, m.From, m.FromName, m.To,
		string(m.Direction), string(m.Status), string(m.Decision),
		boolToInt(m.Classifier.RequiresReply), m.Classifier.Raw, boolToInt(m.Classifier.Fallback),
		m.Category, m.Urgency, tags, task, m.Insight, boolToInt(m.IsProposal),
		m.ReplyDraft, boolToInt(m.Forced), attachments, embedding,
		m.CreatedAt.UTC(), nullTime(m.HandledAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting message %s: %w", m.MessageID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading insert result for %s: %w", m.MessageID, err)
	}
	return n > 0, nil
}

// GetMessage retrieves a single message by its protocol id.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE message_id = ?", messageID)

	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", messageID, err)
	}
	return &m, nil
}

// MessageExists reports whether a message with the given id is stored.
func (s *SQLiteStore) MessageExists(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM messages WHERE message_id = ?", messageID)
	if err != nil {
		return false, fmt.Errorf("checking message %s: %w", messageID, err)
	}
	return n > 0, nil
}

func messageConditions(f MessageFilter) ([]string, []any) {
	var conditions []string
	var args []any

	if f.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.UserEmail != nil {
		conditions = append(conditions, "user_email = ?")
		args = append(args, *f.UserEmail)
	}
	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Direction != nil {
		conditions = append(conditions, "direction = ?")
		args = append(args, string(*f.Direction))
	}
	if f.SubjectNormalized != nil {
		conditions = append(conditions, "subject_normalized = ?")
		args = append(args, *f.SubjectNormalized)
	}
	if f.Query != nil && *f.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR body LIKE ?)")
		q := "%" + *f.Query + "%"
		args = append(args, q, q)
	}
	if f.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}

	return conditions, args
}

// GetMessages retrieves messages matching the provided filter options.
func (s *SQLiteStore) GetMessages(ctx context.Context, f MessageFilter) ([]model.Message, error) {
	conditions, args := messageConditions(f)

	query := "SELECT " + messageColumns + " FROM messages"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "created_at"
	allowedSorts := map[string]bool{
		"created_at": true,
		"urgency":    true,
		"seq":        true,
	}
	if allowedSorts[f.SortBy] {
		sortBy = f.SortBy
	}

	direction := "ASC"
	if f.SortDesc {
		direction = "DESC"
	}
	// seq breaks ties so equal timestamps keep insertion order.
	query += fmt.Sprintf(" ORDER BY %s %s, seq %s", sortBy, direction, direction)

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
		if f.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", f.Offset)
		}
	}

	return s.queryMessages(ctx, query, args...)
}

// CountMessages returns how many messages match the filter.
func (s *SQLiteStore) CountMessages(ctx context.Context, f MessageFilter) (int, error) {
	conditions, args := messageConditions(f)

	query := "SELECT COUNT(*) FROM messages"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// GetLinkedMessages returns messages whose id, in-reply-to, or references
// contain one of ids.
func (s *SQLiteStore) GetLinkedMessages(ctx context.Context, ids []string) ([]model.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	in := placeholders(len(ids))
	query := "SELECT " + messageColumns + " FROM messages WHERE " +
		"message_id IN (" + in + ") OR in_reply_to IN (" + in + ") OR " +
		"EXISTS (SELECT 1 FROM json_each(messages.refs) r WHERE r.value IN (" + in + "))" +
		" ORDER BY created_at, seq"

	args := make([]any, 0, len(ids)*3)
	for i := 0; i < 3; i++ {
		for _, id := range ids {
			args = append(args, id)
		}
	}

	return s.queryMessages(ctx, query, args...)
}

// UpdateMessage applies the non-nil fields of u to the stored message.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, messageID string, u MessageUpdate) error {
	var sets []string
	var args []any

	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.Body != nil {
		sets = append(sets, "body = ?")
		args = append(args, *u.Body)
	}
	if u.ReplyDraft != nil {
		sets = append(sets, "reply_draft = ?")
		args = append(args, *u.ReplyDraft)
	}
	if u.Decision != nil {
		sets = append(sets, "decision = ?")
		args = append(args, string(*u.Decision))
	}
	if u.Forced != nil {
		sets = append(sets, "forced = ?")
		args = append(args, boolToInt(*u.Forced))
	}
	if u.HandledAt != nil {
		sets = append(sets, "handled_at = ?")
		args = append(args, u.HandledAt.UTC())
	}
	if u.Tags != nil {
		tags, err := encodeJSON(u.Tags)
		if err != nil {
			return fmt.Errorf("marshaling tags for %s: %w", messageID, err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE messages SET " + strings.Join(sets, ", ") + " WHERE message_id = ?"
	args = append(args, messageID)
	if u.FromStatus != nil {
		query += " AND status = ?"
		args = append(args, string(*u.FromStatus))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", messageID, err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	exists, err := s.MessageExists(ctx, messageID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("updating message %s: %w", messageID, ErrNotFound)
	}
	return fmt.Errorf("updating message %s: status changed: %w", messageID, ErrConflict)
}

// DeleteMessage removes a message by its protocol id.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, messageID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE message_id = ?", messageID)
	if err != nil {
		return fmt.Errorf("deleting message %s: %w", messageID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting message %s: %w", messageID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// scanMessage scans one messages row selected with messageColumns.
func scanMessage(row rowScanner) (model.Message, error) {
	var (
		m                                         model.Message
		direction, status, decision               string
		refs, tags, task, attachments, embedding  string
		requiresReply, fallback, proposal, forced int
		createdAt                                 time.Time
		handledAt                                 sql.NullTime
	)

	err := row.Scan(
		&m.Seq, &m.MessageID, &m.InReplyTo, &refs,
		&m.Subject, &m.SubjectNormalized, &m.Body, &m.BodyHTML,
		&m.AccountID, &m.UserEmail, &m.From, &m.FromName, &m.To,
		&direction, &status, &decision,
		&requiresReply, &m.Classifier.Raw, &fallback,
		&m.Category, &m.Urgency, &tags, &task, &m.Insight, &proposal,
		&m.ReplyDraft, &forced, &attachments, &embedding,
		&createdAt, &handledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, err
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("scanning message row: %w", err)
	}

	m.Direction = model.Direction(direction)
	m.Status = model.Status(status)
	m.Decision = model.Decision(decision)
	m.Classifier.RequiresReply = requiresReply != 0
	m.Classifier.Fallback = fallback != 0
	m.IsProposal = proposal != 0
	m.Forced = forced != 0
	m.CreatedAt = createdAt
	if handledAt.Valid {
		t := handledAt.Time
		m.HandledAt = &t
	}

	if err := decodeJSON(refs, "refs", &m.References); err != nil {
		return model.Message{}, err
	}
	if err := decodeJSON(tags, "tags", &m.Tags); err != nil {
		return model.Message{}, err
	}
	if err := decodeJSON(attachments, "attachments", &m.Attachments); err != nil {
		return model.Message{}, err
	}
	if err := decodeJSON(embedding, "embedding", &m.Embedding); err != nil {
		return model.Message{}, err
	}
	if task != "" {
		m.Task = &model.ExtractedTask{}
		if err := decodeJSON(task, "task", m.Task); err != nil {
			return model.Message{}, err
		}
	}

	return m, nil
}

// nullTime maps a nil pointer to SQL NULL.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
