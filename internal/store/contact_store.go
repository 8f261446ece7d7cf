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

const contactColumns = `
	email, name, default_tone, relationship_score, mail_count,
	ai_notes, last_contact_at, accounts, created_at`

// GetContact retrieves a contact by its lowercased address.
func (s *SQLiteStore) GetContact(ctx context.Context, email string) (*model.Contact, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE email = ?", email)

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting contact %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting contact %s: %w", email, err)
	}
	return &c, nil
}

// UpsertContact inserts c or overwrites every field of the stored contact
// except its notes and creation time.
func (s *SQLiteStore) UpsertContact(ctx context.Context, c model.Contact) error {
	if c.Email == "" {
		return fmt.Errorf("contact email must not be empty")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	accounts, err := encodeJSON(c.Accounts)
	if err != nil {
		return fmt.Errorf("marshaling accounts for %s: %w", c.Email, err)
	}
	notes, err := encodeJSON(c.AINotes)
	if err != nil {
		return fmt.Errorf("marshaling notes for %s: %w", c.Email, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (
			email, name, default_tone, relationship_score, mail_count,
			ai_notes, last_contact_at, accounts, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			default_tone = excluded.default_tone,
			relationship_score = excluded.relationship_score,
			mail_count = excluded.mail_count,
			last_contact_at = excluded.last_contact_at,
			accounts = excluded.accounts`,
		c.Email, c.Name, c.DefaultTone, c.RelationshipScore, c.MailCount,
		notes, nullTime(c.LastContactAt), accounts, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting contact %s: %w", c.Email, err)
	}
	return nil
}

// AppendContactNote appends note to the contact's notes in a single
// statement so concurrent appends never drop each other.
func (s *SQLiteStore) AppendContactNote(ctx context.Context, email, note string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE contacts SET ai_notes = json_insert(ai_notes, '$[#]', ?) WHERE email = ?",
		note, email,
	)
	if err != nil {
		return fmt.Errorf("appending note for %s: %w", email, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("appending note for %s: %w", email, ErrNotFound)
	}
	return nil
}

// GetContacts retrieves contacts matching the filter.
func (s *SQLiteStore) GetContacts(ctx context.Context, f ContactFilter) ([]model.Contact, error) {
	var conditions []string
	var args []any

	if f.AccountID != nil {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM json_each(contacts.accounts) a WHERE a.value = ?)")
		args = append(args, *f.AccountID)
	}
	if f.Query != nil && *f.Query != "" {
		conditions = append(conditions, "(email LIKE ? OR name LIKE ?)")
		q := "%" + *f.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT " + contactColumns + " FROM contacts"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "email"
	allowedSorts := map[string]bool{
		"email":              true,
		"relationship_score": true,
		"mail_count":         true,
		"last_contact_at":    true,
	}
	if allowedSorts[f.SortBy] {
		sortBy = f.SortBy
	}
	direction := "ASC"
	if f.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func scanContact(row rowScanner) (model.Contact, error) {
	var (
		c               model.Contact
		notes, accounts string
		lastContact     sql.NullTime
	)

	err := row.Scan(
		&c.Email, &c.Name, &c.DefaultTone, &c.RelationshipScore, &c.MailCount,
		&notes, &lastContact, &accounts, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, err
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("scanning contact row: %w", err)
	}

	if lastContact.Valid {
		t := lastContact.Time
		c.LastContactAt = &t
	}
	if err := decodeJSON(notes, "ai_notes", &c.AINotes); err != nil {
		return model.Contact{}, err
	}
	if err := decodeJSON(accounts, "accounts", &c.Accounts); err != nil {
		return model.Contact{}, err
	}
	return c, nil
}
