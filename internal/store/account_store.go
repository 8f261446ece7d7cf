package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mail-triage/internal/model"
)

const accountColumns = `
	id, email, provider, imap_host, imap_port, smtp_host, smtp_port,
	credential_ref, signature, active, created_at`

// UpsertAccount inserts or replaces an account.
// If the account has no ID, a new UUID is generated.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, acct model.Account) error {
	if strings.TrimSpace(acct.Email) == "" {
		return fmt.Errorf("account email must not be empty")
	}
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, strings.ToLower(acct.Email), string(acct.Provider),
		acct.IMAPHost, acct.IMAPPort, acct.SMTPHost, acct.SMTPPort,
		acct.CredentialRef, acct.Signature, boolToInt(acct.Active), acct.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", acct.Email, err)
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.getAccount(ctx, "id", id)
}

// GetAccountByEmail retrieves an account by its mailbox address.
func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.getAccount(ctx, "email", strings.ToLower(email))
}

func (s *SQLiteStore) getAccount(ctx context.Context, column, value string) (*model.Account, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE "+column+" = ?", value)

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting account %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", value, err)
	}
	return &acct, nil
}

// GetAccounts lists accounts ordered by address.
func (s *SQLiteStore) GetAccounts(ctx context.Context, activeOnly bool) ([]model.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY email"

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// SetAccountActive enables or disables polling for an account.
func (s *SQLiteStore) SetAccountActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("updating account %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		acct     model.Account
		provider string
		active   int
	)
	err := row.Scan(
		&acct.ID, &acct.Email, &provider, &acct.IMAPHost, &acct.IMAPPort,
		&acct.SMTPHost, &acct.SMTPPort, &acct.CredentialRef, &acct.Signature,
		&active, &acct.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, err
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("scanning account row: %w", err)
	}
	acct.Provider = model.Provider(provider)
	acct.Active = active != 0
	return acct, nil
}
