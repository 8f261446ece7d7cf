// Package contact keeps the per-correspondent relationship ledger.
package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
)

// Ledger records every mail exchanged with a correspondent.
type Ledger struct {
	store store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewLedger returns a Ledger over s.
func NewLedger(s store.Store, log logrus.FieldLogger) *Ledger {
	return &Ledger{store: s, log: log, now: time.Now}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Touch records one mail from email on behalf of accountID and returns the
// updated contact. An unknown address is created with the formal tone, the
// seed score, and a mail count of one.
func (l *Ledger) Touch(ctx context.Context, email, name, accountID, body string) (*model.Contact, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("touching contact: empty address")
	}
	now := l.now()

	existing, err := l.store.GetContact(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading contact %s: %w", email, err)
	}

	var c model.Contact
	if existing == nil {
		c = model.Contact{
			Email:             email,
			Name:              defaultName(name, email),
			DefaultTone:       model.ToneFormal,
			RelationshipScore: model.ScoreSeed,
			MailCount:         1,
			Accounts:          addAccount(nil, accountID),
			CreatedAt:         now,
		}
	} else {
		c = *existing
		c.RelationshipScore = Score(c.RelationshipScore, body, c.LastContactAt, now)
		c.MailCount++
		c.Accounts = addAccount(c.Accounts, accountID)
		if c.Name == "" {
			c.Name = defaultName(name, email)
		}
	}
	c.LastContactAt = &now

	if err := l.store.UpsertContact(ctx, c); err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"contact": email,
		"score":   c.RelationshipScore,
		"count":   c.MailCount,
	}).Debug("contact touched")
	return &c, nil
}

// AppendNote adds an insight to the contact's notes.
func (l *Ledger) AppendNote(ctx context.Context, email, note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}
	return l.store.AppendContactNote(ctx, NormalizeEmail(email), note)
}

// Tone returns the drafting tone for email, formal when unknown.
func (l *Ledger) Tone(ctx context.Context, email string) string {
	c, err := l.store.GetContact(ctx, NormalizeEmail(email))
	if err != nil || c.DefaultTone == "" {
		return model.ToneFormal
	}
	return c.DefaultTone
}

// List returns contacts, optionally restricted to one account.
func (l *Ledger) List(ctx context.Context, accountID string, limit int) ([]model.Contact, error) {
	f := store.ContactFilter{SortBy: "relationship_score", SortDesc: true, Limit: limit}
	if accountID != "" {
		f.AccountID = &accountID
	}
	return l.store.GetContacts(ctx, f)
}

func defaultName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

func addAccount(accounts []string, id string) []string {
	if id == "" {
		return accounts
	}
	for _, a := range accounts {
		if a == id {
			return accounts
		}
	}
	return append(accounts, id)
}
