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

// CreateTag inserts a new tag. A second tag with the same slug is rejected
// with ErrConflict.
func (s *SQLiteStore) CreateTag(ctx context.Context, tag model.Tag) error {
	if strings.TrimSpace(tag.Slug) == "" {
		return fmt.Errorf("tag slug must not be empty")
	}
	if strings.TrimSpace(tag.Name) == "" {
		return fmt.Errorf("tag name must not be empty")
	}
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (slug, name, description, color, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING`,
		tag.Slug, tag.Name, tag.Description, tag.Color, tag.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating tag %s: %w", tag.Slug, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("creating tag %s: %w", tag.Slug, ErrConflict)
	}
	return nil
}

// GetTag retrieves one tag by slug.
func (s *SQLiteStore) GetTag(ctx context.Context, slug string) (*model.Tag, error) {
	var t model.Tag
	err := s.db.GetContext(ctx, &t,
		"SELECT slug, name, description, color, created_at FROM tags WHERE slug = ?", slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting tag %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag %s: %w", slug, err)
	}
	return &t, nil
}

// GetTags retrieves the whole catalog ordered by name.
func (s *SQLiteStore) GetTags(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	err := s.db.SelectContext(ctx, &tags,
		"SELECT slug, name, description, color, created_at FROM tags ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag from the catalog. Messages keep the slug.
func (s *SQLiteStore) DeleteTag(ctx context.Context, slug string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tags WHERE slug = ?", slug)
	if err != nil {
		return fmt.Errorf("deleting tag %s: %w", slug, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting tag %s: %w", slug, ErrNotFound)
	}
	return nil
}
