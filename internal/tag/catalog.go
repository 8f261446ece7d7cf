// Package tag manages the label catalog that enrichment draws from.
package tag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
)

// ErrInvalidName is returned when a tag name yields an empty slug.
var ErrInvalidName = errors.New("tag name produces an empty slug")

// Filter keeps only slugs present in catalog, in their original order and
// without duplicates. Dropped slugs are returned separately so callers can
// log them.
func Filter(slugs []string, catalog []model.Tag) (kept, dropped []string) {
	known := make(map[string]bool, len(catalog))
	for _, t := range catalog {
		known[t.Slug] = true
	}

	seen := make(map[string]bool, len(slugs))
	for _, raw := range slugs {
		slug := strings.TrimSpace(raw)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		if known[slug] {
			kept = append(kept, slug)
		} else {
			dropped = append(dropped, slug)
		}
	}
	return kept, dropped
}

// Catalog wraps the tag store with slug derivation.
type Catalog struct {
	store store.Store
	log   logrus.FieldLogger
}

// NewCatalog returns a Catalog over s.
func NewCatalog(s store.Store, log logrus.FieldLogger) *Catalog {
	return &Catalog{store: s, log: log}
}

// Add creates a tag, deriving the slug from name.
func (c *Catalog) Add(ctx context.Context, name, description, color string) (model.Tag, error) {
	slug := Slugify(name)
	if slug == "" {
		return model.Tag{}, fmt.Errorf("adding tag %q: %w", name, ErrInvalidName)
	}

	t := model.Tag{
		Slug:        slug,
		Name:        strings.TrimSpace(name),
		Description: description,
		Color:       color,
	}
	if err := c.store.CreateTag(ctx, t); err != nil {
		return model.Tag{}, err
	}
	c.log.WithField("slug", slug).Info("tag created")
	return t, nil
}

// List returns the full catalog.
func (c *Catalog) List(ctx context.Context) ([]model.Tag, error) {
	return c.store.GetTags(ctx)
}

// Delete removes a tag from the catalog. Messages keep the slug.
func (c *Catalog) Delete(ctx context.Context, slug string) error {
	if err := c.store.DeleteTag(ctx, slug); err != nil {
		return err
	}
	c.log.WithField("slug", slug).Info("tag deleted")
	return nil
}
