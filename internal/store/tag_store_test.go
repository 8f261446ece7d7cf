package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/tests/testutil"
)

func TestTagCatalog(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTag(ctx, model.Tag{Slug: "finance", Name: "Finance"}))
	require.NoError(t, s.CreateTag(ctx, model.Tag{Slug: "legal", Name: "Legal", Color: "#aa0000"}))

	err := s.CreateTag(ctx, model.Tag{Slug: "finance", Name: "Money"})
	assert.ErrorIs(t, err, store.ErrConflict)

	assert.Error(t, s.CreateTag(ctx, model.Tag{Slug: "", Name: "x"}))

	tags, err := s.GetTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "finance", tags[0].Slug)

	got, err := s.GetTag(ctx, "legal")
	require.NoError(t, err)
	assert.Equal(t, "#aa0000", got.Color)

	require.NoError(t, s.DeleteTag(ctx, "legal"))
	assert.ErrorIs(t, s.DeleteTag(ctx, "legal"), store.ErrNotFound)
}

func TestDeleteTagKeepsMessageSlugs(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTag(ctx, model.Tag{Slug: "finance", Name: "Finance"}))
	m := model.Message{MessageID: "m1", Status: model.StatusWaitingApproval, Enrichment: model.Enrichment{Tags: []string{"finance"}}}
	_, err := s.InsertMessage(ctx, m)
	require.NoError(t, err)

	require.NoError(t, s.DeleteTag(ctx, "finance"))

	got, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, got.Tags)
}
