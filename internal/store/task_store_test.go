package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/tests/testutil"
)

func TestTaskLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	due := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateTask(ctx, model.Task{
		ID:        "t1",
		AccountID: "acct-1",
		Title:     "Pay invoice",
		DueDate:   &due,
		Status:    model.TaskWaitingApproval,
		MessageID: "m1",
	}))
	assert.Error(t, s.CreateTask(ctx, model.Task{Title: "  "}))

	msg := "m1"
	tasks, err := s.GetTasks(ctx, store.TaskFilter{MessageID: &msg})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].DueDate)
	assert.True(t, due.Equal(*tasks[0].DueDate))
	assert.False(t, tasks[0].IsApproved)

	require.NoError(t, s.UpdateTaskStatus(ctx, "t1", model.TaskConfirmed, true))
	confirmed := model.TaskConfirmed
	tasks, err = s.GetTasks(ctx, store.TaskFilter{Status: &confirmed})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsApproved)

	assert.ErrorIs(t, s.UpdateTaskStatus(ctx, "nope", model.TaskRejected, false), store.ErrNotFound)
}
