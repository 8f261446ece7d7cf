package conversation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/conversation"
	"github.com/nhle/mail-triage/internal/logging"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/tests/testutil"
)

var base = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.Store, msgs ...model.Message) {
	t.Helper()
	for _, m := range msgs {
		if m.AccountID == "" {
			m.AccountID = "acct-1"
		}
		if m.Direction == "" {
			m.Direction = model.DirectionInbound
		}
		if m.Status == "" {
			m.Status = model.StatusReplied
		}
		_, err := s.InsertMessage(context.Background(), m)
		require.NoError(t, err)
	}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.MessageID
	}
	return out
}

func invoiceMessages() []model.Message {
	return []model.Message{
		{MessageID: "m1", Subject: "Invoice #4", CreatedAt: base},
		{MessageID: "m2", Subject: "Re: Invoice #4", InReplyTo: "m1", References: []string{"m1"},
			Direction: model.DirectionOutbound, CreatedAt: base.Add(time.Hour)},
		{MessageID: "m3", Subject: "Re: Invoice #4", InReplyTo: "m2", References: []string{"m1", "m2"},
			CreatedAt: base.Add(2 * time.Hour)},
		{MessageID: "m4", Subject: "RE: Invoice #4", InReplyTo: "m3", References: []string{"m1", "m2", "m3"},
			Status: model.StatusWaitingApproval, CreatedAt: base.Add(3 * time.Hour)},
		{MessageID: "x1", Subject: "Invoice #4", CreatedAt: base.Add(30 * time.Minute)},
	}
}

func TestThreadFollowsLinkageInBothDirections(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s, invoiceMessages()...)
	svc := conversation.NewService(s, logging.Discard())
	ctx := context.Background()

	for _, start := range []string{"m1", "m2", "<m4>"} {
		got, err := svc.Thread(ctx, start)
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(got), "starting from %s", start)
	}

	got, err := svc.Thread(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, ids(got))
}

func TestThreadFollowsChainWithoutReferences(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s,
		model.Message{MessageID: "a", CreatedAt: base},
		model.Message{MessageID: "b", InReplyTo: "a", CreatedAt: base.Add(time.Minute)},
		model.Message{MessageID: "c", InReplyTo: "b", CreatedAt: base.Add(2 * time.Minute)},
		model.Message{MessageID: "d", InReplyTo: "c", CreatedAt: base.Add(3 * time.Minute)},
	)
	svc := conversation.NewService(s, logging.Discard())

	got, err := svc.Thread(context.Background(), "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))

	got, err = svc.Thread(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))
}

func TestThreadSeedsFromSubjectIndex(t *testing.T) {
	s := testutil.NewTestStore(t)

	// Longer than the hop limit: only the same-subject seed reaches the start.
	const n = 40
	var chain []model.Message
	for i := 0; i < n; i++ {
		m := model.Message{
			MessageID:         fmt.Sprintf("c%02d", i),
			Subject:           "Re: Rollout",
			SubjectNormalized: "rollout",
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}
		if i < 3 {
			m.Subject, m.SubjectNormalized = "Kickoff", "kickoff"
		}
		if i > 0 {
			m.InReplyTo = fmt.Sprintf("c%02d", i-1)
		}
		chain = append(chain, m)
	}
	seed(t, s, chain...)
	seed(t, s, model.Message{MessageID: "stray", Subject: "Rollout", SubjectNormalized: "rollout",
		CreatedAt: base.Add(time.Hour)})

	svc := conversation.NewService(s, logging.Discard())
	got, err := svc.Thread(context.Background(), "c39")
	require.NoError(t, err)
	require.Len(t, got, n)
	assert.Equal(t, "c00", got[0].MessageID)
	assert.Equal(t, "c39", got[n-1].MessageID)
	assert.NotContains(t, ids(got), "stray")

	got, err = svc.Thread(context.Background(), "stray")
	require.NoError(t, err)
	assert.Equal(t, []string{"stray"}, ids(got))
}

func TestThreadUnknownMessage(t *testing.T) {
	svc := conversation.NewService(testutil.NewTestStore(t), logging.Discard())
	_, err := svc.Thread(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConversationsGroupsByLinkage(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s, invoiceMessages()...)
	seed(t, s, model.Message{MessageID: "z1", AccountID: "acct-2", CreatedAt: base.Add(5 * time.Hour)})
	svc := conversation.NewService(s, logging.Discard())
	ctx := context.Background()

	groups, err := svc.Conversations(ctx, "acct-1", 0)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(groups[0]))
	assert.Equal(t, []string{"x1"}, ids(groups[1]))

	groups, err = svc.Conversations(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"z1"}, ids(groups[0]))

	groups, err = svc.Conversations(ctx, "acct-1", 2)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(groups[0]))
	assert.Equal(t, []string{"x1"}, ids(groups[1]))

	groups, err = svc.Conversations(ctx, "acct-1", 10)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}
