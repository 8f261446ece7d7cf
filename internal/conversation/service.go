// Package conversation serves thread and dashboard views of stored mail.
package conversation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/msgid"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/internal/thread"
)

const (
	// maxExpansion bounds how many linkage hops Thread follows in the store.
	maxExpansion = 32

	// maxSubjectMates bounds the same-subject messages loaded to seed a
	// thread before linkage expansion.
	maxSubjectMates = 500

	// conversationPage is how many recent messages Conversations reads per
	// query when a limit is given.
	conversationPage = 200
)

// Service answers conversation queries. Threads are always derived from
// message-id linkage, never from subjects.
type Service struct {
	store store.Store
	log   logrus.FieldLogger
}

// NewService returns a Service over s.
func NewService(s store.Store, log logrus.FieldLogger) *Service {
	return &Service{store: s, log: log}
}

// Thread returns the conversation containing messageID, oldest first.
func (s *Service) Thread(ctx context.Context, messageID string) ([]model.Message, error) {
	messageID = msgid.Normalize(messageID)

	target, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return s.threadOf(ctx, *target, "")
}

// Conversations groups an account's stored mail into threads, most recently
// active first. limit <= 0 returns every thread.
func (s *Service) Conversations(ctx context.Context, accountID string, limit int) ([][]model.Message, error) {
	if limit <= 0 {
		f := store.MessageFilter{}
		if accountID != "" {
			f.AccountID = &accountID
		}
		msgs, err := s.store.GetMessages(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("loading messages: %w", err)
		}
		return thread.Group(msgs), nil
	}

	// Walking newest first, the first unassigned message of a thread is its
	// newest one, so groups come out ordered by last activity.
	var groups [][]model.Message
	assigned := make(map[string]bool)
	for offset := 0; len(groups) < limit; offset += conversationPage {
		f := store.MessageFilter{
			SortBy:   "created_at",
			SortDesc: true,
			Limit:    conversationPage,
			Offset:   offset,
		}
		if accountID != "" {
			f.AccountID = &accountID
		}
		recent, err := s.store.GetMessages(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("loading messages: %w", err)
		}

		for _, m := range recent {
			if assigned[m.MessageID] {
				continue
			}
			conv, err := s.threadOf(ctx, m, accountID)
			if err != nil {
				return nil, err
			}
			for _, c := range conv {
				assigned[c.MessageID] = true
			}
			groups = append(groups, conv)
			if len(groups) == limit {
				break
			}
		}
		if len(recent) < conversationPage {
			break
		}
	}
	return groups, nil
}

// threadOf reconstructs the conversation around target. Same-subject mail
// from the target's account is loaded first through the subject index; the
// part of it linked to the target seeds the hop-by-hop linkage expansion,
// which picks up members whose subject changed. Only linkage joins messages.
// A non-empty accountID drops candidates from other accounts.
func (s *Service) threadOf(ctx context.Context, target model.Message, accountID string) ([]model.Message, error) {
	seed := []model.Message{target}
	if key := target.SubjectNormalized; key != "" {
		mates, err := s.store.GetMessages(ctx, store.MessageFilter{
			AccountID:         &target.AccountID,
			SubjectNormalized: &key,
			SortBy:            "created_at",
			Limit:             maxSubjectMates,
		})
		if err != nil {
			return nil, fmt.Errorf("loading messages with subject %q: %w", key, err)
		}
		if linked := thread.Reconstruct(append(mates, target), target.MessageID); len(linked) > 0 {
			seed = linked
		}
	}

	candidates, err := s.expand(ctx, seed)
	if err != nil {
		return nil, err
	}
	if accountID != "" {
		kept := candidates[:0]
		for _, m := range candidates {
			if m.AccountID == accountID {
				kept = append(kept, m)
			}
		}
		candidates = kept
	}
	return thread.Reconstruct(candidates, target.MessageID), nil
}

// expand collects every stored message reachable from seed through
// in-reply-to and references, querying the store hop by hop. seed must not
// be empty.
func (s *Service) expand(ctx context.Context, seed []model.Message) ([]model.Message, error) {
	start := seed[0]
	found := make(map[string]model.Message, len(seed))
	queried := make(map[string]bool)

	var frontier []string
	for _, m := range seed {
		found[m.MessageID] = m
		frontier = append(frontier, m.MessageID)
		frontier = append(frontier, m.LinkedIDs()...)
	}
	for round := 0; len(frontier) > 0; round++ {
		if round == maxExpansion {
			s.log.WithField("message_id", start.MessageID).Warn("thread expansion limit reached")
			break
		}

		var ids []string
		for _, id := range frontier {
			id = msgid.Normalize(id)
			if id != "" && !queried[id] {
				queried[id] = true
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			break
		}

		linked, err := s.store.GetLinkedMessages(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("loading linked messages: %w", err)
		}

		frontier = frontier[:0]
		for _, m := range linked {
			if _, ok := found[m.MessageID]; ok {
				continue
			}
			found[m.MessageID] = m
			frontier = append(frontier, m.MessageID)
			frontier = append(frontier, m.LinkedIDs()...)
		}
	}

	out := make([]model.Message, 0, len(found))
	for _, m := range found {
		out = append(out, m)
	}
	return out, nil
}
