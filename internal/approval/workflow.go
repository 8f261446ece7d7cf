package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/msgid"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/internal/thread"
)

// Drafter writes a reply in the given tone.
type Drafter interface {
	Draft(ctx context.Context, body, tone string) (string, error)
}

// Workflow applies operator actions to queued messages.
type Workflow struct {
	store    store.Store
	dispatch *Dispatcher
	drafter  Drafter
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewWorkflow returns a Workflow. drafter is only used by ForceReply.
func NewWorkflow(
	s store.Store,
	dispatch *Dispatcher,
	drafter Drafter,
	log logrus.FieldLogger,
) *Workflow {
	return &Workflow{store: s, dispatch: dispatch, drafter: drafter, log: log, now: time.Now}
}

// Approve sends the queued reply, optionally with an edited body.
func (w *Workflow) Approve(ctx context.Context, messageID, editedBody string) (*model.Message, error) {
	return w.dispatch.Dispatch(ctx, messageID, editedBody)
}

// Cancel takes a message out of the approval queue.
func (w *Workflow) Cancel(ctx context.Context, messageID string) error {
	now := w.now()
	return w.transition(ctx, messageID, model.StatusCanceled, store.MessageUpdate{HandledAt: &now})
}

// Restore puts a canceled message back into the approval queue.
func (w *Workflow) Restore(ctx context.Context, messageID string) error {
	return w.transition(ctx, messageID, model.StatusWaitingApproval, store.MessageUpdate{})
}

// Reject records a reject decision and cancels the message. Tasks still
// waiting for approval on it are rejected too.
func (w *Workflow) Reject(ctx context.Context, messageID string) error {
	messageID = msgid.Normalize(messageID)
	now := w.now()
	reject := model.DecisionReject
	err := w.transition(ctx, messageID, model.StatusCanceled, store.MessageUpdate{
		Decision:  &reject,
		HandledAt: &now,
	})
	if err != nil {
		return err
	}

	waiting := model.TaskWaitingApproval
	tasks, err := w.store.GetTasks(ctx, store.TaskFilter{MessageID: &messageID, Status: &waiting})
	if err != nil {
		return fmt.Errorf("loading tasks for %s: %w", messageID, err)
	}
	for _, t := range tasks {
		if err := w.store.UpdateTaskStatus(ctx, t.ID, model.TaskRejected, false); err != nil {
			return err
		}
	}
	return nil
}

// UpdateDraft replaces the reply draft of a queued or composer message.
func (w *Workflow) UpdateDraft(ctx context.Context, messageID, body string) error {
	messageID = msgid.Normalize(messageID)
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("updating draft for %s: empty body", messageID)
	}

	msg, err := w.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	switch msg.Status {
	case model.StatusWaitingApproval:
		return w.store.UpdateMessage(ctx, messageID, store.MessageUpdate{
			FromStatus: &msg.Status,
			ReplyDraft: &body,
		})
	case model.StatusDraft:
		// Composer drafts keep their text in Body.
		return w.store.UpdateMessage(ctx, messageID, store.MessageUpdate{
			FromStatus: &msg.Status,
			Body:       &body,
		})
	default:
		return fmt.Errorf("%w: cannot edit the draft of a %s message", ErrInvalidTransition, msg.Status)
	}
}

// ForceReply overrides classification: a fresh formal draft is generated
// and the message re-enters the queue regardless of its status.
func (w *Workflow) ForceReply(ctx context.Context, messageID string) (*model.Message, error) {
	messageID = msgid.Normalize(messageID)
	msg, err := w.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Direction != model.DirectionInbound {
		return nil, fmt.Errorf("%w: only received mail can be forced into the queue", ErrInvalidTransition)
	}

	draft, err := w.drafter.Draft(ctx, msg.Body, model.ToneFormal)
	if err != nil {
		w.log.WithError(err).WithField("message_id", messageID).Warn("forced draft failed")
		draft = model.DraftUnavailable
	}

	status := model.StatusWaitingApproval
	forced := true
	if err := w.store.UpdateMessage(ctx, messageID, store.MessageUpdate{
		Status:     &status,
		ReplyDraft: &draft,
		Forced:     &forced,
	}); err != nil {
		return nil, err
	}

	msg.Status = status
	msg.ReplyDraft = draft
	msg.Forced = forced
	return msg, nil
}

// NextPending returns the oldest message awaiting approval, optionally for
// one account. store.ErrNotFound means the queue is empty.
func (w *Workflow) NextPending(ctx context.Context, accountID string) (*model.Message, error) {
	msgs, err := w.Pending(ctx, accountID, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, store.ErrNotFound
	}
	return &msgs[0], nil
}

// Pending lists inbound messages awaiting approval, oldest first. An empty
// accountID covers every account; limit <= 0 lists all of them.
func (w *Workflow) Pending(ctx context.Context, accountID string, limit int) ([]model.Message, error) {
	status := model.StatusWaitingApproval
	dir := model.DirectionInbound
	f := store.MessageFilter{
		Status:    &status,
		Direction: &dir,
		SortBy:    "created_at",
		Limit:     limit,
	}
	if accountID != "" {
		f.AccountID = &accountID
	}

	msgs, err := w.store.GetMessages(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("loading approval queue: %w", err)
	}
	return msgs, nil
}

// Draft is the operator input for a composer-authored message.
type Draft struct {
	AccountID string
	To        string
	Subject   string
	Body      string

	// InReplyTo threads the draft under an existing message when set.
	InReplyTo string
}

// SaveDraft stores a new composer message with status DRAFT.
func (w *Workflow) SaveDraft(ctx context.Context, d Draft) (*model.Message, error) {
	account, err := w.store.GetAccount(ctx, d.AccountID)
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", d.AccountID, err)
	}

	msg := model.Message{
		MessageID: msgid.New(account.Domain()),
		Subject:   strings.TrimSpace(d.Subject),
		Body:      d.Body,
		AccountID: account.ID,
		UserEmail: strings.ToLower(account.Email),
		From:      strings.ToLower(account.Email),
		To:        strings.ToLower(strings.TrimSpace(d.To)),
		Direction: model.DirectionOutbound,
		Status:    model.StatusDraft,
		CreatedAt: w.now(),
	}

	if d.InReplyTo != "" {
		parent, err := w.store.GetMessage(ctx, msgid.Normalize(d.InReplyTo))
		if err != nil {
			return nil, fmt.Errorf("loading parent %s: %w", d.InReplyTo, err)
		}
		msg.InReplyTo = parent.MessageID
		msg.References = msgid.Merge(parent.References, parent.MessageID)
		msg.Tags = parent.Tags
		if msg.Subject == "" {
			msg.Subject = replySubject(parent.Subject)
		}
		if msg.To == "" {
			msg.To = parent.From
		}
	}
	msg.SubjectNormalized = thread.NormalizeSubject(msg.Subject)

	inserted, err := w.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("saving draft %s: %w", msg.MessageID, store.ErrConflict)
	}
	return &msg, nil
}

// SendDraft delivers a DRAFT message and marks it SENT.
func (w *Workflow) SendDraft(ctx context.Context, messageID string) (*model.Message, error) {
	return w.dispatch.sendDraft(ctx, messageID)
}

// DeleteDraft discards a DRAFT message. Other messages cannot be deleted.
func (w *Workflow) DeleteDraft(ctx context.Context, messageID string) error {
	messageID = msgid.Normalize(messageID)
	msg, err := w.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.Status != model.StatusDraft {
		return fmt.Errorf("%w: %s is %s, not a draft", ErrInvalidTransition, messageID, msg.Status)
	}
	return w.store.DeleteMessage(ctx, messageID)
}

// transition moves a message to status `to` when the lifecycle allows it.
// The update is guarded on the status that was read, so a concurrent change
// surfaces as store.ErrConflict.
func (w *Workflow) transition(
	ctx context.Context, messageID string, to model.Status, u store.MessageUpdate,
) error {
	messageID = msgid.Normalize(messageID)
	msg, err := w.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !model.CanTransition(msg.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, msg.Status, to)
	}

	from := msg.Status
	u.FromStatus = &from
	u.Status = &to
	if err := w.store.UpdateMessage(ctx, messageID, u); err != nil {
		return err
	}

	w.log.WithFields(logrus.Fields{
		"message_id": messageID,
		"from":       from,
		"to":         to,
	}).Info("status changed")
	return nil
}

// IsQueueEmpty reports whether err from NextPending means nothing is waiting.
func IsQueueEmpty(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
