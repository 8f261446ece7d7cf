// Package approval drives queued replies through review and delivery.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/msgid"
	"github.com/nhle/mail-triage/internal/source"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/internal/thread"
)

// Dispatcher sends approved replies and records them.
type Dispatcher struct {
	store  store.Store
	sender source.Sender
	cipher credential.Cipher
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewDispatcher returns a Dispatcher.
func NewDispatcher(
	s store.Store,
	sender source.Sender,
	cipher credential.Cipher,
	log logrus.FieldLogger,
) *Dispatcher {
	return &Dispatcher{store: s, sender: sender, cipher: cipher, log: log, now: time.Now}
}

// Dispatch sends the reply for a WAITING_APPROVAL message. editedBody
// replaces the stored draft when it is not blank. On success the original
// becomes REPLIED and the sent reply is returned as a stored outbound
// message. On failure nothing is written and a *DispatchError is returned.
func (d *Dispatcher) Dispatch(
	ctx context.Context, messageID, editedBody string,
) (*model.Message, error) {
	messageID = msgid.Normalize(messageID)
	orig, err := d.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, d.fail(messageID, "message not found in the queue", err)
	}
	if orig.Status != model.StatusWaitingApproval {
		return nil, d.fail(messageID,
			fmt.Sprintf("message is %s, only WAITING_APPROVAL mail can be sent", orig.Status),
			ErrInvalidTransition)
	}

	body := strings.TrimSpace(editedBody)
	if body == "" {
		body = strings.TrimSpace(orig.ReplyDraft)
	}
	if body == "" || body == model.NoReplyPlaceholder || body == model.DraftUnavailable {
		return nil, d.fail(messageID, "reply is empty; edit the draft before sending", nil)
	}

	account, err := d.store.GetAccount(ctx, orig.AccountID)
	if err != nil {
		return nil, d.fail(messageID, "owning account is missing; re-add it with `account add`", err)
	}

	now := d.now()
	reply := model.Message{
		MessageID:  msgid.New(account.Domain()),
		InReplyTo:  orig.MessageID,
		References: msgid.Merge(orig.References, orig.MessageID),
		Subject:    replySubject(orig.Subject),
		Body:       withSignature(body, account.Signature),
		AccountID:  account.ID,
		UserEmail:  strings.ToLower(account.Email),
		From:       strings.ToLower(account.Email),
		To:         orig.From,
		Direction:  model.DirectionOutbound,
		Status:     model.StatusSent,
		Decision:   model.DecisionNone,
		Enrichment: model.Enrichment{Tags: orig.Tags},
		CreatedAt:  now,
	}
	reply.SubjectNormalized = thread.NormalizeSubject(reply.Subject)

	if err := d.deliver(ctx, orig.MessageID, *account, reply); err != nil {
		return nil, err
	}

	log := d.log.WithFields(logrus.Fields{"account": account.Email, "message_id": orig.MessageID})

	waiting := model.StatusWaitingApproval
	replied := model.StatusReplied
	approve := model.DecisionApprove
	err = d.store.UpdateMessage(ctx, orig.MessageID, store.MessageUpdate{
		FromStatus: &waiting,
		Status:     &replied,
		Decision:   &approve,
		HandledAt:  &now,
	})
	if err != nil {
		// The mail is already out, so the reply is still recorded.
		log.WithError(err).Error("reply sent but original could not be marked REPLIED")
	}

	if _, err := d.store.InsertMessage(ctx, reply); err != nil {
		log.WithError(err).Error("reply sent but could not be stored")
	}

	if orig.Decision != model.DecisionReject {
		d.createTask(ctx, *orig, log)
	}

	log.WithField("reply_id", reply.MessageID).Info("reply dispatched")
	return &reply, nil
}

// sendDraft delivers a composer-authored DRAFT message.
func (d *Dispatcher) sendDraft(ctx context.Context, messageID string) (*model.Message, error) {
	messageID = msgid.Normalize(messageID)
	draft, err := d.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, d.fail(messageID, "draft not found", err)
	}
	if draft.Status != model.StatusDraft {
		return nil, d.fail(messageID, fmt.Sprintf("message is %s, not a draft", draft.Status), ErrInvalidTransition)
	}
	if strings.TrimSpace(draft.To) == "" {
		return nil, d.fail(messageID, "draft has no recipient", nil)
	}
	if strings.TrimSpace(draft.Body) == "" {
		return nil, d.fail(messageID, "draft body is empty", nil)
	}

	account, err := d.store.GetAccount(ctx, draft.AccountID)
	if err != nil {
		return nil, d.fail(messageID, "owning account is missing; re-add it with `account add`", err)
	}

	out := *draft
	out.Body = withSignature(draft.Body, account.Signature)
	if err := d.deliver(ctx, messageID, *account, out); err != nil {
		return nil, err
	}

	now := d.now()
	from := model.StatusDraft
	sent := model.StatusSent
	if err := d.store.UpdateMessage(ctx, messageID, store.MessageUpdate{
		FromStatus: &from,
		Status:     &sent,
		HandledAt:  &now,
	}); err != nil {
		d.log.WithError(err).WithField("message_id", messageID).Error("draft sent but not marked SENT")
	}

	// A draft written as a reply settles the queued parent.
	if draft.InReplyTo != "" {
		waiting := model.StatusWaitingApproval
		replied := model.StatusReplied
		err := d.store.UpdateMessage(ctx, draft.InReplyTo, store.MessageUpdate{
			FromStatus: &waiting,
			Status:     &replied,
			HandledAt:  &now,
		})
		if err != nil && !errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrNotFound) {
			d.log.WithError(err).WithField("message_id", draft.InReplyTo).Warn("marking parent REPLIED")
		}
	}

	out.Status = sent
	out.HandledAt = &now
	return &out, nil
}

// deliver resolves the account password and hands msg to the sender.
// Failures are reported against ref, the id the operator acted on.
func (d *Dispatcher) deliver(ctx context.Context, ref string, account model.Account, msg model.Message) error {
	password, err := d.cipher.Decrypt(account.CredentialRef)
	if err != nil {
		return d.fail(ref, "stored mailbox password cannot be decrypted; check credential.key or re-add the account", err)
	}

	err = d.sender.Send(ctx, account, password, &source.Outgoing{
		From:       strings.ToLower(account.Email),
		To:         msg.To,
		Subject:    msg.Subject,
		Body:       msg.Body,
		MessageID:  msg.MessageID,
		InReplyTo:  msg.InReplyTo,
		References: msg.References,
		Date:       msg.CreatedAt,
	})
	switch {
	case err == nil:
		return nil
	case source.IsConnectionError(err):
		return d.fail(ref, "could not reach or log in to the SMTP server; check the account host, port, and password", err)
	default:
		return d.fail(ref, "the SMTP server rejected the message; try again later", err)
	}
}

// createTask records the action item of orig unless one already exists.
func (d *Dispatcher) createTask(ctx context.Context, orig model.Message, log logrus.FieldLogger) {
	task, ok := model.TaskFromMessage(orig, d.now())
	if !ok {
		return
	}

	existing, err := d.store.GetTasks(ctx, store.TaskFilter{MessageID: &orig.MessageID, Limit: 1})
	if err != nil {
		log.WithError(err).Warn("checking existing tasks")
		return
	}
	if len(existing) > 0 {
		return
	}

	if err := d.store.CreateTask(ctx, task); err != nil {
		log.WithError(err).Warn("creating task")
	}
}

func (d *Dispatcher) fail(messageID, reason string, err error) error {
	d.log.WithError(err).WithField("message_id", messageID).Warn(reason)
	return &DispatchError{MessageID: messageID, Reason: reason, Err: err}
}

// replySubject prefixes "Re: " unless the subject already carries it.
func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

func withSignature(body, signature string) string {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return body
	}
	return body + "\n\n" + signature
}
