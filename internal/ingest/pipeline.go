// Package ingest turns unread mailbox messages into stored, enriched,
// reply-ready records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/ai"
	"github.com/nhle/mail-triage/internal/contact"
	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/mailparse"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/source"
	"github.com/nhle/mail-triage/internal/store"
)

// Classifier decides whether a message needs a reply. It never fails.
type Classifier interface {
	Classify(ctx context.Context, mail string) model.Classification
}

// Enricher extracts structured metadata from a message body.
type Enricher interface {
	Enrich(ctx context.Context, body string, catalog []model.Tag) (model.Enrichment, error)
}

// Drafter writes a reply in the given tone.
type Drafter interface {
	Draft(ctx context.Context, body, tone string) (string, error)
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Store      store.Store
	Dialer     source.Dialer
	Cipher     credential.Cipher
	Classifier Classifier
	Enricher   Enricher
	Drafter    Drafter
	Embedder   ai.Embedder
	Ledger     *contact.Ledger
}

// Options tunes link generation and the sent-mailbox window.
type Options struct {
	// LinkBase prefixes attachment and inline-image URLs.
	LinkBase string

	SentLookback time.Duration
	SentLimit    int
}

// Pipeline ingests mail for one account per call. It holds no mutable state,
// so distinct accounts may be polled concurrently.
type Pipeline struct {
	deps Deps
	opts Options
	log  logrus.FieldLogger
	now  func() time.Time
}

// New returns a Pipeline.
func New(deps Deps, opts Options, log logrus.FieldLogger) *Pipeline {
	if opts.SentLookback <= 0 {
		opts.SentLookback = 24 * time.Hour
	}
	if opts.SentLimit <= 0 {
		opts.SentLimit = 10
	}
	return &Pipeline{deps: deps, opts: opts, log: log, now: time.Now}
}

// errSkipped marks a message that was deliberately not ingested.
var errSkipped = errors.New("skipped")

// Poll ingests every unread inbox message of account and returns how many
// new messages were stored. A message is marked seen only once it is stored,
// recognised as a duplicate, or found unreadable; any other failure leaves it
// unread for the next cycle. Only session-level failures are returned.
func (p *Pipeline) Poll(ctx context.Context, account model.Account) (int, error) {
	log := p.log.WithFields(logrus.Fields{"account": account.Email, "stage": "inbox"})

	sess, err := p.open(ctx, account)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.WithError(err).Debug("closing mailbox session")
		}
	}()

	uids, err := sess.SearchUnseen(ctx)
	if err != nil {
		return 0, fmt.Errorf("searching unread mail for %s: %w", account.Email, err)
	}
	if len(uids) == 0 {
		return 0, nil
	}

	catalog, err := p.deps.Store.GetTags(ctx)
	if err != nil {
		log.WithError(err).Warn("loading tag catalog, enriching without tags")
	}

	stored := 0
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		raw, err := sess.Fetch(ctx, uid)
		if err != nil {
			log.WithError(err).WithField("uid", uid).Warn("fetching message")
			continue
		}

		id, err := p.ingestInbound(ctx, account, raw, catalog)
		var parseErr *mailparse.ParseError
		switch {
		case errors.Is(err, errSkipped):
		case errors.As(err, &parseErr):
			log.WithError(err).WithField("uid", uid).Warn("unreadable message, skipping")
		case err != nil:
			// Left unseen so the next cycle retries it.
			log.WithError(err).WithField("uid", uid).Warn("ingesting message")
			continue
		default:
			stored++
			log.WithField("message_id", id).Info("message ingested")
		}

		if err := sess.MarkSeen(ctx, uid); err != nil {
			log.WithError(err).WithField("uid", uid).Warn("marking message seen")
		}
	}

	return stored, nil
}

// PollSent mirrors recently sent mail into the store as outbound messages
// so replies written outside the queue still join their conversations.
func (p *Pipeline) PollSent(ctx context.Context, account model.Account) (int, error) {
	log := p.log.WithFields(logrus.Fields{"account": account.Email, "stage": "sent"})

	sess, err := p.open(ctx, account)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.WithError(err).Debug("closing mailbox session")
		}
	}()

	uids, err := sess.SearchSent(ctx, p.now().Add(-p.opts.SentLookback))
	if err != nil {
		return 0, fmt.Errorf("searching sent mail for %s: %w", account.Email, err)
	}
	if len(uids) > p.opts.SentLimit {
		uids = uids[len(uids)-p.opts.SentLimit:]
	}

	stored := 0
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		raw, err := sess.FetchSent(ctx, uid)
		if err != nil {
			log.WithError(err).WithField("uid", uid).Warn("fetching sent message")
			continue
		}

		id, err := p.ingestSent(ctx, account, raw)
		switch {
		case errors.Is(err, errSkipped):
		case err != nil:
			log.WithError(err).WithField("uid", uid).Warn("ingesting sent message")
		default:
			stored++
			log.WithField("message_id", id).Debug("sent message recorded")
		}
	}

	return stored, nil
}

func (p *Pipeline) open(ctx context.Context, account model.Account) (source.Session, error) {
	password, err := p.deps.Cipher.Decrypt(account.CredentialRef)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials for %s: %w", account.Email, err)
	}
	return p.deps.Dialer.Dial(ctx, account, password)
}

func (p *Pipeline) ingestInbound(
	ctx context.Context,
	account model.Account,
	raw []byte,
	catalog []model.Tag,
) (string, error) {
	env, err := mailparse.Parse(raw, p.opts.LinkBase)
	if err != nil {
		return "", err
	}
	log := p.log.WithFields(logrus.Fields{"account": account.Email, "message_id": env.MessageID})

	if env.From == contact.NormalizeEmail(account.Email) {
		return "", errSkipped
	}

	exists, err := p.deps.Store.MessageExists(ctx, env.MessageID)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errSkipped
	}

	msg := env.Message(account, model.DirectionInbound, p.now())
	text := promptText(msg)

	msg.Classifier = p.deps.Classifier.Classify(ctx, text)
	if msg.Classifier.Fallback {
		log.WithField("stage", "classify").Warn("classification unusable, assuming a reply is needed")
	}

	tone := model.ToneFormal
	if msg.From != "" {
		c, err := p.deps.Ledger.Touch(ctx, msg.From, msg.FromName, account.ID, msg.Body)
		if err != nil {
			log.WithError(err).WithField("stage", "contact").Warn("updating contact")
		} else if c.DefaultTone != "" {
			tone = c.DefaultTone
		}
	}

	enrichment, err := p.deps.Enricher.Enrich(ctx, text, catalog)
	if err != nil {
		log.WithError(err).WithField("stage", "enrich").Warn("enrichment failed, using defaults")
	}
	msg.Enrichment = enrichment

	if inherited := p.threadTags(ctx, msg); len(inherited) > 0 {
		msg.Tags = inherited
	}

	if msg.Insight != "" && msg.From != "" {
		if err := p.deps.Ledger.AppendNote(ctx, msg.From, msg.Insight); err != nil {
			log.WithError(err).WithField("stage", "contact").Warn("appending contact note")
		}
	}

	if msg.Classifier.RequiresReply {
		msg.Status = model.StatusWaitingApproval
		draft, err := p.deps.Drafter.Draft(ctx, text, tone)
		if err != nil {
			log.WithError(err).WithField("stage", "draft").Warn("drafting reply")
			draft = model.DraftUnavailable
		}
		msg.ReplyDraft = draft
	} else {
		msg.Status = model.StatusIgnored
		msg.ReplyDraft = model.NoReplyPlaceholder
	}

	msg.Embedding = p.deps.Embedder.Embed(ctx, msg.Subject+"\n"+msg.Body)

	inserted, err := p.deps.Store.InsertMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	if !inserted {
		return "", errSkipped
	}

	if !p.parentRejected(ctx, msg) {
		if task, ok := model.TaskFromMessage(msg, p.now()); ok {
			if err := p.deps.Store.CreateTask(ctx, task); err != nil {
				log.WithError(err).WithField("stage", "task").Warn("creating task")
			}
		}
	}

	return msg.MessageID, nil
}

func (p *Pipeline) ingestSent(ctx context.Context, account model.Account, raw []byte) (string, error) {
	env, err := mailparse.Parse(raw, p.opts.LinkBase)
	if err != nil {
		return "", err
	}

	exists, err := p.deps.Store.MessageExists(ctx, env.MessageID)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errSkipped
	}

	msg := env.Message(account, model.DirectionOutbound, p.now())
	msg.Status = model.StatusSent
	msg.Tags = p.threadTags(ctx, msg)

	inserted, err := p.deps.Store.InsertMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	if !inserted {
		return "", errSkipped
	}
	return msg.MessageID, nil
}

// threadTags returns the tags of the first stored parent that has any. The
// first and last references are tried before in-reply-to.
func (p *Pipeline) threadTags(ctx context.Context, msg model.Message) []string {
	var candidates []string
	if n := len(msg.References); n > 0 {
		candidates = append(candidates, msg.References[0])
		if n > 1 {
			candidates = append(candidates, msg.References[n-1])
		}
	}
	if msg.InReplyTo != "" {
		candidates = append(candidates, msg.InReplyTo)
	}

	for _, id := range candidates {
		parent, err := p.deps.Store.GetMessage(ctx, id)
		if err != nil {
			continue
		}
		if len(parent.Tags) > 0 {
			return parent.Tags
		}
	}
	return nil
}

// parentRejected reports whether the operator rejected any message this one
// replies to.
func (p *Pipeline) parentRejected(ctx context.Context, msg model.Message) bool {
	for _, id := range msg.LinkedIDs() {
		parent, err := p.deps.Store.GetMessage(ctx, id)
		if err != nil {
			continue
		}
		if parent.Decision == model.DecisionReject {
			return true
		}
	}
	return false
}

// promptText is what the AI stages see: the subject line followed by the
// plain body.
func promptText(msg model.Message) string {
	if strings.TrimSpace(msg.Subject) == "" {
		return msg.Body
	}
	return "Subject: " + msg.Subject + "\n\n" + msg.Body
}
