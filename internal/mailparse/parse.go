// Package mailparse turns raw RFC 5322 bytes into the normalized fields the
// ingestion pipeline stores.
package mailparse

import (
	"bytes"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/msgid"
	"github.com/nhle/mail-triage/internal/thread"
)

// ParseError reports a message that could not be read at all. The pipeline
// skips such messages.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing message: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Envelope is the subset of a message the pipeline works with.
type Envelope struct {
	MessageID string
	// Synthesized is set when the message carried no Message-ID.
	Synthesized bool
	InReplyTo   string
	References  []string

	Subject  string
	From     string
	FromName string
	To       string
	Date     time.Time

	Body     string
	BodyHTML string

	Attachments []model.AttachmentRef

	// Warnings holds non-fatal problems reported by the MIME reader.
	Warnings []string
}

// Parse reads raw message bytes. Inline images referenced as cid: in the
// HTML body are rewritten to linkBase/stream/<id>/<cid>, and attachments are
// indexed with linkBase/download/<id>/<filename> URLs. Part contents are
// never retained.
func Parse(raw []byte, linkBase string) (*Envelope, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	e := &Envelope{
		MessageID: msgid.Normalize(env.GetHeader("Message-ID")),
		InReplyTo: firstID(env.GetHeader("In-Reply-To")),
		Subject:   strings.TrimSpace(env.GetHeader("Subject")),
		Body:      strings.TrimSpace(env.Text),
		BodyHTML:  env.HTML,
	}
	if e.MessageID == "" {
		e.MessageID = msgid.Synthesize()
		e.Synthesized = true
	}
	if refs := env.GetHeader("References"); refs != "" {
		e.References = msgid.Extract(refs)
	}

	if from := addressList(env, "From"); len(from) > 0 {
		e.From = strings.ToLower(from[0].Address)
		e.FromName = from[0].Name
	}
	if to := addressList(env, "To"); len(to) > 0 {
		addrs := make([]string, 0, len(to))
		for _, a := range to {
			addrs = append(addrs, strings.ToLower(a.Address))
		}
		e.To = strings.Join(addrs, ", ")
	}
	if date := env.GetHeader("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			e.Date = t
		}
	}

	base := strings.TrimRight(linkBase, "/")
	idPath := url.PathEscape(e.MessageID)

	cidLinks := make(map[string]string)
	for _, part := range append(append([]*enmime.Part{}, env.Inlines...), env.OtherParts...) {
		cid := strings.Trim(strings.TrimSpace(part.ContentID), "<>")
		if cid == "" {
			continue
		}
		cidLinks[cid] = fmt.Sprintf("%s/stream/%s/%s", base, idPath, url.PathEscape(cid))
	}
	for cid, link := range cidLinks {
		e.BodyHTML = strings.ReplaceAll(e.BodyHTML, "cid:"+cid, link)
	}

	for _, part := range append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...) {
		if part.FileName == "" {
			continue
		}
		e.Attachments = append(e.Attachments, model.AttachmentRef{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Size:        len(part.Content),
			URL:         fmt.Sprintf("%s/download/%s/%s", base, idPath, url.PathEscape(part.FileName)),
		})
	}

	for _, perr := range env.Errors {
		e.Warnings = append(e.Warnings, perr.Error())
	}

	return e, nil
}

// Message converts the envelope into a store record for account. Status and
// AI fields are left for the pipeline to fill in.
func (e *Envelope) Message(account model.Account, dir model.Direction, now time.Time) model.Message {
	return model.Message{
		MessageID:         e.MessageID,
		InReplyTo:         e.InReplyTo,
		References:        e.References,
		Subject:           e.Subject,
		SubjectNormalized: thread.NormalizeSubject(e.Subject),
		Body:              e.Body,
		BodyHTML:          e.BodyHTML,
		AccountID:         account.ID,
		UserEmail:         strings.ToLower(account.Email),
		From:              e.From,
		FromName:          e.FromName,
		To:                e.To,
		Direction:         dir,
		Attachments:       e.Attachments,
		CreatedAt:         now,
	}
}

func addressList(env *enmime.Envelope, header string) []*mail.Address {
	list, err := env.AddressList(header)
	if err != nil {
		return nil
	}
	var out []*mail.Address
	for _, a := range list {
		if a != nil && a.Address != "" {
			out = append(out, a)
		}
	}
	return out
}

// firstID returns the first identifier of an In-Reply-To value, which some
// clients fill with several.
func firstID(header string) string {
	if ids := msgid.Extract(header); len(ids) > 0 {
		return ids[0]
	}
	return ""
}
