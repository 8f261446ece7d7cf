package mailparse

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

const plainMessage = `From: "Bob Vendor" <Bob@Vendor.com>
To: me@example.com
Subject: Re: Invoice #4
Date: Mon, 02 Mar 2026 10:00:00 +0000
Message-ID: <m2@vendor.com>
In-Reply-To: <m1@example.com>
References: <m0@vendor.com>
 <m1@example.com>
Content-Type: text/plain; charset=utf-8

Please pay invoice 4 by Friday.
`

func TestParsePlain(t *testing.T) {
	e, err := Parse(crlf(plainMessage), "/ui")
	require.NoError(t, err)

	assert.Equal(t, "m2@vendor.com", e.MessageID)
	assert.False(t, e.Synthesized)
	assert.Equal(t, "m1@example.com", e.InReplyTo)
	assert.Equal(t, []string{"m0@vendor.com", "m1@example.com"}, e.References)
	assert.Equal(t, "Re: Invoice #4", e.Subject)
	assert.Equal(t, "bob@vendor.com", e.From)
	assert.Equal(t, "Bob Vendor", e.FromName)
	assert.Equal(t, "me@example.com", e.To)
	assert.Equal(t, "Please pay invoice 4 by Friday.", e.Body)
	assert.True(t, e.Date.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
	assert.Empty(t, e.Attachments)
}

func TestParseSynthesizesMissingID(t *testing.T) {
	raw := crlf("From: a@b.c\nSubject: hi\nContent-Type: text/plain\n\nbody\n")
	e, err := Parse(raw, "/ui")
	require.NoError(t, err)
	assert.True(t, e.Synthesized)
	assert.True(t, strings.HasPrefix(e.MessageID, "gen-"))
}

const multipartMessage = `From: carol@client.org
To: me@example.com
Subject: Proposal
Message-ID: <p1@client.org>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/related; boundary="rel"

--rel
Content-Type: text/html; charset=utf-8

<p>See chart</p><img src="cid:chart01@client.org">
--rel
Content-Type: image/png
Content-ID: <chart01@client.org>
Content-Disposition: inline
Content-Transfer-Encoding: base64

iVBORw0KGgo=
--rel--
--outer
Content-Type: application/pdf; name="offer 2026.pdf"
Content-Disposition: attachment; filename="offer 2026.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--outer--
`

func TestParseRewritesInlineAndIndexesAttachments(t *testing.T) {
	e, err := Parse(crlf(multipartMessage), "https://mail.example.com/ui/")
	require.NoError(t, err)

	assert.Contains(t, e.BodyHTML, `src="https://mail.example.com/ui/stream/p1@client.org/chart01@client.org"`)
	assert.NotContains(t, e.BodyHTML, "cid:")
	assert.NotEmpty(t, e.Body)

	require.Len(t, e.Attachments, 1)
	att := e.Attachments[0]
	assert.Equal(t, "offer 2026.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, 9, att.Size)
	assert.Equal(t, "https://mail.example.com/ui/download/p1@client.org/offer%202026.pdf", att.URL)
}

func TestEnvelopeMessage(t *testing.T) {
	e, err := Parse(crlf(plainMessage), "/ui")
	require.NoError(t, err)

	now := time.Now()
	acct := model.Account{ID: "a1", Email: "Me@Example.com"}
	m := e.Message(acct, model.DirectionInbound, now)

	assert.Equal(t, "m2@vendor.com", m.MessageID)
	assert.Equal(t, "invoice #4", m.SubjectNormalized)
	assert.Equal(t, "me@example.com", m.UserEmail)
	assert.Equal(t, "a1", m.AccountID)
	assert.Equal(t, model.DirectionInbound, m.Direction)
	assert.Equal(t, now, m.CreatedAt)
}

func TestParseErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	var err error = &ParseError{Err: inner}

	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, inner)
}
