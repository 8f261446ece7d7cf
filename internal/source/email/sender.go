package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/source"
)

const dialTimeout = 30 * time.Second

// SMTPSender delivers replies over SMTP. Port 465 uses implicit TLS;
// anything else is upgraded with STARTTLS.
type SMTPSender struct {
	// dial is swapped in tests.
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPSender returns a sender that dials real SMTP servers.
func NewSMTPSender() *SMTPSender {
	d := &net.Dialer{Timeout: dialTimeout}
	return &SMTPSender{dial: d.DialContext}
}

// Send composes msg and delivers it to msg.To.
func (s *SMTPSender) Send(
	ctx context.Context,
	account model.Account,
	password string,
	msg *source.Outgoing,
) error {
	body, err := Compose(msg)
	if err != nil {
		return err
	}

	addr := account.SMTPHost + ":" + account.SMTPPort

	conn, err := s.dial(ctx, "tcp", addr)
	if err != nil {
		return &source.ConnectionError{
			Account: account.Email,
			Op:      "dial " + addr,
			Err:     err,
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: account.SMTPHost}
	implicitTLS := account.SMTPPort == "465"
	if implicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, account.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if !implicitTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", account.Email, password, account.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return &source.ConnectionError{
			Account: account.Email,
			Op:      "smtp auth",
			Err:     err,
		}
	}

	return deliver(client, msg.From, msg.To, body)
}

// deliver sends a message using an already-authenticated SMTP client.
func deliver(client *smtp.Client, from, to string, body []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

// Compose renders an outgoing reply as a single-part text/plain message
// carrying the threading headers.
func Compose(msg *source.Outgoing) ([]byte, error) {
	var h mail.Header

	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Name: msg.FromName, Address: msg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	if msg.MessageID != "" {
		h.SetMessageID(msg.MessageID)
	}
	if msg.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{msg.InReplyTo})
	}
	if len(msg.References) > 0 {
		h.SetMsgIDList("References", msg.References)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}
