package email

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/source"
)

const inboxName = "INBOX"

// sentFallbacks are tried in order when no mailbox advertises \Sent.
var sentFallbacks = []string{
	"Sent", "[Gmail]/Sent Mail", "Sent Items", "Sent Messages", "INBOX.Sent",
}

// IMAPDialer connects to IMAP servers with go-imap v2. Port 993 uses
// implicit TLS; anything else is upgraded with STARTTLS.
type IMAPDialer struct{}

// NewIMAPDialer returns a dialer for real IMAP servers.
func NewIMAPDialer() *IMAPDialer {
	return &IMAPDialer{}
}

// Dial establishes a connection, authenticates, and returns the session.
// Dial and login failures are reported as *source.ConnectionError.
func (d *IMAPDialer) Dial(
	ctx context.Context, account model.Account, password string,
) (source.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := account.IMAPHost + ":" + account.IMAPPort

	var client *imapclient.Client
	var err error

	if account.IMAPPort == "993" {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &source.ConnectionError{
			Account: account.Email,
			Op:      "dial " + addr,
			Err:     err,
		}
	}

	if err := client.Login(account.Email, password).Wait(); err != nil {
		_ = client.Close()
		return nil, &source.ConnectionError{
			Account: account.Email,
			Op:      "login",
			Err:     err,
		}
	}

	return &imapSession{client: client}, nil
}

// imapSession wraps an authenticated client and remembers the selected
// mailbox so repeated calls don't reselect.
type imapSession struct {
	client   *imapclient.Client
	selected string
	sent     string
}

func (s *imapSession) selectMailbox(name string) error {
	if s.selected == name {
		return nil
	}
	if _, err := s.client.Select(name, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", name, err)
	}
	s.selected = name
	return nil
}

func (s *imapSession) SearchUnseen(ctx context.Context) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.selectMailbox(inboxName); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	return s.search(criteria)
}

// Fetch reads the whole message with PEEK; the caller marks it seen once
// it has been stored.
func (s *imapSession) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.selectMailbox(inboxName); err != nil {
		return nil, err
	}
	return s.fetchRaw(uid, true)
}

func (s *imapSession) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.selectMailbox(inboxName); err != nil {
		return err
	}

	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := s.client.Store(imap.UIDSetNum(imap.UID(uid)), storeFlags, nil).Close(); err != nil {
		return fmt.Errorf("marking UID %d seen: %w", uid, err)
	}
	return nil
}

func (s *imapSession) SearchSent(
	ctx context.Context, since time.Time,
) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folder, err := s.sentMailbox()
	if err != nil {
		return nil, err
	}
	if err := s.selectMailbox(folder); err != nil {
		return nil, err
	}

	return s.search(&imap.SearchCriteria{Since: since})
}

func (s *imapSession) FetchSent(
	ctx context.Context, uid uint32,
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folder, err := s.sentMailbox()
	if err != nil {
		return nil, err
	}
	if err := s.selectMailbox(folder); err != nil {
		return nil, err
	}
	return s.fetchRaw(uid, true)
}

func (s *imapSession) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return fmt.Errorf("logging out: %w", err)
	}
	return s.client.Close()
}

func (s *imapSession) search(criteria *imap.SearchCriteria) ([]uint32, error) {
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.selected, err)
	}

	uids := data.AllUIDs()
	out := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		out = append(out, uint32(uid))
	}
	slices.Sort(out)
	return out, nil
}

func (s *imapSession) fetchRaw(uid uint32, peek bool) ([]byte, error) {
	bodySection := &imap.FetchItemBodySection{Peek: peek}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found in %s", uid, s.selected)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message UID %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}

	if err := fetchCmd.Close(); err != nil {
		return raw, fmt.Errorf("closing fetch: %w", err)
	}
	return raw, nil
}

// sentMailbox finds the sent folder by special-use attribute, then by
// well-known name. The result is cached for the session.
func (s *imapSession) sentMailbox() (string, error) {
	if s.sent != "" {
		return s.sent, nil
	}

	mailboxes, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return "", fmt.Errorf("listing mailboxes: %w", err)
	}

	names := make([]string, 0, len(mailboxes))
	attrs := make([][]imap.MailboxAttr, 0, len(mailboxes))
	for _, mb := range mailboxes {
		names = append(names, mb.Mailbox)
		attrs = append(attrs, mb.Attrs)
	}

	name, ok := pickSentMailbox(names, attrs)
	if !ok {
		return "", fmt.Errorf("no sent mailbox found")
	}
	s.sent = name
	return name, nil
}

// pickSentMailbox chooses the sent folder from a LIST result.
func pickSentMailbox(names []string, attrs [][]imap.MailboxAttr) (string, bool) {
	for i, name := range names {
		if slices.Contains(attrs[i], imap.MailboxAttrSent) {
			return name, true
		}
	}
	for _, want := range sentFallbacks {
		for _, name := range names {
			if strings.EqualFold(name, want) {
				return name, true
			}
		}
	}
	return "", false
}
