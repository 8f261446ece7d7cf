package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/source"
)

// FakeMailbox is an in-memory source.Dialer. Fetching does not change flags;
// inbox messages become seen only through MarkSeen.
type FakeMailbox struct {
	mu sync.Mutex

	Inbox map[uint32][]byte
	Sent  map[uint32][]byte
	Seen  map[uint32]bool

	// SentDates lets tests place sent messages outside the search window.
	SentDates map[uint32]time.Time

	// DialErr is returned by Dial when set.
	DialErr error

	Dials     int
	Passwords []string
}

var _ source.Dialer = (*FakeMailbox)(nil)

// NewFakeMailbox returns an empty mailbox.
func NewFakeMailbox() *FakeMailbox {
	return &FakeMailbox{
		Inbox:     make(map[uint32][]byte),
		Sent:      make(map[uint32][]byte),
		Seen:      make(map[uint32]bool),
		SentDates: make(map[uint32]time.Time),
	}
}

// Deliver appends raw to the inbox and returns its UID.
func (f *FakeMailbox) Deliver(raw string) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid := uint32(len(f.Inbox) + 1)
	f.Inbox[uid] = []byte(raw)
	return uid
}

// IsSeen reports whether the inbox message uid carries \Seen.
func (f *FakeMailbox) IsSeen(uid uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Seen[uid]
}

// RecordSent appends raw to the sent folder with the given date.
func (f *FakeMailbox) RecordSent(raw string, date time.Time) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid := uint32(len(f.Sent) + 1)
	f.Sent[uid] = []byte(raw)
	f.SentDates[uid] = date
	return uid
}

// Dial implements source.Dialer.
func (f *FakeMailbox) Dial(_ context.Context, account model.Account, password string) (source.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dials++
	f.Passwords = append(f.Passwords, password)
	if f.DialErr != nil {
		return nil, &source.ConnectionError{Account: account.Email, Op: "dial", Err: f.DialErr}
	}
	return &fakeSession{box: f}, nil
}

type fakeSession struct {
	box *FakeMailbox
}

func (s *fakeSession) SearchUnseen(context.Context) ([]uint32, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	var out []uint32
	for uid := range s.box.Inbox {
		if !s.box.Seen[uid] {
			out = append(out, uid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *fakeSession) Fetch(_ context.Context, uid uint32) ([]byte, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	raw, ok := s.box.Inbox[uid]
	if !ok {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}
	return raw, nil
}

func (s *fakeSession) MarkSeen(_ context.Context, uid uint32) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if _, ok := s.box.Inbox[uid]; !ok {
		return fmt.Errorf("message UID %d not found", uid)
	}
	s.box.Seen[uid] = true
	return nil
}

func (s *fakeSession) SearchSent(_ context.Context, since time.Time) ([]uint32, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	var out []uint32
	for uid := range s.box.Sent {
		if !s.box.SentDates[uid].Before(since) {
			out = append(out, uid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *fakeSession) FetchSent(_ context.Context, uid uint32) ([]byte, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	raw, ok := s.box.Sent[uid]
	if !ok {
		return nil, fmt.Errorf("sent UID %d not found", uid)
	}
	return raw, nil
}

func (s *fakeSession) Close() error { return nil }

// FakeSender records outgoing mail instead of delivering it.
type FakeSender struct {
	mu   sync.Mutex
	Err  error
	Sent []source.Outgoing
}

var _ source.Sender = (*FakeSender)(nil)

// Send implements source.Sender.
func (f *FakeSender) Send(_ context.Context, _ model.Account, _ string, msg *source.Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, *msg)
	return nil
}

// Outbox returns a copy of everything sent so far.
func (f *FakeSender) Outbox() []source.Outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]source.Outgoing(nil), f.Sent...)
}

// NewTestCipher returns a SecretBox with a fixed key.
func NewTestCipher(t *testing.T) *credential.SecretBox {
	t.Helper()
	var key [credential.KeySize]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")
	return credential.NewSecretBox(key)
}

// NewTestAccount encrypts password with cipher and returns an active
// account for addr.
func NewTestAccount(t *testing.T, cipher credential.Cipher, id, addr, password string) model.Account {
	t.Helper()
	ref, err := cipher.Encrypt(password)
	if err != nil {
		t.Fatalf("encrypting test password: %v", err)
	}
	acct := model.Account{
		ID:            id,
		Email:         addr,
		Provider:      model.ProviderCustom,
		IMAPHost:      "imap.test",
		SMTPHost:      "smtp.test",
		CredentialRef: ref,
		Signature:     "--\nSent from mail-triage",
		Active:        true,
		CreatedAt:     time.Now(),
	}
	acct.ApplyProviderDefaults()
	return acct
}
