// Package app assembles the triage services from configuration and owns
// their lifetime.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/ai"
	"github.com/nhle/mail-triage/internal/approval"
	"github.com/nhle/mail-triage/internal/contact"
	"github.com/nhle/mail-triage/internal/conversation"
	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/ingest"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/source"
	"github.com/nhle/mail-triage/internal/source/email"
	"github.com/nhle/mail-triage/internal/store"
	appsync "github.com/nhle/mail-triage/internal/sync"
	"github.com/nhle/mail-triage/internal/tag"
)

// shutdownTimeout bounds how long Serve waits for running cycles to finish.
const shutdownTimeout = 30 * time.Second

// Options overrides collaborators that New would otherwise build from the
// configuration. Zero values select the real implementations.
type Options struct {
	Dialer   source.Dialer
	Sender   source.Sender
	LLM      ai.LLM
	Embedder ai.Embedder
	Cipher   credential.Cipher

	// EnsureKey creates a keyring master key when none exists yet.
	EnsureKey bool
}

// App is the wired set of services behind every command.
type App struct {
	Config *model.AppConfig
	Log    logrus.FieldLogger
	Store  *store.SQLiteStore

	Tags          *tag.Catalog
	Contacts      *contact.Ledger
	Conversations *conversation.Service
	Workflow      *approval.Workflow
	Pipeline      *ingest.Pipeline
	Scheduler     *appsync.Scheduler

	cipher credential.Cipher
	dialer source.Dialer
}

// New opens the store and builds every service. A missing master key is not
// fatal here; commands that need credentials fail with a *ConfigError.
func New(cfg *model.AppConfig, log logrus.FieldLogger, opts Options) (*App, error) {
	cipher, err := resolveCipher(cfg.Credential, opts)
	if err != nil {
		return nil, err
	}

	llm := opts.LLM
	if llm == nil {
		llm, err = ai.New(cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("configuring ai backend: %w", err)
		}
	}
	embedder := opts.Embedder
	if embedder == nil {
		embedder = ai.NewEmbedder(cfg.AI, log)
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = email.NewIMAPDialer()
	}
	sender := opts.Sender
	if sender == nil {
		sender = email.NewSMTPSender()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	drafter := ai.NewDrafter(llm)
	ledger := contact.NewLedger(s, log)

	pipeline := ingest.New(ingest.Deps{
		Store:      s,
		Dialer:     dialer,
		Cipher:     cipher,
		Classifier: ai.NewClassifier(llm, log),
		Enricher:   ai.NewEnricher(llm, log),
		Drafter:    drafter,
		Embedder:   embedder,
		Ledger:     ledger,
	}, ingest.Options{
		LinkBase:     cfg.Dispatch.LinkBaseURL,
		SentLookback: time.Duration(cfg.Poll.SentLookbackHours) * time.Hour,
		SentLimit:    cfg.Poll.SentLimit,
	}, log)

	dispatcher := approval.NewDispatcher(s, sender, cipher, log)

	return &App{
		Config:        cfg,
		Log:           log,
		Store:         s,
		Tags:          tag.NewCatalog(s, log),
		Contacts:      ledger,
		Conversations: conversation.NewService(s, log),
		Workflow:      approval.NewWorkflow(s, dispatcher, drafter, log),
		Pipeline:      pipeline,
		Scheduler:     appsync.New(s, cfg.Poll.MaxConcurrency, log),
		cipher:        cipher,
		dialer:        dialer,
	}, nil
}

func resolveCipher(cfg model.CredentialConfig, opts Options) (credential.Cipher, error) {
	if opts.Cipher != nil {
		return opts.Cipher, nil
	}

	key, err := credential.MasterKey(cfg)
	var cfgErr *credential.ConfigError
	switch {
	case err == nil:
		return credential.NewSecretBox(key), nil
	case errors.As(err, &cfgErr) && opts.EnsureKey && cfg.UseKeyring && cfg.Key == "":
		key, err = credential.EnsureKeyringKey()
		if err != nil {
			return nil, fmt.Errorf("creating keyring master key: %w", err)
		}
		return credential.NewSecretBox(key), nil
	case errors.As(err, &cfgErr):
		return lockedCipher{err: err}, nil
	default:
		return nil, fmt.Errorf("loading master key: %w", err)
	}
}

// lockedCipher stands in when no master key is available.
type lockedCipher struct {
	err error
}

func (c lockedCipher) Encrypt(string) (string, error) { return "", c.err }
func (c lockedCipher) Decrypt(string) (string, error) { return "", c.err }

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// AccountInput is the operator input for registering a mailbox.
type AccountInput struct {
	Email     string
	Password  string
	Provider  string
	IMAPHost  string
	IMAPPort  string
	SMTPHost  string
	SMTPPort  string
	Signature string
}

// AddAccount registers a mailbox, or replaces the settings of an existing
// one with the same address. The password is stored encrypted.
func (a *App) AddAccount(ctx context.Context, in AccountInput) (model.Account, error) {
	addr := contact.NormalizeEmail(in.Email)
	if !strings.Contains(addr, "@") {
		return model.Account{}, fmt.Errorf("invalid email address %q", in.Email)
	}
	if in.Password == "" {
		return model.Account{}, fmt.Errorf("password must not be empty")
	}

	provider := model.Provider(strings.ToLower(strings.TrimSpace(in.Provider)))
	switch provider {
	case "":
		provider = model.ProviderCustom
	case model.ProviderGmail, model.ProviderOutlook, model.ProviderCustom:
	default:
		return model.Account{}, fmt.Errorf("unknown provider %q", in.Provider)
	}

	ref, err := a.cipher.Encrypt(in.Password)
	if err != nil {
		return model.Account{}, fmt.Errorf("encrypting password: %w", err)
	}

	acct := model.Account{
		ID:            uuid.New().String(),
		Email:         addr,
		Provider:      provider,
		IMAPHost:      in.IMAPHost,
		IMAPPort:      in.IMAPPort,
		SMTPHost:      in.SMTPHost,
		SMTPPort:      in.SMTPPort,
		CredentialRef: ref,
		Signature:     in.Signature,
		Active:        true,
	}
	acct.ApplyProviderDefaults()
	if acct.IMAPHost == "" || acct.SMTPHost == "" {
		return model.Account{}, fmt.Errorf("provider %s requires both IMAP and SMTP hosts", provider)
	}

	existing, err := a.Store.GetAccountByEmail(ctx, addr)
	switch {
	case err == nil:
		acct.ID = existing.ID
		acct.CreatedAt = existing.CreatedAt
	case !errors.Is(err, store.ErrNotFound):
		return model.Account{}, err
	}

	if err := a.Store.UpsertAccount(ctx, acct); err != nil {
		return model.Account{}, err
	}

	a.Log.WithFields(logrus.Fields{
		"account":  acct.Email,
		"provider": acct.Provider,
	}).Info("account saved")
	return acct, nil
}

// VerifyAccount logs in to the account's mailbox and logs out again.
func (a *App) VerifyAccount(ctx context.Context, acct model.Account) error {
	password, err := a.cipher.Decrypt(acct.CredentialRef)
	if err != nil {
		return fmt.Errorf("decrypting credentials for %s: %w", acct.Email, err)
	}
	sess, err := a.dialer.Dial(ctx, acct, password)
	if err != nil {
		return err
	}
	return sess.Close()
}

// PollOnce runs one inbox cycle followed by one sent cycle over every
// active account.
func (a *App) PollOnce(ctx context.Context) (inbox, sent appsync.CycleResult, err error) {
	inbox, err = a.Scheduler.RunOnce(ctx, appsync.JobInbox, a.Pipeline.Poll)
	if err != nil {
		return inbox, sent, err
	}
	sent, err = a.Scheduler.RunOnce(ctx, appsync.JobSent, a.Pipeline.PollSent)
	return inbox, sent, err
}

// Serve schedules both polling jobs, runs a first cycle of each right away,
// and blocks until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Scheduler.AddJob(appsync.JobInbox, a.Config.Poll.InboxSchedule, a.Pipeline.Poll); err != nil {
		return err
	}
	if err := a.Scheduler.AddJob(appsync.JobSent, a.Config.Poll.SentSchedule, a.Pipeline.PollSent); err != nil {
		return err
	}

	a.Scheduler.Start()
	for _, job := range []string{appsync.JobInbox, appsync.JobSent} {
		if err := a.Scheduler.Trigger(job); err != nil {
			a.Log.WithError(err).WithField("job", job).Warn("initial cycle not started")
		}
	}

	<-ctx.Done()
	a.Log.Info("shutting down")

	select {
	case <-a.Scheduler.Stop().Done():
	case <-time.After(shutdownTimeout):
		a.Log.Warn("timed out waiting for polling cycles to finish")
	}
	return nil
}
