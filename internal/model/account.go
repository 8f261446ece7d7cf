package model

import (
	"strings"
	"time"
)

// Provider identifies a well-known mail host preset.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
	ProviderCustom  Provider = "custom"
)

// Account is a polled mailbox.
type Account struct {
	ID       string   `json:"id" db:"id"`
	Email    string   `json:"email" db:"email"`
	Provider Provider `json:"provider" db:"provider"`

	IMAPHost string `json:"imap_host" db:"imap_host"`
	IMAPPort string `json:"imap_port" db:"imap_port"`
	SMTPHost string `json:"smtp_host" db:"smtp_host"`
	SMTPPort string `json:"smtp_port" db:"smtp_port"`

	// CredentialRef is the encrypted mailbox password. It is opaque to
	// everything except the credential cipher.
	CredentialRef string `json:"-" db:"credential_ref"`

	// Signature is appended to every dispatched reply.
	Signature string `json:"signature" db:"signature"`

	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ApplyProviderDefaults fills empty host/port fields from the provider preset.
func (a *Account) ApplyProviderDefaults() {
	var imapHost, smtpHost string
	switch a.Provider {
	case ProviderGmail:
		imapHost, smtpHost = "imap.gmail.com", "smtp.gmail.com"
	case ProviderOutlook:
		imapHost, smtpHost = "outlook.office365.com", "smtp.office365.com"
	}
	if a.IMAPHost == "" {
		a.IMAPHost = imapHost
	}
	if a.SMTPHost == "" {
		a.SMTPHost = smtpHost
	}
	if a.IMAPPort == "" {
		a.IMAPPort = "993"
	}
	if a.SMTPPort == "" {
		if a.Provider == ProviderOutlook {
			a.SMTPPort = "587"
		} else {
			a.SMTPPort = "465"
		}
	}
}

// Domain returns the part of the account address after '@'.
func (a Account) Domain() string {
	if i := strings.LastIndexByte(a.Email, '@'); i >= 0 {
		return a.Email[i+1:]
	}
	return "localhost"
}
